package output

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/mediatext/config"
	apperrors "github.com/nijaru/mediatext/errors"
)

// Writer stores a finished transcript as <stem>.txt under dir and returns
// where it ended up.
type Writer interface {
	Write(ctx context.Context, dir, stem, text string) (string, error)
}

// IsRemote reports whether dir names an object store location.
func IsRemote(dir string) bool {
	return strings.HasPrefix(strings.TrimSpace(dir), s3Scheme)
}

// Router sends s3:// directories to S3 and everything else to the local
// filesystem. The S3 client is created on first successful use; a failed
// attempt is retried by the next write.
type Router struct {
	local  Writer
	newS3  func(ctx context.Context) (Writer, error)
	logger *logrus.Entry

	mu sync.Mutex
	s3 Writer
}

func NewRouter(cfg config.S3Config, logger *logrus.Entry) *Router {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("component", "output")
	return &Router{
		local: NewLocalWriter(logger),
		newS3: func(ctx context.Context) (Writer, error) {
			return NewS3Writer(ctx, cfg, logger)
		},
		logger: logger,
	}
}

func (r *Router) Write(ctx context.Context, dir, stem, text string) (string, error) {
	if !IsRemote(dir) {
		return r.local.Write(ctx, dir, stem, text)
	}

	s3, err := r.objectStore(ctx)
	if err != nil {
		return "", apperrors.Write("Router.Write", err, "S3 output is not available")
	}
	return s3.Write(ctx, dir, stem, text)
}

func (r *Router) objectStore(ctx context.Context) (Writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.s3 != nil {
		return r.s3, nil
	}
	w, err := r.newS3(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Cannot create S3 client")
		return nil, err
	}
	r.s3 = w
	return w, nil
}
