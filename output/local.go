package output

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	apperrors "github.com/nijaru/mediatext/errors"
)

// LocalWriter writes through a temporary file in the target directory and
// renames it into place, so readers never see a partial transcript.
type LocalWriter struct {
	logger *logrus.Entry
}

func NewLocalWriter(logger *logrus.Entry) *LocalWriter {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LocalWriter{logger: logger}
}

func (w *LocalWriter) Write(ctx context.Context, dir, stem, text string) (string, error) {
	const op = "LocalWriter.Write"

	if err := ctx.Err(); err != nil {
		return "", apperrors.Write(op, err, "write cancelled")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Write(op, err, "cannot create output directory")
	}

	target := filepath.Join(dir, stem+".txt")
	if err := writeAtomic(target, []byte(text)); err != nil {
		w.logger.WithError(err).WithField("path", target).Error("Failed to write transcript")
		return "", apperrors.Write(op, err, "cannot write transcript")
	}

	w.logger.WithField("path", target).Info("Transcript written")
	return target, nil
}

func writeAtomic(target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "sync temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return errors.Wrapf(err, "rename into %s", target)
	}
	return nil
}
