package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	apperrors "github.com/nijaru/mediatext/errors"
)

var (
	// DefaultSupportedExtensions are the media types the file picker offers.
	DefaultSupportedExtensions = []string{"mp3", "wav", "mp4", "avi", "mov"}
	// DefaultDirectExtensions are consumed by the transcriber without conversion.
	DefaultDirectExtensions = []string{"mp3", "wav"}
)

// Resolver classifies local input files by extension.
type Resolver struct {
	supported []string
	direct    []string
	stat      func(name string) (os.FileInfo, error)
}

// NewResolver builds a resolver from extension lists; entries may carry a
// leading dot and any case.
func NewResolver(supported, direct []string) *Resolver {
	return &Resolver{
		supported: normalizeAll(supported),
		direct:    normalizeAll(direct),
		stat:      os.Stat,
	}
}

func normalizeAll(exts []string) []string {
	return lo.Uniq(lo.FilterMap(exts, func(ext string, _ int) (string, bool) {
		n := NormalizeExtension(ext)
		return n, n != ""
	}))
}

// ResolveLocal checks that path exists and has a supported extension.
func (r *Resolver) ResolveLocal(path string) (MediaReference, error) {
	const op = "Resolver.ResolveLocal"

	if strings.TrimSpace(path) == "" {
		return MediaReference{}, apperrors.NotFound(op, nil, "no input file given")
	}

	info, err := r.stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return MediaReference{}, apperrors.NotFound(op, err, fmt.Sprintf("file not found: %s", path))
		}
		return MediaReference{}, apperrors.NotFound(op, err, fmt.Sprintf("cannot access file: %s", path))
	}
	if info.IsDir() {
		return MediaReference{}, apperrors.NotFound(op, nil, fmt.Sprintf("not a regular file: %s", path))
	}

	format := NormalizeExtension(filepath.Ext(path))
	if !lo.Contains(r.supported, format) {
		return MediaReference{}, apperrors.UnsupportedFormat(op, nil,
			fmt.Sprintf("unsupported file format %q (supported: %s)", format, strings.Join(r.supported, ", ")))
	}

	return MediaReference{
		Path:            path,
		Format:          format,
		NeedsConversion: !lo.Contains(r.direct, format),
	}, nil
}

// Supported returns a copy of the supported extension set.
func (r *Resolver) Supported() []string {
	return append([]string(nil), r.supported...)
}
