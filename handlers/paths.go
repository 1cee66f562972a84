package handlers

import (
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/nijaru/mediatext/errors"
	"github.com/nijaru/mediatext/output"
)

// localSource maps a client supplied media path onto the server's media
// root. Relative names are taken from the root; absolute ones must already
// point inside it. Symlinks that lead out of the root are refused.
func localSource(root, name string) (string, error) {
	const op = "handlers.localSource"

	if strings.TrimSpace(root) == "" {
		return "", apperrors.Validation(op, nil, "local files are not accepted by this server")
	}
	target, err := within(root, name)
	if err != nil {
		return "", apperrors.Validation(op, nil, "path must stay inside the media root")
	}
	return target, nil
}

// outputDir maps a client supplied output directory onto the configured
// output directory. Only subdirectories of it are accepted.
func outputDir(base, name string) (string, error) {
	const op = "handlers.outputDir"

	if name == "" {
		return "", nil
	}
	base = strings.TrimSpace(base)
	if base == "" {
		return "", apperrors.Validation(op, nil, "output_dir is not accepted by this server")
	}
	if output.IsRemote(name) || filepath.IsAbs(name) {
		return "", apperrors.Validation(op, nil, "output_dir must be relative to the output directory")
	}

	if output.IsRemote(base) {
		rel := path.Clean(filepath.ToSlash(name))
		if escapes(rel) {
			return "", apperrors.Validation(op, nil, "output_dir must stay inside the output directory")
		}
		if rel == "." {
			return base, nil
		}
		return strings.TrimSuffix(base, "/") + "/" + rel, nil
	}

	target, err := within(base, name)
	if err != nil {
		return "", apperrors.Validation(op, nil, "output_dir must stay inside the output directory")
	}
	return target, nil
}

// within resolves name against root and fails when the result, or what it
// links to, lies outside root.
func within(root, name string) (string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	if !contains(root, target) {
		return "", errOutsideRoot
	}

	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			realRoot = root
		}
		if !contains(realRoot, resolved) {
			return "", errOutsideRoot
		}
	}
	return target, nil
}

var errOutsideRoot = apperrors.Validation("handlers.within", nil, "outside root")

func contains(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return !escapes(filepath.ToSlash(rel))
}

// escapes reports whether a slash separated relative path climbs out of its
// base.
func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, "/")
}
