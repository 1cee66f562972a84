package media

import (
	"net/url"
	"path/filepath"
	"strings"
)

// SourceKind tells the orchestrator which acquisition path a job takes.
type SourceKind string

const (
	SourceRemoteURL SourceKind = "REMOTE_URL"
	SourceLocalFile SourceKind = "LOCAL_FILE"
)

// Job is one user request. It is not modified once the orchestrator starts it.
type Job struct {
	ID        string     `json:"id"`
	Kind      SourceKind `json:"kind"`
	Source    string     `json:"source"`
	OutputDir string     `json:"output_dir"`
	Tier      ModelTier  `json:"model"`
}

// MediaReference is a validated local input.
type MediaReference struct {
	Path            string `json:"path"`
	Format          string `json:"format"`
	NeedsConversion bool   `json:"needs_conversion"`
}

// Stem returns the file name without directory and extension.
func (r MediaReference) Stem() string {
	return Stem(r.Path)
}

// CanonicalAudio points at a mono 16 kHz file the transcriber can decode.
type CanonicalAudio struct {
	Path string `json:"path"`
}

func (a CanonicalAudio) Stem() string {
	return Stem(a.Path)
}

type TranscriptionResult struct {
	JobID      string `json:"job_id"`
	Text       string `json:"text"`
	SourceStem string `json:"stem"`
	OutputPath string `json:"output"`
}

// Stem strips directory and extension from path.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ClassifySource guesses the source kind of a raw user string: anything with
// an http(s) scheme and a host is remote, everything else a local path.
func ClassifySource(source string) SourceKind {
	u, err := url.Parse(strings.TrimSpace(source))
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return SourceRemoteURL
	}
	return SourceLocalFile
}

// NormalizeExtension lower-cases ext and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
