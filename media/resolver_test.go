package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nijaru/mediatext/errors"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("media"), 0o644))
}

func TestResolveLocalConversionTable(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(DefaultSupportedExtensions, DefaultDirectExtensions)

	tests := []struct {
		file            string
		format          string
		needsConversion bool
	}{
		{"speech.mp3", "mp3", false},
		{"speech.wav", "wav", false},
		{"LOUD.MP3", "mp3", false},
		{"clip.mp4", "mp4", true},
		{"clip.avi", "avi", true},
		{"clip.mov", "mov", true},
		{"Clip.MOV", "mov", true},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			touch(t, path)

			ref, err := r.ResolveLocal(path)
			require.NoError(t, err)
			assert.Equal(t, path, ref.Path)
			assert.Equal(t, tt.format, ref.Format)
			assert.Equal(t, tt.needsConversion, ref.NeedsConversion)
		})
	}
}

func TestResolveLocalMissingFile(t *testing.T) {
	r := NewResolver(DefaultSupportedExtensions, DefaultDirectExtensions)

	_, err := r.ResolveLocal(filepath.Join(t.TempDir(), "nope.mp3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.ResolveLocal("")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResolveLocalDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "folder.mp3")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, err := NewResolver(DefaultSupportedExtensions, DefaultDirectExtensions).ResolveLocal(dir)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResolveLocalUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(DefaultSupportedExtensions, DefaultDirectExtensions)

	for _, name := range []string{"notes.txt", "song.flac", "noext"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			touch(t, path)

			_, err := r.ResolveLocal(path)
			assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
		})
	}
}

func TestNewResolverNormalizesExtensions(t *testing.T) {
	r := NewResolver([]string{".MP3", "mkv", "mkv", " "}, []string{".Mp3"})
	assert.Equal(t, []string{"mp3", "mkv"}, r.Supported())

	path := filepath.Join(t.TempDir(), "a.mkv")
	touch(t, path)
	ref, err := r.ResolveLocal(path)
	require.NoError(t, err)
	assert.True(t, ref.NeedsConversion)
}
