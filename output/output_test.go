package output

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/mediatext/config"
	apperrors "github.com/nijaru/mediatext/errors"
)

func TestLocalWriterWritesAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	w := NewLocalWriter(nil)

	path, err := w.Write(context.Background(), dir, "clip", "olá\nmundo")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "olá\nmundo", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLocalWriterOverwrites(t *testing.T) {
	dir := t.TempDir()
	w := NewLocalWriter(nil)

	_, err := w.Write(context.Background(), dir, "clip", "first")
	require.NoError(t, err)
	path, err := w.Write(context.Background(), dir, "clip", "second")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestLocalWriterUnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewLocalWriter(nil).Write(context.Background(), filepath.Join(blocker, "sub"), "clip", "x")
	assert.ErrorIs(t, err, apperrors.ErrWrite)
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	data, _ := io.ReadAll(params.Body)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Writer(t *testing.T) {
	client := &fakeS3{}
	w := newS3Writer(client, nil)

	location, err := w.Write(context.Background(), "s3://transcripts/jobs/2024/", "clip", "hello")
	require.NoError(t, err)
	assert.Equal(t, "s3://transcripts/jobs/2024/clip.txt", location)
	assert.Equal(t, "transcripts", *client.input.Bucket)
	assert.Equal(t, "jobs/2024/clip.txt", *client.input.Key)
	assert.Equal(t, "hello", client.body)
}

func TestS3WriterFailure(t *testing.T) {
	w := newS3Writer(&fakeS3{err: errors.New("access denied")}, nil)
	_, err := w.Write(context.Background(), "s3://bucket", "clip", "hello")
	assert.ErrorIs(t, err, apperrors.ErrWrite)
}

func TestParseS3Location(t *testing.T) {
	tests := []struct {
		in     string
		bucket string
		prefix string
		ok     bool
	}{
		{"s3://bucket", "bucket", "", true},
		{"s3://bucket/", "bucket", "", true},
		{"s3://bucket/a/b/", "bucket", "a/b", true},
		{"s3://", "", "", false},
		{"/local/dir", "", "", false},
	}
	for _, tt := range tests {
		bucket, prefix, err := ParseS3Location(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.bucket, bucket)
		assert.Equal(t, tt.prefix, prefix)
	}
}

func TestRouter(t *testing.T) {
	client := &fakeS3{}
	created := 0
	r := NewRouter(configS3(), nil)
	r.newS3 = func(ctx context.Context) (Writer, error) {
		created++
		return newS3Writer(client, nil), nil
	}

	dir := t.TempDir()
	path, err := r.Write(context.Background(), dir, "local", "x")
	require.NoError(t, err)
	assert.FileExists(t, path)

	for i := 0; i < 2; i++ {
		_, err = r.Write(context.Background(), "s3://bucket/p", "remote", "y")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, "p/remote.txt", *client.input.Key)
}

func TestRouterS3Unavailable(t *testing.T) {
	r := NewRouter(configS3(), nil)
	r.newS3 = func(ctx context.Context) (Writer, error) {
		return nil, errors.New("no credentials")
	}
	_, err := r.Write(context.Background(), "s3://bucket", "clip", "x")
	assert.ErrorIs(t, err, apperrors.ErrWrite)
}

func TestRouterRetriesS3SetupAfterFailure(t *testing.T) {
	client := &fakeS3{}
	attempts := 0
	r := NewRouter(configS3(), nil)
	r.newS3 = func(ctx context.Context) (Writer, error) {
		attempts++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return newS3Writer(client, nil), nil
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Write(cancelled, "s3://bucket/p", "clip", "x")
	assert.ErrorIs(t, err, apperrors.ErrWrite)

	location, err := r.Write(context.Background(), "s3://bucket/p", "clip", "x")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/p/clip.txt", location)
	assert.Equal(t, 2, attempts)
}

func configS3() config.S3Config {
	return config.S3Config{Region: "us-east-1"}
}
