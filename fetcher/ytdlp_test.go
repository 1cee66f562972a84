package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/mediatext/command"
)

type fakeRunner struct {
	calls [][]string
	run   func(args []string) (command.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (command.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.run(args)
}

func testOptions() Options {
	return Options{
		Retries:        10,
		Attempts:       3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

// argValue returns value for key-style CLI args.
func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}

func hasArg(args []string, key string) bool {
	for _, a := range args {
		if a == key {
			return true
		}
	}
	return false
}

// downloads simulates yt-dlp writing <dir>/<title>.mp3 and printing its path.
func downloads(t *testing.T, title string) func(args []string) (command.Result, error) {
	return func(args []string) (command.Result, error) {
		tmpl := argValue(args, "-o")
		path := filepath.Join(filepath.Dir(tmpl), title+".mp3")
		require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o644))
		return command.Result{Stdout: "[download] 100%\n" + path + "\n"}, nil
	}
}

func TestFetchSuccessSanitizesTitle(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{run: downloads(t, `Talk: What "is" Go?`)}
	f := New(testOptions(), runner, nil)

	result := f.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc123", dir)
	audio, ok := result.Get()
	require.True(t, ok, result.Reason())

	assert.Equal(t, filepath.Join(dir, "Talk_ What _is_ Go.mp3"), audio.Path)
	assert.FileExists(t, audio.Path)
	assert.Len(t, runner.calls, 1)
}

func TestFetchOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "Talk.mp3")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	runner := &fakeRunner{run: func(args []string) (command.Result, error) {
		path := filepath.Join(dir, "Talk?.mp3")
		require.NoError(t, os.WriteFile(path, []byte("new"), 0o644))
		return command.Result{Stdout: path}, nil
	}}

	audio, ok := New(testOptions(), runner, nil).Fetch(context.Background(), "https://example.com/v/1", dir).Get()
	require.True(t, ok)
	assert.Equal(t, existing, audio.Path)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestFetchRetriesExhaustedReturnsAbsent(t *testing.T) {
	runner := &fakeRunner{run: func(args []string) (command.Result, error) {
		return command.Result{ExitCode: 1, Stderr: "ERROR: Unable to download webpage: <urlopen error [Errno 111] Connection refused>"},
			errors.New("exit status 1")
	}}

	var result interface{ Present() bool }
	assert.NotPanics(t, func() {
		result = New(testOptions(), runner, nil).Fetch(context.Background(), "https://unreachable.invalid/watch", t.TempDir())
	})
	assert.False(t, result.Present())
	assert.Len(t, runner.calls, 3)
}

func TestFetchPermanentFailureStopsRetrying(t *testing.T) {
	runner := &fakeRunner{run: func(args []string) (command.Result, error) {
		return command.Result{ExitCode: 1, Stderr: "ERROR: [youtube] abc: Video unavailable"}, errors.New("exit status 1")
	}}

	result := New(testOptions(), runner, nil).Fetch(context.Background(), "https://www.youtube.com/watch?v=abc", t.TempDir())
	assert.False(t, result.Present())
	assert.Contains(t, result.Reason(), "Video unavailable")
	assert.Len(t, runner.calls, 1)
}

func TestFetchNoPlayableStream(t *testing.T) {
	runner := &fakeRunner{run: func(args []string) (command.Result, error) {
		return command.Result{Stdout: ""}, nil
	}}

	result := New(testOptions(), runner, nil).Fetch(context.Background(), "https://example.com/page", t.TempDir())
	assert.False(t, result.Present())
	assert.Contains(t, result.Reason(), "no playable stream")
}

func TestFetchInvalidURLNeverRunsYtDlp(t *testing.T) {
	runner := &fakeRunner{run: func(args []string) (command.Result, error) {
		t.Fatal("yt-dlp should not run")
		return command.Result{}, nil
	}}
	f := New(testOptions(), runner, nil)

	for _, u := range []string{"", "not a url", "ftp://example.com/a"} {
		assert.False(t, f.Fetch(context.Background(), u, t.TempDir()).Present(), u)
	}
	assert.Empty(t, runner.calls)
}

func TestFetchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{run: func(args []string) (command.Result, error) {
		return command.Result{}, ctx.Err()
	}}

	result := New(testOptions(), runner, nil).Fetch(ctx, "https://example.com/v", t.TempDir())
	assert.False(t, result.Present())
	assert.Contains(t, result.Reason(), "aborted")
}

func TestBuildArgs(t *testing.T) {
	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# Netscape"), 0o644))

	opts := testOptions()
	opts.CookieFile = cookies
	f := New(opts, &fakeRunner{}, nil)

	args := f.buildArgs("https://example.com/v", "/out")
	assert.Equal(t, "bestaudio/best", argValue(args, "-f"))
	assert.Equal(t, "mp3", argValue(args, "--audio-format"))
	assert.Equal(t, "192K", argValue(args, "--audio-quality"))
	assert.Equal(t, filepath.Join("/out", "%(title)s.%(ext)s"), argValue(args, "-o"))
	assert.Equal(t, "10", argValue(args, "--retries"))
	assert.Equal(t, "10", argValue(args, "--fragment-retries"))
	assert.Equal(t, cookies, argValue(args, "--cookies"))
	assert.True(t, hasArg(args, "--skip-unavailable-fragments"))
	assert.True(t, hasArg(args, "--force-overwrites"))
	assert.True(t, strings.HasPrefix(argValue(args, "--add-header"), "User-Agent:Mozilla/5.0"))
	assert.Equal(t, "https://example.com/v", args[len(args)-1])

	opts.CookieFile = filepath.Join(t.TempDir(), "missing.txt")
	args = New(opts, &fakeRunner{}, nil).buildArgs("https://example.com/v", "/out")
	assert.False(t, hasArg(args, "--cookies"))
}

func TestBackoffIsBounded(t *testing.T) {
	f := New(Options{InitialBackoff: time.Second, MaxBackoff: 4 * time.Second}, &fakeRunner{}, nil)
	for attempt := 1; attempt <= 6; attempt++ {
		d := f.backoff(attempt)
		assert.LessOrEqual(t, d, 6*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
	}
	assert.Equal(t, time.Duration(0), New(Options{}, &fakeRunner{}, nil).backoff(1))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, isPermanent("ERROR: Unsupported URL: https://example.com"))
	assert.True(t, isPermanent("ERROR: [youtube] x: Private video. Sign in"))
	assert.True(t, isPermanent("ERROR: Requested format is not available"))
	assert.False(t, isPermanent("ERROR: Unable to download webpage: timed out"))
}
