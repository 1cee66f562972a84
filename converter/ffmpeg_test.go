package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/mediatext/command"
	apperrors "github.com/nijaru/mediatext/errors"
	"github.com/nijaru/mediatext/media"
)

// fakeRunner simulates ffmpeg/ffprobe.
type fakeRunner struct {
	calls []string
	run   func(name string, args ...string) (command.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (command.Result, error) {
	f.calls = append(f.calls, name)
	if f.run == nil {
		return command.Result{}, nil
	}
	return f.run(name, args...)
}

const monoProbe = `{"streams":[{"codec_type":"audio","codec_name":"pcm_s16le","sample_rate":"16000","channels":1}],"format":{"duration":"3.500000"}}`

// ffmpegWritesOutput writes the last arg as the converted file and answers
// ffprobe with probeJSON.
func ffmpegWritesOutput(t *testing.T, probeJSON string) func(name string, args ...string) (command.Result, error) {
	return func(name string, args ...string) (command.Result, error) {
		switch name {
		case "ffmpeg":
			require.NoError(t, os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644))
			return command.Result{Name: name}, nil
		case "ffprobe":
			return command.Result{Name: name, Stdout: probeJSON}, nil
		}
		t.Fatalf("unexpected command %s", name)
		return command.Result{}, nil
	}
}

func writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))
	return path
}

func TestConvertWritesWavAlongsideSource(t *testing.T) {
	src := writeSource(t, "clip.mov")
	runner := &fakeRunner{run: ffmpegWritesOutput(t, monoProbe)}
	c := New(Options{Verify: true}, runner, nil)

	audio, err := c.Convert(context.Background(), media.MediaReference{Path: src, Format: "mov", NeedsConversion: true})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(filepath.Dir(src), "clip.wav"), audio.Path)
	assert.FileExists(t, audio.Path)
	assert.FileExists(t, src, "source must not be deleted")
	assert.Equal(t, []string{"ffmpeg", "ffprobe"}, runner.calls)
}

func TestConvertTwiceIsReproducible(t *testing.T) {
	src := writeSource(t, "talk.mp4")
	runner := &fakeRunner{run: ffmpegWritesOutput(t, monoProbe)}
	c := New(Options{Verify: true}, runner, nil)
	ref := media.MediaReference{Path: src, Format: "mp4", NeedsConversion: true}

	first, err := c.Convert(context.Background(), ref)
	require.NoError(t, err)
	firstInfo, err := c.Probe(context.Background(), first.Path)
	require.NoError(t, err)

	second, err := c.Convert(context.Background(), ref)
	require.NoError(t, err)
	secondInfo, err := c.Probe(context.Background(), second.Path)
	require.NoError(t, err)

	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, firstInfo.SampleRate, secondInfo.SampleRate)
	assert.Equal(t, firstInfo.Channels, secondInfo.Channels)
	assert.Equal(t, CanonicalSampleRate, secondInfo.SampleRate)
}

func TestConvertFailureCarriesDiagnostic(t *testing.T) {
	src := writeSource(t, "broken.avi")
	runner := &fakeRunner{run: func(name string, args ...string) (command.Result, error) {
		return command.Result{Name: name, ExitCode: 1, Stderr: "broken.avi: Invalid data found when processing input"},
			errors.New("exit status 1")
	}}

	_, err := New(Options{}, runner, nil).Convert(context.Background(), media.MediaReference{Path: src})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConversion)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Detail, "Invalid data found")
}

func TestConvertMissingOutput(t *testing.T) {
	src := writeSource(t, "clip.mp4")
	runner := &fakeRunner{}

	_, err := New(Options{}, runner, nil).Convert(context.Background(), media.MediaReference{Path: src})
	assert.ErrorIs(t, err, apperrors.ErrConversion)
}

func TestConvertRejectsNonCanonicalOutput(t *testing.T) {
	src := writeSource(t, "clip.mp4")
	stereo := `{"streams":[{"codec_type":"audio","codec_name":"pcm_s16le","sample_rate":"44100","channels":2}]}`
	runner := &fakeRunner{run: ffmpegWritesOutput(t, stereo)}

	_, err := New(Options{Verify: true}, runner, nil).Convert(context.Background(), media.MediaReference{Path: src})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConversion)
	assert.Contains(t, err.Error(), "44100")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "clip.wav"), OutputPath(filepath.Join("a", "clip.mov")))
	assert.Equal(t, filepath.Join("a", "voice_16k.wav"), OutputPath(filepath.Join("a", "voice.wav")))
}

func TestBuildFFmpegArgs(t *testing.T) {
	want := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", "/in.mp4",
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"/tmp/out.wav",
	}
	assert.Equal(t, want, buildFFmpegArgs("/in.mp4", "/tmp/out.wav"))
}

func TestParseProbe(t *testing.T) {
	raw := `{"streams":[{"codec_type":"video","codec_name":"h264"},{"codec_type":"audio","codec_name":"aac","sample_rate":"48000","channels":2}],"format":{"duration":"12.5"}}`
	info, err := parseProbe(raw)
	require.NoError(t, err)
	assert.Equal(t, AudioInfo{Codec: "aac", SampleRate: 48000, Channels: 2, Duration: 12.5}, info)

	_, err = parseProbe(`{"streams":[{"codec_type":"video"}]}`)
	assert.ErrorIs(t, err, apperrors.ErrConversion)

	_, err = parseProbe("not json")
	assert.ErrorIs(t, err, apperrors.ErrConversion)
}
