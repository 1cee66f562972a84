package converter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/mediatext/command"
	apperrors "github.com/nijaru/mediatext/errors"
	"github.com/nijaru/mediatext/media"
)

const (
	// CanonicalSampleRate and CanonicalChannels describe the waveform every
	// transcription engine receives.
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
)

type Options struct {
	FFmpegPath  string
	FFprobePath string
	// Verify probes the converted file and rejects anything that is not
	// 16 kHz mono.
	Verify bool
}

// FFmpeg normalizes media files into canonical WAV audio.
type FFmpeg struct {
	opts   Options
	runner command.Runner
	stat   func(name string) (os.FileInfo, error)
	logger *logrus.Entry
}

func New(opts Options, runner command.Runner, logger *logrus.Entry) *FFmpeg {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &FFmpeg{
		opts:   opts,
		runner: runner,
		stat:   os.Stat,
		logger: logger.WithField("component", "converter"),
	}
}

// Convert writes <stem>.wav next to the source. Re-running overwrites the
// previous output.
func (c *FFmpeg) Convert(ctx context.Context, ref media.MediaReference) (media.CanonicalAudio, error) {
	const op = "FFmpeg.Convert"

	outPath := OutputPath(ref.Path)
	args := buildFFmpegArgs(ref.Path, outPath)

	c.logger.WithFields(logrus.Fields{
		"input":  ref.Path,
		"output": outPath,
	}).Info("Converting media to canonical audio")

	res, err := c.runner.Run(ctx, c.opts.FFmpegPath, args...)
	if err != nil {
		return media.CanonicalAudio{}, apperrors.Conversion(op, err,
			fmt.Sprintf("ffmpeg could not convert %s", filepath.Base(ref.Path)), res.Diagnostic())
	}

	if _, err := c.stat(outPath); err != nil {
		return media.CanonicalAudio{}, apperrors.Conversion(op, err,
			"ffmpeg completed but output file is missing", res.Diagnostic())
	}

	if c.opts.Verify {
		info, err := c.Probe(ctx, outPath)
		if err != nil {
			return media.CanonicalAudio{}, err
		}
		if info.SampleRate != CanonicalSampleRate || info.Channels != CanonicalChannels {
			return media.CanonicalAudio{}, apperrors.Conversion(op, nil,
				fmt.Sprintf("converted audio is %d Hz / %d ch, want %d Hz / %d ch",
					info.SampleRate, info.Channels, CanonicalSampleRate, CanonicalChannels), "")
		}
	}

	return media.CanonicalAudio{Path: outPath}, nil
}

// OutputPath returns where Convert writes the canonical file for src.
func OutputPath(src string) string {
	dir := filepath.Dir(src)
	stem := media.Stem(src)
	out := filepath.Join(dir, stem+".wav")
	if out == src {
		out = filepath.Join(dir, stem+"_16k.wav")
	}
	return out
}

// buildFFmpegArgs builds args for mono 16 kHz PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", strconv.Itoa(CanonicalChannels),
		"-ar", strconv.Itoa(CanonicalSampleRate),
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// AudioInfo is the subset of ffprobe output the pipeline cares about.
type AudioInfo struct {
	Codec      string
	SampleRate int
	Channels   int
	Duration   float64
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the first audio stream of path with ffprobe.
func (c *FFmpeg) Probe(ctx context.Context, path string) (AudioInfo, error) {
	const op = "FFmpeg.Probe"

	res, err := c.runner.Run(ctx, c.opts.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	if err != nil {
		return AudioInfo{}, apperrors.Conversion(op, err, "ffprobe failed", res.Diagnostic())
	}

	return parseProbe(res.Stdout)
}

func parseProbe(raw string) (AudioInfo, error) {
	const op = "FFmpeg.Probe"

	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return AudioInfo{}, apperrors.Conversion(op, err, "cannot parse ffprobe output", "")
	}

	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		rate, err := strconv.Atoi(strings.TrimSpace(s.SampleRate))
		if err != nil {
			return AudioInfo{}, apperrors.Conversion(op, err, "invalid sample rate in ffprobe output", s.SampleRate)
		}
		duration, _ := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
		return AudioInfo{
			Codec:      s.CodecName,
			SampleRate: rate,
			Channels:   s.Channels,
			Duration:   duration,
		}, nil
	}

	return AudioInfo{}, apperrors.Conversion(op, nil, "no audio stream found", "")
}
