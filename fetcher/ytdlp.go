package fetcher

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nijaru/mediatext/command"
	"github.com/nijaru/mediatext/media"
	"github.com/nijaru/mediatext/validation"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

type Options struct {
	YtDlpPath string
	// Retries is passed to yt-dlp for both network and fragment retries.
	Retries int
	// Attempts bounds how many times yt-dlp itself is started.
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RateInterval is the minimum spacing between yt-dlp starts.
	RateInterval time.Duration
	UserAgent    string
	CookieFile   string
	AudioFormat  string
	AudioQuality string
}

func (o Options) withDefaults() Options {
	if o.YtDlpPath == "" {
		o.YtDlpPath = "yt-dlp"
	}
	if o.Attempts < 1 {
		o.Attempts = 1
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.AudioFormat == "" {
		o.AudioFormat = "mp3"
	}
	if o.AudioQuality == "" {
		o.AudioQuality = "192K"
	}
	return o
}

// YtDlp downloads the best audio stream of a video URL and re-encodes it.
type YtDlp struct {
	opts     Options
	runner   command.Runner
	limiter  *rate.Limiter
	stat     func(name string) (os.FileInfo, error)
	mkdirAll func(path string, perm os.FileMode) error
	rename   func(oldpath, newpath string) error
	logger   *logrus.Entry
}

func New(opts Options, runner command.Runner, logger *logrus.Entry) *YtDlp {
	opts = opts.withDefaults()

	limit := rate.Inf
	if opts.RateInterval > 0 {
		limit = rate.Every(opts.RateInterval)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &YtDlp{
		opts:     opts,
		runner:   runner,
		limiter:  rate.NewLimiter(limit, 1),
		stat:     os.Stat,
		mkdirAll: os.MkdirAll,
		rename:   os.Rename,
		logger:   logger.WithField("component", "fetcher"),
	}
}

// Fetch downloads rawURL's audio into dir. It never fails loudly: every
// irrecoverable problem yields an absent result with a reason.
func (f *YtDlp) Fetch(ctx context.Context, rawURL, dir string) media.MaybeAudio {
	log := f.logger.WithField("url", rawURL)

	if err := validation.ValidateURL(rawURL); err != nil {
		log.WithError(err).Warn("Rejected URL")
		return media.NoAudio(err.Error())
	}
	if err := f.mkdirAll(dir, 0o755); err != nil {
		log.WithError(err).Error("Cannot create download directory")
		return media.NoAudio(fmt.Sprintf("cannot create download directory: %v", err))
	}

	args := f.buildArgs(strings.TrimSpace(rawURL), dir)
	reason := "download failed"

	for attempt := 1; attempt <= f.opts.Attempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return media.NoAudio(fmt.Sprintf("download aborted: %v", err))
		}

		res, err := f.runner.Run(ctx, f.opts.YtDlpPath, args...)
		if err == nil {
			audio, reason, ok := f.collect(res)
			if ok {
				log.WithField("path", audio.Path).Info("Audio downloaded")
				return media.SomeAudio(audio)
			}
			log.Warn(reason)
			return media.NoAudio(reason)
		}

		reason = res.Diagnostic()
		if reason == "" {
			reason = err.Error()
		}
		if ctx.Err() != nil {
			return media.NoAudio(fmt.Sprintf("download aborted: %v", ctx.Err()))
		}

		log.WithFields(logrus.Fields{
			"attempt":     attempt,
			"maxAttempts": f.opts.Attempts,
			"exitCode":    res.ExitCode,
			"error":       reason,
		}).Error("yt-dlp failed")

		if isPermanent(reason) || attempt == f.opts.Attempts {
			break
		}

		select {
		case <-time.After(f.backoff(attempt)):
		case <-ctx.Done():
			return media.NoAudio(fmt.Sprintf("download aborted: %v", ctx.Err()))
		}
	}

	return media.NoAudio(reason)
}

// collect finds the file yt-dlp printed and moves it to a sanitized name.
func (f *YtDlp) collect(res command.Result) (media.CanonicalAudio, string, bool) {
	path := lastLine(res.Stdout)
	if path == "" {
		return media.CanonicalAudio{}, "no playable stream: yt-dlp produced no file", false
	}
	if _, err := f.stat(path); err != nil {
		return media.CanonicalAudio{}, fmt.Sprintf("downloaded file is missing: %s", path), false
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	target := filepath.Join(dir, SanitizeStem(media.Stem(path))+ext)
	if target != path {
		if err := f.rename(path, target); err != nil {
			return media.CanonicalAudio{}, fmt.Sprintf("cannot rename downloaded file: %v", err), false
		}
	}

	return media.CanonicalAudio{Path: target}, "", true
}

func (f *YtDlp) buildArgs(rawURL, dir string) []string {
	args := []string{
		"--no-playlist",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", f.opts.AudioFormat,
		"--audio-quality", f.opts.AudioQuality,
		"--postprocessor-args", "ExtractAudio:-ac 1 -ar 16000",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		"--force-overwrites",
		"--add-header", "User-Agent:" + f.opts.UserAgent,
		"--add-header", "Accept:*/*",
		"--add-header", "Accept-Language:en-US,en;q=0.9",
		"--add-header", "Sec-Fetch-Mode:navigate",
		"--retries", strconv.Itoa(f.opts.Retries),
		"--fragment-retries", strconv.Itoa(f.opts.Retries),
		"--skip-unavailable-fragments",
	}

	if f.opts.CookieFile != "" {
		if _, err := f.stat(f.opts.CookieFile); err == nil {
			args = append(args, "--cookies", f.opts.CookieFile)
		}
	}

	return append(args,
		"--print", "after_move:filepath",
		"--no-simulate",
		rawURL,
	)
}

// backoff grows exponentially from InitialBackoff with up to 50% jitter.
func (f *YtDlp) backoff(attempt int) time.Duration {
	const backoffFactor = 2.0

	backoff := time.Duration(float64(f.opts.InitialBackoff) * math.Pow(backoffFactor, float64(attempt-1)))
	if backoff > f.opts.MaxBackoff {
		backoff = f.opts.MaxBackoff
	}
	if half := int64(backoff / 2); half > 0 {
		backoff += time.Duration(rand.Int63n(half))
	}
	return backoff
}

// Failures that no amount of retrying fixes.
var permanentMarkers = []string{
	"unsupported url",
	"is not a valid url",
	"video unavailable",
	"this video is unavailable",
	"private video",
	"requested format is not available",
	"no video formats found",
	"http error 404",
	"http error 410",
}

func isPermanent(diagnostic string) bool {
	d := strings.ToLower(diagnostic)
	for _, m := range permanentMarkers {
		if strings.Contains(d, m) {
			return true
		}
	}
	return false
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
