package pipeline

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/mediatext/command"
	"github.com/nijaru/mediatext/config"
	"github.com/nijaru/mediatext/converter"
	apperrors "github.com/nijaru/mediatext/errors"
	"github.com/nijaru/mediatext/fetcher"
	"github.com/nijaru/mediatext/media"
	"github.com/nijaru/mediatext/output"
	"github.com/nijaru/mediatext/transcription"
	"github.com/nijaru/mediatext/utils"
	"github.com/nijaru/mediatext/validation"
)

type Resolver interface {
	ResolveLocal(path string) (media.MediaReference, error)
}

type Converter interface {
	Convert(ctx context.Context, ref media.MediaReference) (media.CanonicalAudio, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dir string) media.MaybeAudio
}

// Orchestrator runs one job at a time through resolve, acquire, transcribe
// and write. It holds no per-job state and may be reused.
type Orchestrator struct {
	cfg         config.Config
	runner      command.Runner
	resolver    Resolver
	converter   Converter
	fetcher     Fetcher
	transcriber transcription.Transcriber
	writer      output.Writer
	logger      *logrus.Entry
	newID       func() string
	now         func() time.Time
}

type Option func(*Orchestrator)

// WithRunner replaces the process runner used by the default components.
func WithRunner(r command.Runner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

func WithResolver(r Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

func WithConverter(c Converter) Option {
	return func(o *Orchestrator) { o.converter = c }
}

func WithFetcher(f Fetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

func WithTranscriber(t transcription.Transcriber) Option {
	return func(o *Orchestrator) { o.transcriber = t }
}

func WithWriter(w output.Writer) Option {
	return func(o *Orchestrator) { o.writer = w }
}

func WithLogger(l *logrus.Entry) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// New wires the default components from cfg; options replace any of them.
func New(cfg config.Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:   cfg,
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if o.runner == nil {
		o.runner = command.NewExecRunner(o.logger)
	}
	if o.resolver == nil {
		o.resolver = media.NewResolver(cfg.SupportedExtensions, cfg.DirectExtensions)
	}
	if o.converter == nil {
		o.converter = converter.New(converter.Options{
			FFmpegPath:  cfg.Tools.FFmpeg,
			FFprobePath: cfg.Tools.FFprobe,
			Verify:      cfg.Tools.VerifyAudio,
		}, o.runner, o.logger)
	}
	if o.fetcher == nil {
		o.fetcher = fetcher.New(fetcher.Options{
			YtDlpPath:      cfg.Tools.YtDlp,
			Retries:        cfg.Fetch.Retries,
			Attempts:       cfg.Fetch.Attempts,
			InitialBackoff: cfg.Fetch.Backoff,
			MaxBackoff:     cfg.Fetch.MaxBackoff,
			RateInterval:   cfg.Fetch.RateInterval,
			UserAgent:      cfg.Fetch.UserAgent,
			CookieFile:     cfg.Fetch.CookieFile,
		}, o.runner, o.logger)
	}
	if o.transcriber == nil {
		t, err := transcription.New(cfg, o.runner, o.logger)
		if err != nil {
			return nil, err
		}
		o.transcriber = t
	}
	if o.writer == nil {
		o.writer = output.NewRouter(cfg.S3, o.logger)
	}

	o.logger = o.logger.WithField("component", "pipeline")
	return o, nil
}

// RunJob takes job from CREATED to DONE or FAILED. Precondition failures
// (missing output directory, empty source, unknown tier) are returned as
// bare typed errors before any stage starts; stage failures come back as
// *errors.JobError naming the stage.
func (o *Orchestrator) RunJob(ctx context.Context, job media.Job, observer Observer) (media.TranscriptionResult, error) {
	const op = "Orchestrator.RunJob"

	if job.ID == "" {
		job.ID = o.newID()
	}
	m := newMachine(job.ID, observer, o.now)

	log := o.logger.WithFields(logrus.Fields{
		"jobID":  job.ID,
		"source": job.Source,
	})

	outDir := o.cfg.ResolveOutputDir(job.OutputDir)
	if outDir == "" {
		return media.TranscriptionResult{}, apperrors.Configuration(op, nil, "no output directory selected")
	}
	if err := validation.ValidateSource(job.Source); err != nil {
		return media.TranscriptionResult{}, err
	}

	tier := job.Tier
	if tier == "" {
		tier = o.cfg.DefaultTier
	}
	if !tier.Valid() {
		return media.TranscriptionResult{}, apperrors.Validation(op, nil, "unknown model tier "+tier.String())
	}

	kind := job.Kind
	if kind == "" {
		kind = media.ClassifySource(job.Source)
	}
	if kind != media.SourceRemoteURL && kind != media.SourceLocalFile {
		return media.TranscriptionResult{}, apperrors.Validation(op, nil, "unknown source kind "+string(kind))
	}

	log = log.WithFields(logrus.Fields{
		"kind":   kind,
		"model":  tier,
		"output": outDir,
	})
	log.Info("Job started")

	r := &run{o: o, m: m, log: log, started: o.now()}
	if err := r.advance(StateResolving); err != nil {
		return media.TranscriptionResult{}, o.fail(m, job.ID, err)
	}

	source := strings.TrimSpace(job.Source)
	var (
		audio media.CanonicalAudio
		stem  string
	)

	switch kind {
	case media.SourceRemoteURL:
		if err := r.advance(StateDownloading); err != nil {
			return media.TranscriptionResult{}, o.fail(m, job.ID, err)
		}

		dir := outDir
		if output.IsRemote(outDir) {
			dir = o.cfg.WorkDir
		}
		fetched := o.fetcher.Fetch(ctx, source, dir)
		got, ok := fetched.Get()
		if !ok {
			return media.TranscriptionResult{}, o.fail(m, job.ID, apperrors.Download(op, nil, fetched.Reason()))
		}
		if dir != outDir {
			defer removeScratch(log, got.Path)
		}
		audio, stem = got, got.Stem()

	case media.SourceLocalFile:
		ref, err := o.resolver.ResolveLocal(source)
		if err != nil {
			return media.TranscriptionResult{}, o.fail(m, job.ID, err)
		}
		stem = ref.Stem()

		if ref.NeedsConversion {
			if err := r.advance(StateConverting); err != nil {
				return media.TranscriptionResult{}, o.fail(m, job.ID, err)
			}
			if audio, err = o.converter.Convert(ctx, ref); err != nil {
				return media.TranscriptionResult{}, o.fail(m, job.ID, err)
			}
		} else {
			audio = media.CanonicalAudio{Path: ref.Path}
		}
	}

	if err := r.advance(StateTranscribing); err != nil {
		return media.TranscriptionResult{}, o.fail(m, job.ID, err)
	}
	text, err := o.transcriber.Transcribe(ctx, audio, tier)
	if err != nil {
		return media.TranscriptionResult{}, o.fail(m, job.ID, err)
	}

	if err := r.advance(StateWriting); err != nil {
		return media.TranscriptionResult{}, o.fail(m, job.ID, err)
	}
	if o.cfg.SentenceBreaks {
		text = utils.FormatText(text)
	}
	location, err := o.writer.Write(ctx, outDir, stem, text)
	if err != nil {
		return media.TranscriptionResult{}, o.fail(m, job.ID, err)
	}

	if err := r.advance(StateDone); err != nil {
		return media.TranscriptionResult{}, o.fail(m, job.ID, err)
	}

	log.WithFields(logrus.Fields{
		"path":     location,
		"duration": o.now().Sub(r.started),
	}).Info("Job completed")

	return media.TranscriptionResult{
		JobID:      job.ID,
		Text:       text,
		SourceStem: stem,
		OutputPath: location,
	}, nil
}

// fail moves the job to FAILED and tags err with the stage it came from.
func (o *Orchestrator) fail(m *machine, jobID string, err error) error {
	stage := m.state
	if advErr := m.advance(StateFailed, err); advErr != nil {
		o.logger.WithError(advErr).WithField("jobID", jobID).Error("Cannot mark job failed")
	}

	o.logger.WithError(err).WithFields(logrus.Fields{
		"jobID": jobID,
		"stage": stage,
		"kind":  apperrors.KindOf(err),
	}).Error("Job failed")

	return &apperrors.JobError{JobID: jobID, Stage: stage.String(), Err: err}
}

// run times stages for debug logging.
type run struct {
	o       *Orchestrator
	m       *machine
	log     *logrus.Entry
	started time.Time
	entered time.Time
}

func (r *run) advance(to State) error {
	now := r.o.now()
	if !r.entered.IsZero() {
		r.log.WithFields(logrus.Fields{
			"stage":    r.m.state,
			"duration": now.Sub(r.entered),
		}).Debug("Stage finished")
	}
	r.entered = now
	return r.m.advance(to, nil)
}

func removeScratch(log *logrus.Entry, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", path).Warn("Failed to remove downloaded audio")
	}
}
