package transcription

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/mediatext/command"
	"github.com/nijaru/mediatext/config"
	apperrors "github.com/nijaru/mediatext/errors"
	"github.com/nijaru/mediatext/media"
)

// Transcriber turns canonical audio into text in the configured language.
// Silent audio yields an empty string, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audio media.CanonicalAudio, tier media.ModelTier) (string, error)
}

// New builds the engine selected in cfg.
func New(cfg config.Config, runner command.Runner, logger *logrus.Entry) (Transcriber, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithFields(logrus.Fields{
		"component": "transcription",
		"engine":    cfg.Transcription.Engine,
	})

	switch cfg.Transcription.Engine {
	case config.EngineWhisper, "":
		return NewWhisperCLI(cfg.Tools.Whisper, cfg.Language, cfg.WorkDir, runner, logger), nil
	case config.EngineWhisperCPP:
		return NewWhisperCPP(cfg.Tools.WhisperCPP, cfg.Transcription.ModelDir, cfg.Language, cfg.WorkDir, runner, logger), nil
	case config.EngineOpenAI:
		return NewOpenAI(cfg.Transcription.OpenAIKey, cfg.Transcription.OpenAIBaseURL, cfg.Language, logger), nil
	default:
		return nil, apperrors.Configuration("transcription.New", nil, "unknown transcription engine "+cfg.Transcription.Engine)
	}
}

// checkInput makes sure the audio file is there before an engine is started.
func checkInput(op string, audio media.CanonicalAudio) error {
	info, err := os.Stat(audio.Path)
	if err != nil {
		return apperrors.Transcription(op, err, "audio file is not readable")
	}
	if info.IsDir() {
		return apperrors.Transcription(op, nil, "audio path is a directory: "+audio.Path)
	}
	return nil
}

// readTranscript reads an engine's text output. An empty file means the
// engine heard nothing; a missing one means the run went wrong even if the
// process exited cleanly.
func readTranscript(op, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Transcription(op, err, "engine produced no transcript")
		}
		return "", apperrors.Transcription(op, err, "cannot read transcript")
	}
	return strings.TrimSpace(string(content)), nil
}

// workDir creates a scratch directory for one engine run.
func workDir(op, base string) (string, func(), error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", nil, apperrors.Transcription(op, err, "cannot create work directory")
		}
	}
	dir, err := os.MkdirTemp(base, "transcribe-*")
	if err != nil {
		return "", nil, apperrors.Transcription(op, err, "cannot create work directory")
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

// runFailure wraps a failed engine process as a TranscriptionError.
func runFailure(op string, res command.Result, err error) error {
	e := apperrors.Transcription(op, err, "transcription engine failed")
	e.Detail = res.Diagnostic()
	return e
}
