package transcription

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/mediatext/command"
	"github.com/nijaru/mediatext/media"
)

// WhisperCLI runs the openai-whisper command line tool.
type WhisperCLI struct {
	path     string
	language string
	workDir  string
	runner   command.Runner
	logger   *logrus.Entry
}

func NewWhisperCLI(path, language, workDir string, runner command.Runner, logger *logrus.Entry) *WhisperCLI {
	if path == "" {
		path = "whisper"
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &WhisperCLI{
		path:     path,
		language: language,
		workDir:  workDir,
		runner:   runner,
		logger:   logger,
	}
}

func (w *WhisperCLI) Transcribe(ctx context.Context, audio media.CanonicalAudio, tier media.ModelTier) (string, error) {
	const op = "WhisperCLI.Transcribe"

	if err := checkInput(op, audio); err != nil {
		return "", err
	}

	outDir, cleanup, err := workDir(op, w.workDir)
	if err != nil {
		return "", err
	}
	defer cleanup()

	log := w.logger.WithFields(logrus.Fields{
		"audio": audio.Path,
		"model": tier.ModelID(),
	})
	log.Info("Starting transcription")

	res, err := w.runner.Run(ctx, w.path, w.buildArgs(audio.Path, tier, outDir)...)
	if err != nil {
		log.WithError(err).WithField("output", res.Diagnostic()).Error("whisper failed")
		return "", runFailure(op, res, err)
	}

	// whisper names its output after the input file
	text, err := readTranscript(op, filepath.Join(outDir, audio.Stem()+".txt"))
	if err != nil {
		return "", err
	}

	log.WithField("chars", len(text)).Info("Transcription completed")
	return text, nil
}

func (w *WhisperCLI) buildArgs(audioPath string, tier media.ModelTier, outDir string) []string {
	return []string{
		audioPath,
		"--model", tier.ModelID(),
		"--language", w.language,
		"--task", "transcribe",
		"--output_format", "txt",
		"--output_dir", outDir,
		"--fp16", "False",
		"--verbose", "False",
	}
}
