package transcription

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/mediatext/command"
	apperrors "github.com/nijaru/mediatext/errors"
	"github.com/nijaru/mediatext/media"
)

// WhisperCPP runs a whisper.cpp binary against ggml model files.
type WhisperCPP struct {
	binary   string
	modelDir string
	language string
	workDir  string
	runner   command.Runner
	logger   *logrus.Entry

	// resolved model file per tier, kept for the life of the process
	models sync.Map
}

func NewWhisperCPP(binary, modelDir, language, workDir string, runner command.Runner, logger *logrus.Entry) *WhisperCPP {
	if binary == "" {
		binary = "whisper-cli"
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &WhisperCPP{
		binary:   binary,
		modelDir: modelDir,
		language: language,
		workDir:  workDir,
		runner:   runner,
		logger:   logger,
	}
}

func (w *WhisperCPP) Transcribe(ctx context.Context, audio media.CanonicalAudio, tier media.ModelTier) (string, error) {
	const op = "WhisperCPP.Transcribe"

	if err := checkInput(op, audio); err != nil {
		return "", err
	}

	model, err := w.modelPath(tier)
	if err != nil {
		return "", err
	}

	outDir, cleanup, err := workDir(op, w.workDir)
	if err != nil {
		return "", err
	}
	defer cleanup()

	outBase := filepath.Join(outDir, "transcript")
	args := []string{
		"-m", model,
		"-f", audio.Path,
		"-l", w.language,
		"-nt",
		"-otxt",
		"-of", outBase,
	}

	log := w.logger.WithFields(logrus.Fields{
		"audio": audio.Path,
		"model": model,
	})
	log.Info("Starting transcription")

	res, err := w.runner.Run(ctx, w.binary, args...)
	if err != nil {
		log.WithError(err).WithField("output", res.Diagnostic()).Error("whisper.cpp failed")
		return "", runFailure(op, res, err)
	}

	text, err := readTranscript(op, outBase+".txt")
	if err != nil {
		return "", err
	}

	log.WithField("chars", len(text)).Info("Transcription completed")
	return text, nil
}

// modelPath finds ggml-<id>.bin, or else the first ggml-<id>*.bin variant
// (such as a quantized build), in the model directory.
func (w *WhisperCPP) modelPath(tier media.ModelTier) (string, error) {
	const op = "WhisperCPP.modelPath"

	if cached, ok := w.models.Load(tier); ok {
		return cached.(string), nil
	}

	exact := filepath.Join(w.modelDir, "ggml-"+tier.ModelID()+".bin")
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		w.models.Store(tier, exact)
		return exact, nil
	}

	matches, err := filepath.Glob(filepath.Join(w.modelDir, "ggml-"+tier.ModelID()+"*.bin"))
	if err != nil || len(matches) == 0 {
		return "", apperrors.Transcription(op, err, "no whisper.cpp model for tier "+tier.String()+" in "+w.modelDir)
	}
	sort.Strings(matches)

	actual, _ := w.models.LoadOrStore(tier, matches[0])
	return actual.(string), nil
}
