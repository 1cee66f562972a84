package transcription

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	apperrors "github.com/nijaru/mediatext/errors"
	"github.com/nijaru/mediatext/media"
)

// OpenAI sends audio to the hosted whisper-1 model. The tier only matters
// for local engines.
type OpenAI struct {
	client   *openai.Client
	language string
	logger   *logrus.Entry
}

func NewOpenAI(apiKey, baseURL, language string, logger *logrus.Entry) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(cfg),
		language: language,
		logger:   logger,
	}
}

func (o *OpenAI) Transcribe(ctx context.Context, audio media.CanonicalAudio, tier media.ModelTier) (string, error) {
	const op = "OpenAI.Transcribe"

	if err := checkInput(op, audio); err != nil {
		return "", err
	}

	log := o.logger.WithFields(logrus.Fields{
		"audio":         audio.Path,
		"requestedTier": tier.String(),
	})
	log.Info("Starting transcription")

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audio.Path,
		Language: o.language,
	})
	if err != nil {
		log.WithError(err).Error("OpenAI transcription failed")
		return "", apperrors.Transcription(op, err, "OpenAI transcription request failed")
	}

	text := strings.TrimSpace(resp.Text)
	log.WithField("chars", len(text)).Info("Transcription completed")
	return text, nil
}
