package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nijaru/mediatext/config"
	apperrors "github.com/nijaru/mediatext/errors"
	"github.com/nijaru/mediatext/media"
	"github.com/nijaru/mediatext/metrics"
	"github.com/nijaru/mediatext/middleware"
	"github.com/nijaru/mediatext/pipeline"
	"github.com/nijaru/mediatext/utils"
)

// JobRunner is satisfied by *pipeline.Orchestrator.
type JobRunner interface {
	RunJob(ctx context.Context, job media.Job, observer pipeline.Observer) (media.TranscriptionResult, error)
}

// TranscribeRequest accepts exactly one of URL or Path.
type TranscribeRequest struct {
	URL       string `json:"url" validate:"omitempty,http_url,excluded_with=Path"`
	Path      string `json:"path" validate:"required_without=URL"`
	Model     string `json:"model" validate:"omitempty,oneof=tiny base small medium large"`
	OutputDir string `json:"output_dir"`
}

type TranscribeResponse struct {
	JobID  string `json:"job_id"`
	Text   string `json:"text"`
	Stem   string `json:"stem"`
	Output string `json:"output"`
}

type Handler struct {
	cfg      config.Config
	runner   JobRunner
	metrics  *metrics.Metrics
	validate *validator.Validate
	limiter  *rate.Limiter
	logger   *logrus.Entry

	// one job at a time
	mu sync.Mutex
}

// New builds the HTTP handlers. m may be nil to disable /metrics.
func New(cfg config.Config, runner JobRunner, m *metrics.Metrics, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{
		cfg:      cfg,
		runner:   runner,
		metrics:  m,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limiter:  rate.NewLimiter(rate.Every(cfg.Server.RateLimitInterval), cfg.Server.RateLimit),
		logger:   logger.WithField("component", "http"),
	}
}

// Routes returns the full handler tree with logging applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /transcribe", middleware.RateLimit(h.limiter)(http.HandlerFunc(h.Transcribe)))
	mux.HandleFunc("GET /health", h.Health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
	return middleware.Chain(mux, middleware.Logging(h.logger))
}

func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.Transcribe"
	log := middleware.GetLogger(r.Context())

	req, err := decodeRequest(r)
	if err != nil {
		utils.RespondWithError(w, apperrors.Validation(op, err, "malformed request body"))
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Path = strings.TrimSpace(req.Path)
	req.Model = strings.ToLower(strings.TrimSpace(req.Model))

	if err := h.validate.Struct(req); err != nil {
		log.WithError(err).Warn("Request validation failed")
		utils.RespondWithError(w, apperrors.Validation(op, nil, describeValidation(err)))
		return
	}

	job, err := h.newJob(req)
	if err != nil {
		log.WithError(err).Warn("Request rejected")
		utils.RespondWithError(w, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Server.JobTimeout)
	defer cancel()

	log = log.WithField("jobID", job.ID)
	observer := func(ev pipeline.Event) {
		log.WithField("state", ev.State).Debug(ev.Status)
	}
	if h.metrics != nil {
		observer = pipeline.Chain(h.metrics.Observe, observer)
	}

	result, err := h.runner.RunJob(ctx, job, observer)
	if err != nil {
		if _, staged := apperrors.StageOf(err); !staged && h.metrics != nil {
			h.metrics.Rejected(job.ID, err)
		}
		log.WithError(err).Error("Transcription failed")
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, TranscribeResponse{
		JobID:  result.JobID,
		Text:   result.Text,
		Stem:   result.SourceStem,
		Output: result.OutputPath,
	})
}

// newJob confines client supplied paths to the server's configured roots.
func (h *Handler) newJob(req TranscribeRequest) (media.Job, error) {
	job := media.Job{
		ID:     uuid.NewString(),
		Kind:   media.SourceRemoteURL,
		Source: req.URL,
		Tier:   media.ModelTier(req.Model),
	}

	if req.URL == "" {
		src, err := localSource(h.cfg.Server.MediaRoot, req.Path)
		if err != nil {
			return media.Job{}, err
		}
		job.Kind = media.SourceLocalFile
		job.Source = src
	}

	dir, err := outputDir(h.cfg.OutputDir, strings.TrimSpace(req.OutputDir))
	if err != nil {
		return media.Job{}, err
	}
	job.OutputDir = dir
	return job, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"engine":   h.cfg.Transcription.Engine,
		"language": h.cfg.Language,
	})
}

func decodeRequest(r *http.Request) (TranscribeRequest, error) {
	var req TranscribeRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		err := dec.Decode(&req)
		return req, err
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.URL = r.FormValue("url")
	req.Path = r.FormValue("path")
	req.Model = r.FormValue("model")
	req.OutputDir = r.FormValue("output_dir")
	return req, nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required_without":
		return "either url or path is required"
	case "excluded_with":
		return "url and path are mutually exclusive"
	case "http_url":
		return "url must be an http or https URL"
	case "oneof":
		return fmt.Sprintf("model must be one of %s", fe.Param())
	default:
		return fmt.Sprintf("invalid %s", strings.ToLower(fe.Field()))
	}
}
