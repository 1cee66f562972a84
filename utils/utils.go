package utils

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "github.com/nijaru/mediatext/errors"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Stage string `json:"stage,omitempty"`
}

func HandleError(w http.ResponseWriter, message string, statusCode int) {
	RespondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// RespondWithError writes err with the status its kind maps to.
func RespondWithError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{
		Error: err.Error(),
		Kind:  string(apperrors.KindOf(err)),
	}
	if stage, ok := apperrors.StageOf(err); ok {
		resp.Stage = stage
	}
	RespondWithJSON(w, apperrors.StatusCode(err), resp)
}

func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
	}
}

// FormatText puts every sentence on its own line.
func FormatText(text string) string {
	text = strings.TrimSpace(text)
	var builder strings.Builder
	for _, char := range text {
		builder.WriteRune(char)
		if char == '.' || char == '!' || char == '?' {
			builder.WriteRune('\n')
		}
	}
	return builder.String()
}
