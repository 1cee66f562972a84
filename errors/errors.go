package errors

import (
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Kind names the class of a pipeline failure. The string value is what
// callers display.
type Kind string

const (
	KindNotFound          Kind = "NotFoundError"
	KindUnsupportedFormat Kind = "UnsupportedFormatError"
	KindConversion        Kind = "ConversionError"
	KindDownload          Kind = "DownloadError"
	KindTranscription     Kind = "TranscriptionError"
	KindConfiguration     Kind = "ConfigurationError"
	KindValidation        Kind = "ValidationError"
	KindWrite             Kind = "WriteError"
	KindInternal          Kind = "InternalError"
)

// Sentinels for errors.Is comparisons by kind.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrConversion        = &Error{Kind: KindConversion}
	ErrDownload          = &Error{Kind: KindDownload}
	ErrTranscription     = &Error{Kind: KindTranscription}
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrWrite             = &Error{Kind: KindWrite}
)

type Error struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"-"`
	Message string `json:"error"`
	// Detail holds diagnostic output of an external tool, if any.
	Detail string `json:"detail,omitempty"`
	Err    error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op string, err error, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

func NotFound(op string, err error, message string) *Error {
	return newError(KindNotFound, op, err, message)
}

func UnsupportedFormat(op string, err error, message string) *Error {
	return newError(KindUnsupportedFormat, op, err, message)
}

// Conversion records a failed transcode together with the tool's stderr.
func Conversion(op string, err error, message, detail string) *Error {
	e := newError(KindConversion, op, err, message)
	e.Detail = detail
	return e
}

func Download(op string, err error, message string) *Error {
	return newError(KindDownload, op, err, message)
}

func Transcription(op string, err error, message string) *Error {
	return newError(KindTranscription, op, err, message)
}

func Configuration(op string, err error, message string) *Error {
	return newError(KindConfiguration, op, err, message)
}

func Validation(op string, err error, message string) *Error {
	return newError(KindValidation, op, err, message)
}

func Write(op string, err error, message string) *Error {
	return newError(KindWrite, op, err, message)
}

func Internal(op string, err error, message string) *Error {
	return newError(KindInternal, op, err, message)
}

// JobError tags a stage failure with the orchestrator state it happened in.
type JobError struct {
	JobID string
	Stage string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job failed during %s: %v", e.Stage, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if pkgerrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// StageOf reports the stage recorded by a *JobError in err's chain.
func StageOf(err error) (string, bool) {
	var jobErr *JobError
	if pkgerrors.As(err, &jobErr) {
		return jobErr.Stage, true
	}
	return "", false
}

// StatusCode maps an error to the HTTP status the API responds with.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation, KindUnsupportedFormat:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDownload:
		return http.StatusBadGateway
	case KindConversion:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
