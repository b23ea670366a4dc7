package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/architeacher/nocoflo/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/pkg/idempotency"
)

const (
	apiVersion = "v1"

	contentTypeHeader = "Content-Type"
	applicationJSON   = "application/json"

	codeInvalidJSON    = "INVALID_JSON"
	codeInvalidID      = "INVALID_ID"
	codeValidation     = "VALIDATION_FAILED"
	codeUnauthorized   = "UNAUTHORIZED"
	codeForbidden      = "FORBIDDEN"
	codeNotFound       = "NOT_FOUND"
	codeConflict       = "CONFLICT"
	codeLocked         = "ROW_LOCKED"
	codeBadGateway     = "DATASOURCE_UNAVAILABLE"
	codeUnprocessable  = "DATASOURCE_REJECTED"
	codeInternalError  = "INTERNAL_ERROR"
	msgInvalidBody     = "invalid request body"
	msgInternalFailure = "internal server error"
)

type (
	responseMeta struct {
		RequestID  string `json:"requestId"`
		TraceID    string `json:"traceId,omitempty"`
		APIVersion string `json:"apiVersion"`
	}

	// EnvelopedResponse wraps every successful payload.
	EnvelopedResponse struct {
		Data any          `json:"data"`
		Meta responseMeta `json:"meta"`
	}

	fieldError struct {
		Field   string `json:"field"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}

	ErrorResponse struct {
		Code      string       `json:"code"`
		Message   string       `json:"message"`
		Details   []fieldError `json:"details,omitempty"`
		RequestID string       `json:"requestId,omitempty"`
		Timestamp time.Time    `json:"timestamp"`
	}
)

func newMeta(r *http.Request) responseMeta {
	return responseMeta{
		RequestID:  middleware.GetRequestID(r.Context()),
		TraceID:    extractTraceID(r),
		APIVersion: apiVersion,
	}
}

// extractTraceID reads the trace id out of a W3C traceparent header:
// {version}-{trace-id}-{parent-id}-{flags}.
func extractTraceID(r *http.Request) string {
	traceparent := r.Header.Get("traceparent")
	if len(traceparent) < 55 {
		return ""
	}

	return traceparent[3:35]
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	if notModified(w, r, status, data) {
		return
	}

	writeJSONResponse(w, status, EnvelopedResponse{Data: data, Meta: newMeta(r)})
}

func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set(contentTypeHeader, applicationJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details ...fieldError) {
	writeJSONResponse(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// writeError maps a use case error onto a status code. Anything not
// recognised is a 500 whose cause stays in the logs.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *model.ValidationErrors
	if errors.As(err, &validation) {
		details := make([]fieldError, 0, len(validation.Errors))
		for _, e := range validation.Errors {
			details = append(details, fieldError{Field: e.Field, Message: e.Message, Code: e.Code})
		}

		writeErrorResponse(w, r, http.StatusBadRequest, codeValidation, validation.Error(), details...)

		return
	}

	status, code := classify(err)
	if status == http.StatusInternalServerError {
		reqLogger := h.logger.WithContext(r.Context())

		event := reqLogger.Error().Err(err).Str("path", r.URL.Path)
		if key, ok := idempotency.FromContext(r.Context()); ok {
			event = event.Str("idempotency_key", key)
		}

		event.Msg("request failed")

		writeErrorResponse(w, r, status, code, msgInternalFailure)

		return
	}

	writeErrorResponse(w, r, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInvalidSpec),
		errors.Is(err, model.ErrInvalidConnectionURL),
		errors.Is(err, model.ErrUnknownDatasource),
		errors.Is(err, model.ErrInvalidPermission):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, model.ErrAccessDenied):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, model.ErrTableNotFound),
		errors.Is(err, model.ErrDatabaseNotFound),
		errors.Is(err, model.ErrUserNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, model.ErrLockConflict):
		return http.StatusConflict, codeLocked
	case errors.Is(err, model.ErrDuplicateUser):
		return http.StatusConflict, codeConflict
	case errors.Is(err, model.ErrConnection):
		return http.StatusBadGateway, codeBadGateway
	case errors.Is(err, model.ErrExecution):
		return http.StatusUnprocessableEntity, codeUnprocessable
	}

	return http.StatusInternalServerError, codeInternalError
}
