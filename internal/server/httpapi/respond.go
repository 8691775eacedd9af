// Package httpapi exposes the REST API over chi.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/logging"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"

	msgNotFound         = "Resource not found"
	msgInternal         = "internal error"
	msgUpstream         = "Something went wrong, please try again later"
	msgInvalidBody      = "Invalid request body"
	msgMethodNotAllowed = "Method not allowed"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error onto an HTTP status and a caller-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, common.ErrInvalidArgument):
		return http.StatusBadRequest, common.Message(err)
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, common.Message(err)
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, common.Message(err)
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrEmptyDataset):
		return http.StatusNotFound, common.Message(err)
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, common.Message(err)
	case errors.Is(err, common.ErrUpstream):
		return http.StatusInternalServerError, msgUpstream
	case errors.Is(err, common.ErrMalformedInput):
		return http.StatusInternalServerError, common.Message(err)
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// Error writes the error envelope for err.
func Error(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	status, msg := statusFor(err)
	envStatus := statusFail
	if status >= http.StatusInternalServerError {
		envStatus = statusError
		log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	JSON(w, status, map[string]any{"status": envStatus, "message": msg})
}

func fail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]any{"status": statusFail, "message": msg})
}

// decodeBody reads a JSON object into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return common.NewError(common.ErrInvalidInput, "Request body too large")
	}
	return common.NewError(common.ErrInvalidInput, msgInvalidBody)
}
