// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

var kindStatus = map[shared.Kind]int{
	shared.KindValidation: http.StatusBadRequest,
	shared.KindNotFound:   http.StatusNotFound,
	shared.KindConflict:   http.StatusConflict,
	shared.KindPolicy:     http.StatusUnprocessableEntity,
	shared.KindTransient:  http.StatusServiceUnavailable,
	shared.KindFatal:      http.StatusInternalServerError,
}

// StatusFor maps an error onto an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, shared.ErrMissingOrg) {
		return http.StatusUnauthorized
	}
	if status, ok := kindStatus[shared.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Fatal and unclassified errors never leak their detail.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	var e *shared.Error
	if status == http.StatusInternalServerError || !errors.As(err, &e) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	JSON(w, status, ProblemDetail{
		Type:    "about:blank",
		Title:   http.StatusText(status),
		Status:  status,
		Detail:  e.Error(),
		Code:    e.Code,
		Details: e.Details,
	})
}
