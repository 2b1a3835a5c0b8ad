package api

import (
	"errors"
	"net/http"

	"dentaldir/internal/joblock"
	"dentaldir/internal/services"
)

// StatusFor maps an error to the HTTP status reported to callers.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, joblock.ErrJobLocked):
		return http.StatusConflict
	}
	switch services.Classify(err) {
	case services.KindInput:
		return http.StatusBadRequest
	case services.KindMissing:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
