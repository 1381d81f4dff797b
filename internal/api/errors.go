package api

import (
	"context"
	"errors"
	"net/http"

	"example.com/healthscore/internal/domain"
)

// errorStatus maps service and guard errors to an HTTP status and error type.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrMetricNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict, string(domain.KindSyncInProgress)
	case errors.Is(err, domain.ErrSyncDisabled),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNoCredential):
		return http.StatusPreconditionFailed, string(domain.KindOf(err))
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnprocessableEntity, string(domain.KindAuthentication)
	case errors.Is(err, domain.ErrFetch):
		return http.StatusBadGateway, string(domain.KindFetch)
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, string(domain.KindTimeout)
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

// syncFailureStatus is the status of a sync run that ended in the failure outcome.
func syncFailureStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindAuthentication, domain.KindFetch:
		return http.StatusBadGateway
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindIntegrity:
		return http.StatusPreconditionFailed
	case domain.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
