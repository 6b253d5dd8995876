// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"log/slog"
	"net/http"

	"github.com/voteverse/server/models"
	"github.com/voteverse/server/voting"
)

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind voting.Kind) int {
	switch kind {
	case voting.KindNotFound:
		return http.StatusNotFound
	case voting.KindForbidden:
		return http.StatusForbidden
	case voting.KindUnauthorized:
		return http.StatusUnauthorized
	case voting.KindConflict:
		return http.StatusConflict
	case voting.KindValidation:
		return http.StatusBadRequest
	case voting.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error response. Client errors carry their
// message and reason code; server errors are logged and replaced with
// internalMsg so no internal detail leaves the process.
func WriteError(w http.ResponseWriter, err error, internalMsg string) {
	kind := voting.KindOf(err)
	status := StatusFor(kind)

	resp := models.ErrorResponse{
		Error:  http.StatusText(status),
		Reason: voting.ReasonOf(err),
	}

	switch kind {
	case voting.KindInternal:
		slog.Error(internalMsg, "error", err)
		resp.Message = internalMsg
	case voting.KindUnavailable:
		slog.Error(internalMsg, "error", err)
		resp.Message = "Service temporarily unavailable, please retry"
		w.Header().Set("Retry-After", "1")
	default:
		resp.Message = err.Error()
	}

	JSONResponse(w, status, resp)
}
