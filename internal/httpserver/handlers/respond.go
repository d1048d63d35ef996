package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
)

type errorResponse struct {
	Detail string `json:"detail"`
	Index  int    `json:"index,omitempty"` // 1-based item that aborted a batch
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps a domain error to its HTTP status. Storage and unknown
// errors are logged and answered with a generic message.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	resp := errorResponse{Detail: err.Error()}
	var be *domain.BatchError
	if errors.As(err, &be) {
		resp.Index = be.Index
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRemoteService), errors.Is(err, domain.ErrUpstreamResponse):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		resp.Detail = "request timed out"
	case errors.Is(err, domain.ErrStorage):
		resp = errorResponse{Detail: "storage error"}
	default:
		resp = errorResponse{Detail: "internal error"}
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Int("status", status), logger.Error(err))
	} else {
		log.Warn("request rejected", logger.Int("status", status), logger.Error(err))
	}
	writeJSON(w, status, resp)
}
