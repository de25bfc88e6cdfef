// Package handler serves the content write endpoints. With Kafka enabled,
// writes are published and reach the index through the consumer; without
// it they are applied to the local index directly.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/help-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/logger"
)

const maxBodyBytes = 8 << 20

type Handler struct {
	indexer   *indexer.Indexer
	publisher *publisher.Publisher
	source    indexer.Source
	logger    *slog.Logger
}

// New creates the handler. pub and source may be nil; without a source
// reindexing is unavailable.
func New(ix *indexer.Indexer, pub *publisher.Publisher, source indexer.Source) *Handler {
	return &Handler{
		indexer:   ix,
		publisher: pub,
		source:    source,
		logger:    slog.Default().With("component", "content-handler"),
	}
}

// Register adds the content routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/content", h.Upsert)
	mux.HandleFunc("DELETE /api/v1/content/{id}", h.Delete)
	mux.HandleFunc("POST /api/v1/reindex", h.Reindex)
}

func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.ContentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateContentRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.publisher != nil {
		event, err := h.publisher.Upsert(ctx, &req)
		if err != nil {
			log.Error("content publish failed", "error", err)
			h.writeError(w, http.StatusServiceUnavailable, "content update could not be published")
			return
		}
		h.writeJSON(w, http.StatusAccepted, ingestion.ContentResponse{
			EventID: event.EventID,
			Status:  "accepted",
		})
		return
	}

	report := h.indexer.Upsert(ctx, req.ContentType, req.Items)
	log.Info("content indexed",
		"content_type", req.ContentType,
		"indexed", report.Indexed,
		"skipped", len(report.Skipped),
	)
	h.writeJSON(w, http.StatusOK, ingestion.ContentResponse{
		Status:  "indexed",
		Indexed: report.Indexed,
		Skipped: len(report.Skipped),
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, apperrors.ErrMissingID.Error())
		return
	}

	if h.publisher != nil {
		event, err := h.publisher.Delete(ctx, []string{id})
		if err != nil {
			logger.FromContext(ctx).Error("content delete publish failed", "id", id, "error", err)
			h.writeError(w, http.StatusServiceUnavailable, "content delete could not be published")
			return
		}
		h.writeJSON(w, http.StatusAccepted, ingestion.ContentResponse{
			EventID: event.EventID,
			Status:  "accepted",
		})
		return
	}

	if h.indexer.Delete(ctx, id) == 0 {
		h.writeError(w, http.StatusNotFound, "content not found")
		return
	}
	h.writeJSON(w, http.StatusOK, ingestion.ContentResponse{Status: "removed", Removed: 1})
}

// Reindex rebuilds the local index from the configured source.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		h.writeError(w, http.StatusServiceUnavailable, "no content source configured")
		return
	}
	report, err := h.indexer.Reload(r.Context(), h.source)
	if err != nil {
		logger.FromContext(r.Context()).Error("reindex failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "reindex failed")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
