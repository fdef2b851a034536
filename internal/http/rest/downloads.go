package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/grabber/internal/downloader"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/italolelis/grabber/internal/storage"
	"github.com/italolelis/grabber/internal/transfer"
)

// Downloads is what the handler needs from a downloader.Downloader.
type Downloads interface {
	Start(ctx context.Context, url, dest string) (*downloader.Job, error)
	Current() (downloader.Status, bool)
	Pause() error
	Resume() error
	TogglePause() (bool, error)
	History(ctx context.Context) ([]storage.Record, error)
}

type StartRequest struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

type PauseResponse struct {
	Paused bool `json:"paused"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type DownloadsHandler struct {
	downloads Downloads
}

// NewDownloadsHandler creates a new downloads handler.
func NewDownloadsHandler(downloads Downloads) *DownloadsHandler {
	return &DownloadsHandler{downloads: downloads}
}

func (h *DownloadsHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/downloads", h.HandleStart)
	r.Get("/downloads/current", h.HandleCurrent)
	r.Post("/downloads/current/pause", h.HandlePause)
	r.Post("/downloads/current/resume", h.HandleResume)
	r.Post("/downloads/current/toggle", h.HandleToggle)
	r.Get("/history", h.HandleHistory)

	return r
}

// HandleStart starts a new transfer.
func (h *DownloadsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("failed to decode request", "err", err)
		writeJSON(r.Context(), w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})

		return
	}

	job, err := h.downloads.Start(r.Context(), req.URL, req.Path)
	if err != nil {
		h.writeError(r.Context(), w, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusAccepted, job.Status())
}

func (h *DownloadsHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	status, ok := h.downloads.Current()
	if !ok {
		h.writeError(r.Context(), w, downloader.ErrNoActiveDownload)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, status)
}

func (h *DownloadsHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.downloads.Pause(); err != nil {
		h.writeError(r.Context(), w, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, PauseResponse{Paused: true})
}

func (h *DownloadsHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	if err := h.downloads.Resume(); err != nil {
		h.writeError(r.Context(), w, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, PauseResponse{Paused: false})
}

func (h *DownloadsHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	paused, err := h.downloads.TogglePause()
	if err != nil {
		h.writeError(r.Context(), w, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, PauseResponse{Paused: paused})
}

func (h *DownloadsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.downloads.History(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, records)
}

func (h *DownloadsHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var invalid *transfer.InvalidInputError

	switch {
	case errors.As(err, &invalid):
		status = http.StatusBadRequest
	case errors.Is(err, downloader.ErrDownloadInProgress):
		status = http.StatusConflict
	case errors.Is(err, downloader.ErrNoActiveDownload):
		status = http.StatusNotFound
	default:
		logctx.LoggerFromContext(ctx).Error("failed to handle request", "err", err)
	}

	writeJSON(ctx, w, status, ErrorResponse{Error: err.Error(), Kind: string(transfer.KindOf(err))})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to encode response", "err", err)
	}
}
