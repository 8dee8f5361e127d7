package notify

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/payflow-app/payflow/internal/platform/httpx"
)

// Handler exposes the read side of notifications. The authenticated user id
// is supplied by the session layer in the X-User-ID header; session
// mechanics live outside this service.
type Handler struct {
	logger *slog.Logger
	router *Router
	dir    UserDirectory
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, router *Router, dir UserDirectory) *Handler {
	return &Handler{logger: logger, router: router, dir: dir}
}

// MountRoutes attaches notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/unread-count", h.UnreadCount)
	r.Post("/{id}/read", h.MarkRead)
	r.Post("/read-all", h.MarkAllRead)
}

func (h *Handler) viewer(r *http.Request) (Recipient, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		return Recipient{}, false
	}
	rec, err := h.dir.Get(r.Context(), id)
	if err != nil {
		return Recipient{}, false
	}
	return rec, true
}

// List returns the viewer's visible notifications, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	notes, err := h.router.ListFor(r.Context(), viewer, limit, offset)
	if err != nil {
		h.logger.Error("list notifications", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": notes})
}

// UnreadCount returns the viewer's unread badge count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	count, err := h.router.UnreadCountFor(r.Context(), viewer)
	if err != nil {
		h.logger.Error("unread count", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead flips one notification to read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid notification id")
		return
	}
	if err := h.router.MarkRead(r.Context(), viewer, id); err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MarkAllRead flips every visible unread notification.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	updated, err := h.router.MarkAllRead(r.Context(), viewer)
	if err != nil {
		h.logger.Error("mark all read", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
