package requests

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/payflow-app/payflow/internal/platform/httpx"
	"github.com/payflow-app/payflow/internal/shared"
)

// Handler exposes the payment request endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Submit)
	r.Get("/{id}", h.Show)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/finance-approve", h.FinanceApprove)
	r.Post("/{id}/reject", h.Reject)
	r.Post("/{id}/resubmit", h.Resubmit)
	r.Post("/{id}/proof", h.RecordProof)
	r.Post("/{id}/complete", h.Complete)
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return id
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var req ListRequestsRequest
	if status := r.URL.Query().Get("status"); status != "" {
		req.Status = &status
	}
	if dept := r.URL.Query().Get("department"); dept != "" {
		req.Department = &dept
	}
	if raw := r.URL.Query().Get("requestor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid requestor_id")
			return
		}
		req.RequestorID = &id
	}
	req.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	req.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	list, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requests": list, "total": total})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	var (
		pr  *PaymentRequest
		err error
	)
	if publicID, perr := uuid.Parse(raw); perr == nil {
		pr, err = h.service.GetByPublicID(r.Context(), publicID)
	} else if id, ierr := strconv.ParseInt(raw, 10, 64); ierr == nil {
		pr, err = h.service.Get(r.Context(), id)
	} else {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
		return
	}
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	requestor := actorID(r)
	if requestor == 0 {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	pr, err := h.service.Submit(r.Context(), requestor, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pr)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Approve)
}

func (h *Handler) FinanceApprove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.FinanceApprove)
}

func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Resubmit)
}

func (h *Handler) RecordProof(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.RecordProofUpload)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Complete)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
		return
	}
	var req RejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	pr, err := h.service.Reject(r.Context(), id, actorID(r), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, actorID int64) (*PaymentRequest, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
		return
	}
	pr, err := op(r.Context(), id, actorID(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, shared.ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
