package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/payflow-app/payflow/internal/platform/httpx"
)

// Handler exposes the login code endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/request-code", h.RequestCode)
	r.Post("/verify", h.Verify)
}

type requestCodePayload struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyPayload struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodePayload
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RequestCode(r.Context(), req.Email); err != nil {
		h.logger.Error("issue login code", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// Same response for known and unknown accounts.
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyPayload
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired code")
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
