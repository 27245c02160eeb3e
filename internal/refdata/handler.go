package refdata

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// RefreshEnqueuer schedules a background reference data refresh.
type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context, company string) error
}

// Handler wires the reference data admin endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	enqueuer  RefreshEnqueuer
	validator *validator.Validate
	rateLimit func(http.Handler) http.Handler
}

func NewHandler(logger *slog.Logger, service *Service, enqueuer RefreshEnqueuer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		enqueuer:  enqueuer,
		validator: validator.New(),
		rateLimit: httprate.LimitByIP(60, time.Minute),
	}
}

// MountRoutes registers refdata admin endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post("/api/refdata/exchange-rates", h.handleSaveExchangeRate)
		r.Post("/api/refdata/companies/{company}/refresh", h.handleRefresh)
	})
}

type saveExchangeRateRequest struct {
	FromCurrency string    `json:"from_currency" validate:"required,len=3"`
	ToCurrency   string    `json:"to_currency" validate:"required,len=3"`
	Rate         float64   `json:"rate" validate:"required,gt=0"`
	ValidFrom    time.Time `json:"valid_from,omitempty"`
}

func (h *Handler) handleSaveExchangeRate(w http.ResponseWriter, r *http.Request) {
	var req saveExchangeRateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	rate := ExchangeRate{
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		Rate:         req.Rate,
		ValidFrom:    req.ValidFrom,
	}
	if err := h.service.SaveExchangeRate(r.Context(), rate); err != nil {
		h.logger.Error("save exchange rate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")
	if company == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "company is required")
		return
	}
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "refresh queue is not configured")
		return
	}
	if err := h.enqueuer.EnqueueRefresh(r.Context(), company); err != nil {
		h.logger.Error("enqueue refdata refresh", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "scheduled", "company": company})
}
