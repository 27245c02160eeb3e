package documents

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/taxation"
)

// Handler wires the compute endpoint.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   *observability.Metrics
	validator *validator.Validate
	rateLimit func(http.Handler) http.Handler
}

func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics, requestsPerMinute int) *Handler {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 300
	}
	return &Handler{
		logger:    logger,
		service:   service,
		metrics:   metrics,
		validator: validator.New(),
		rateLimit: httprate.LimitByIP(requestsPerMinute, time.Minute),
	}
}

// MountRoutes registers document endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post("/api/documents/compute", h.handleCompute)
	})
}

type computeResponse struct {
	RequestID string             `json:"request_id"`
	Document  *taxation.Document `json:"document"`
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := h.logger.With(slog.String("request_id", requestID))

	var req ComputeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		detail := "invalid request"
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			detail = fieldErrs[0].Error()
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", detail)
		return
	}

	start := time.Now()
	doc, err := h.service.Compute(r.Context(), req)
	if err != nil {
		h.metrics.ObserveCompute(string(req.Document.Doctype), "error", time.Since(start))
		if isComputeInputError(err) {
			logger.Info("compute rejected", slog.Any("error", err))
			httpx.Problem(w, http.StatusUnprocessableEntity, "Uncomputable Document", err.Error())
			return
		}
		logger.Error("compute failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	h.metrics.ObserveCompute(string(doc.Doctype), "ok", time.Since(start))
	logger.Info("document computed",
		slog.String("doctype", string(doc.Doctype)),
		slog.String("company", doc.Company),
		slog.Float64("grand_total", doc.GrandTotal),
	)
	httpx.JSON(w, http.StatusOK, computeResponse{RequestID: requestID, Document: doc})
}

// isComputeInputError reports whether the error stems from the document the
// caller sent rather than from infrastructure.
func isComputeInputError(err error) bool {
	return errors.Is(err, taxation.ErrMissingConversionRate) ||
		errors.Is(err, taxation.ErrDiscountTargetUnset) ||
		errors.Is(err, taxation.ErrPreviousRowOnFirst) ||
		errors.Is(err, taxation.ErrBadRowReference) ||
		errors.Is(err, taxation.ErrInvalidInclusiveTax)
}
