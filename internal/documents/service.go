// Package documents exposes the computation engine over HTTP. A compute
// request carries a full transactional document; the service resolves the
// company's reference data, runs the engine and returns the document with
// every derived field filled in.
package documents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-erp/meridian-erp/internal/taxation"
)

// ReferenceData is the slice of refdata the compute path needs.
type ReferenceData interface {
	EngineSettings(ctx context.Context, company string, currencies ...string) (taxation.Settings, taxation.Precisions, error)
	ExchangeRate(ctx context.Context, from, to string) (float64, error)
	TaxTemplate(ctx context.Context, company, name string) ([]*taxation.TaxRow, error)
	ReturnModes(ctx context.Context, company string) ([]string, error)
}

// Service orchestrates one compute call.
type Service struct {
	refdata ReferenceData
	logger  *slog.Logger
}

func NewService(refdata ReferenceData, logger *slog.Logger) *Service {
	return &Service{refdata: refdata, logger: logger}
}

// ComputeRequest is the body of POST /api/documents/compute.
type ComputeRequest struct {
	Company string `json:"company" validate:"required"`
	// TaxTemplate optionally names a charge template whose rows seed the tax
	// table when the document carries none.
	TaxTemplate string `json:"tax_template,omitempty"`
	// UpdatePaidAmount mirrors the interactive recompute toggle: when false,
	// outstanding is derived without touching the paid amount.
	UpdatePaidAmount *bool              `json:"update_paid_amount,omitempty"`
	Document         *taxation.Document `json:"document" validate:"required"`
}

// Compute resolves reference data for the document's company, fills in the
// conversion rate and tax rows where the caller omitted them, and runs the
// engine. The returned document is the same pointer, mutated in place.
func (s *Service) Compute(ctx context.Context, req ComputeRequest) (*taxation.Document, error) {
	doc := req.Document
	doc.Company = req.Company

	settings, prec, err := s.refdata.EngineSettings(ctx, req.Company, doc.Currency, doc.PartyAccountCurrency)
	if err != nil {
		return nil, fmt.Errorf("documents: resolve settings: %w", err)
	}

	if doc.ConversionRate == 0 && doc.Currency != "" && doc.Currency != settings.CompanyCurrency {
		rate, err := s.refdata.ExchangeRate(ctx, doc.Currency, settings.CompanyCurrency)
		if err != nil {
			return nil, fmt.Errorf("documents: resolve exchange rate: %w", err)
		}
		doc.ConversionRate = rate
	}

	if req.TaxTemplate != "" && len(doc.Taxes) == 0 {
		rows, err := s.refdata.TaxTemplate(ctx, req.Company, req.TaxTemplate)
		if err != nil {
			return nil, fmt.Errorf("documents: resolve tax template: %w", err)
		}
		doc.Taxes = rows
	}

	pc := taxation.PaymentContext{UpdatePaidAmount: true}
	if req.UpdatePaidAmount != nil {
		pc.UpdatePaidAmount = *req.UpdatePaidAmount
	}
	if doc.IsPOS && doc.IsReturn {
		modes, err := s.refdata.ReturnModes(ctx, req.Company)
		if err != nil {
			return nil, fmt.Errorf("documents: resolve return modes: %w", err)
		}
		pc.ReturnModes = modes
	}

	engine := taxation.NewEngine(settings, prec)
	if err := engine.RecomputeWithPayments(doc, pc); err != nil {
		return nil, err
	}
	return doc, nil
}
