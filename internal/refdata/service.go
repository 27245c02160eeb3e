package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/taxation"
)

// Service reads reference data through a Redis cache and collapses concurrent
// cache misses for the same key into a single database round trip.
type Service struct {
	repo   Repository
	cache  *redis.Client
	logger *slog.Logger
	ttl    time.Duration
	group  singleflight.Group
}

func NewService(repo Repository, cache *redis.Client, logger *slog.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{repo: repo, cache: cache, logger: logger, ttl: ttl}
}

// CompanyProfile returns the cached profile for a company.
func (s *Service) CompanyProfile(ctx context.Context, company string) (CompanyProfile, error) {
	return cached(ctx, s, "refdata:company:"+company, func(ctx context.Context) (CompanyProfile, error) {
		return s.repo.GetCompanyProfile(ctx, company)
	})
}

// CurrencyInfo returns formatting metadata for a currency code. Codes absent
// from the database fall back to CLDR cash-rounding data, so any valid ISO
// 4217 code resolves.
func (s *Service) CurrencyInfo(ctx context.Context, code string) (Currency, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Currency{}, fmt.Errorf("%w: currency code %q", httpx.ErrValidation, code)
	}

	cur, err := cached(ctx, s, "refdata:currency:"+unit.String(), func(ctx context.Context) (Currency, error) {
		cur, err := s.repo.GetCurrency(ctx, unit.String())
		if err == nil {
			return cur, nil
		}
		scale, increment := currency.Cash.Rounding(unit)
		return Currency{
			Code:             unit.String(),
			Precision:        scale,
			SmallestFraction: float64(increment) / math.Pow(10, float64(scale)),
		}, nil
	})
	if err != nil {
		return Currency{}, err
	}
	return cur, nil
}

// ExchangeRate returns the latest quote for the pair. Identical currencies
// always convert at 1.
func (s *Service) ExchangeRate(ctx context.Context, from, to string) (float64, error) {
	if from == to || from == "" || to == "" {
		return 1, nil
	}
	rate, err := cached(ctx, s, "refdata:fx:"+from+":"+to, func(ctx context.Context) (ExchangeRate, error) {
		return s.repo.GetExchangeRate(ctx, from, to)
	})
	if err != nil {
		return 0, err
	}
	return rate.Rate, nil
}

// TaxTemplate returns the charge rows of a named template, converted to
// engine tax rows.
func (s *Service) TaxTemplate(ctx context.Context, company, name string) ([]*taxation.TaxRow, error) {
	template, err := cached(ctx, s, "refdata:taxtpl:"+company+":"+name, func(ctx context.Context) (TaxTemplate, error) {
		return s.repo.GetTaxTemplate(ctx, company, name)
	})
	if err != nil {
		return nil, err
	}

	rows := make([]*taxation.TaxRow, 0, len(template.Rows))
	for _, row := range template.Rows {
		rows = append(rows, &taxation.TaxRow{
			Idx:                 row.Idx,
			ChargeType:          taxation.ChargeType(row.ChargeType),
			AccountHead:         row.AccountHead,
			Rate:                row.Rate,
			RowID:               row.RowID,
			IncludedInPrintRate: row.IncludedInPrintRate,
			AddDeductTax:        taxation.AddDeduct(row.AddDeductTax),
			Category:            taxation.TaxCategory(row.Category),
		})
	}
	return rows, nil
}

// PaymentModes returns the configured modes for a company.
func (s *Service) PaymentModes(ctx context.Context, company string) ([]PaymentMode, error) {
	modes, err := cached(ctx, s, "refdata:mop:"+company, func(ctx context.Context) ([]PaymentMode, error) {
		return s.repo.ListPaymentModes(ctx, company)
	})
	if err != nil {
		return nil, err
	}
	return modes, nil
}

// EngineSettings assembles the immutable settings snapshot for one
// computation: the company profile plus the smallest currency fraction of
// every currency the document touches.
func (s *Service) EngineSettings(ctx context.Context, company string, currencies ...string) (taxation.Settings, taxation.Precisions, error) {
	profile, err := s.CompanyProfile(ctx, company)
	if err != nil {
		return taxation.Settings{}, taxation.Precisions{}, err
	}

	settings := taxation.Settings{
		CompanyCurrency:             profile.DefaultCurrency,
		RoundOffApplicableAccounts:  profile.RoundOffApplicableAccounts,
		RoundRowWiseTax:             profile.RoundRowWiseTax,
		DisableRoundedTotal:         profile.DisableRoundedTotal,
		AddTaxesFromItemTaxTemplate: profile.AddTaxesFromItemTaxTemplate,
		DisableDefaultMOP:           profile.DisableDefaultMOP,
		SmallestCurrencyFraction:    make(map[string]float64),
	}

	// The document currency drives display precision.
	docCurrency := profile.DefaultCurrency
	if len(currencies) > 0 && currencies[0] != "" {
		docCurrency = currencies[0]
	}

	prec := taxation.DefaultPrecisions()
	for _, code := range append([]string{profile.DefaultCurrency}, currencies...) {
		if code == "" {
			continue
		}
		if _, seen := settings.SmallestCurrencyFraction[code]; seen {
			continue
		}
		cur, err := s.CurrencyInfo(ctx, code)
		if err != nil {
			return taxation.Settings{}, taxation.Precisions{}, err
		}
		settings.SmallestCurrencyFraction[code] = cur.SmallestFraction
		if code == docCurrency && cur.Precision > 0 {
			prec.Currency = cur.Precision
			prec.Rate = cur.Precision
		}
	}

	return settings, prec, nil
}

// ReturnModes lists the modes flagged for use on return documents.
func (s *Service) ReturnModes(ctx context.Context, company string) ([]string, error) {
	modes, err := s.PaymentModes(ctx, company)
	if err != nil {
		return nil, err
	}
	var returnModes []string
	for _, m := range modes {
		if m.InReturn {
			returnModes = append(returnModes, m.Mode)
		}
	}
	return returnModes, nil
}

// cached reads key from Redis, falling back to load on a miss and writing the
// result back with the service TTL. Concurrent misses share one load.
func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var value T
			if err := json.Unmarshal(raw, &value); err == nil {
				return value, nil
			}
			s.logger.Warn("refdata: dropping undecodable cache entry", "key", key)
			s.cache.Del(ctx, key)
		} else if err != redis.Nil {
			s.logger.Warn("refdata: cache read failed", "key", key, "error", err)
		}
	}

	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		value, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return zero, err
		}
		if s.cache != nil {
			if raw, err := json.Marshal(value); err == nil {
				if err := s.cache.Set(context.WithoutCancel(ctx), key, raw, s.ttl).Err(); err != nil {
					s.logger.Warn("refdata: cache write failed", "key", key, "error", err)
				}
			}
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// SaveExchangeRate stores a quote and drops the cached entries for both
// directions of the pair.
func (s *Service) SaveExchangeRate(ctx context.Context, rate ExchangeRate) error {
	if _, err := currency.ParseISO(rate.FromCurrency); err != nil {
		return fmt.Errorf("%w: currency code %q", httpx.ErrValidation, rate.FromCurrency)
	}
	if _, err := currency.ParseISO(rate.ToCurrency); err != nil {
		return fmt.Errorf("%w: currency code %q", httpx.ErrValidation, rate.ToCurrency)
	}
	if rate.Rate <= 0 {
		return fmt.Errorf("%w: exchange rate must be positive", httpx.ErrValidation)
	}
	if rate.ValidFrom.IsZero() {
		rate.ValidFrom = time.Now().UTC()
	}

	if err := s.repo.UpsertExchangeRate(ctx, rate); err != nil {
		return err
	}
	if s.cache != nil {
		keys := []string{
			"refdata:fx:" + rate.FromCurrency + ":" + rate.ToCurrency,
			"refdata:fx:" + rate.ToCurrency + ":" + rate.FromCurrency,
		}
		if err := s.cache.Del(ctx, keys...).Err(); err != nil {
			s.logger.Warn("refdata: fx cache invalidation failed", "error", err)
		}
	}
	return nil
}

// Warm repopulates the company's cache entries from the database.
func (s *Service) Warm(ctx context.Context, company string) error {
	if _, err := s.CompanyProfile(ctx, company); err != nil {
		return err
	}
	_, err := s.PaymentModes(ctx, company)
	return err
}

// Invalidate drops the cached entries for a company so the next read reloads
// from the database.
func (s *Service) Invalidate(ctx context.Context, company string) error {
	if s.cache == nil {
		return nil
	}
	keys := []string{
		"refdata:company:" + company,
		"refdata:mop:" + company,
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("refdata: invalidate %s: %w", company, err)
	}
	return nil
}
