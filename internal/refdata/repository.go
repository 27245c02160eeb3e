package refdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type Repository interface {
	GetCompanyProfile(ctx context.Context, company string) (CompanyProfile, error)
	GetCurrency(ctx context.Context, code string) (Currency, error)
	GetExchangeRate(ctx context.Context, from, to string) (ExchangeRate, error)
	UpsertExchangeRate(ctx context.Context, rate ExchangeRate) error
	GetTaxTemplate(ctx context.Context, company, name string) (TaxTemplate, error)
	ListPaymentModes(ctx context.Context, company string) ([]PaymentMode, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetCompanyProfile(ctx context.Context, company string) (CompanyProfile, error) {
	const query = `
		SELECT name, default_currency, round_off_applicable_accounts,
		       round_row_wise_tax, disable_rounded_total,
		       add_taxes_from_item_tax_template, disable_default_mop
		FROM companies
		WHERE name = $1`

	var profile CompanyProfile
	err := r.pool.QueryRow(ctx, query, company).Scan(
		&profile.Name,
		&profile.DefaultCurrency,
		&profile.RoundOffApplicableAccounts,
		&profile.RoundRowWiseTax,
		&profile.DisableRoundedTotal,
		&profile.AddTaxesFromItemTaxTemplate,
		&profile.DisableDefaultMOP,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompanyProfile{}, fmt.Errorf("%w: company %q", httpx.ErrNotFound, company)
	}
	if err != nil {
		return CompanyProfile{}, fmt.Errorf("refdata: get company profile: %w", err)
	}
	return profile, nil
}

func (r *repository) GetCurrency(ctx context.Context, code string) (Currency, error) {
	const query = `
		SELECT code, precision, smallest_fraction
		FROM currencies
		WHERE code = $1`

	var cur Currency
	err := r.pool.QueryRow(ctx, query, code).Scan(&cur.Code, &cur.Precision, &cur.SmallestFraction)
	if errors.Is(err, pgx.ErrNoRows) {
		return Currency{}, fmt.Errorf("%w: currency %q", httpx.ErrNotFound, code)
	}
	if err != nil {
		return Currency{}, fmt.Errorf("refdata: get currency: %w", err)
	}
	return cur, nil
}

// GetExchangeRate returns the most recent quote for the pair.
func (r *repository) GetExchangeRate(ctx context.Context, from, to string) (ExchangeRate, error) {
	const query = `
		SELECT from_currency, to_currency, rate, valid_from
		FROM exchange_rates
		WHERE from_currency = $1 AND to_currency = $2
		ORDER BY valid_from DESC
		LIMIT 1`

	var rate ExchangeRate
	err := r.pool.QueryRow(ctx, query, from, to).Scan(
		&rate.FromCurrency, &rate.ToCurrency, &rate.Rate, &rate.ValidFrom,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ExchangeRate{}, fmt.Errorf("%w: exchange rate %s/%s", httpx.ErrNotFound, from, to)
	}
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("refdata: get exchange rate: %w", err)
	}
	return rate, nil
}

// UpsertExchangeRate records a quote in both directions so either side of
// the pair resolves.
func (r *repository) UpsertExchangeRate(ctx context.Context, rate ExchangeRate) error {
	const query = `
		INSERT INTO exchange_rates (from_currency, to_currency, rate, valid_from)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_currency, to_currency, valid_from)
		DO UPDATE SET rate = EXCLUDED.rate`

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, rate.FromCurrency, rate.ToCurrency, rate.Rate, rate.ValidFrom); err != nil {
			return err
		}
		if rate.Rate == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, query, rate.ToCurrency, rate.FromCurrency, 1/rate.Rate, rate.ValidFrom)
		return err
	})
	if err != nil {
		return fmt.Errorf("refdata: upsert exchange rate: %w", err)
	}
	return nil
}

func (r *repository) GetTaxTemplate(ctx context.Context, company, name string) (TaxTemplate, error) {
	const query = `
		SELECT r.idx, r.charge_type, r.account_head, r.rate, r.row_id,
		       r.included_in_print_rate, r.add_deduct_tax, r.category
		FROM tax_charge_template_rows r
		JOIN tax_charge_templates t ON t.id = r.template_id
		WHERE t.company = $1 AND t.name = $2
		ORDER BY r.idx`

	rows, err := r.pool.Query(ctx, query, company, name)
	if err != nil {
		return TaxTemplate{}, fmt.Errorf("refdata: get tax template: %w", err)
	}
	defer rows.Close()

	template := TaxTemplate{Name: name, Company: company}
	for rows.Next() {
		var row TaxTemplateRow
		err := rows.Scan(&row.Idx, &row.ChargeType, &row.AccountHead, &row.Rate,
			&row.RowID, &row.IncludedInPrintRate, &row.AddDeductTax, &row.Category)
		if err != nil {
			return TaxTemplate{}, fmt.Errorf("refdata: scan tax template row: %w", err)
		}
		template.Rows = append(template.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return TaxTemplate{}, fmt.Errorf("refdata: iterate tax template rows: %w", err)
	}
	if len(template.Rows) == 0 {
		return TaxTemplate{}, fmt.Errorf("%w: tax template %q", httpx.ErrNotFound, name)
	}
	return template, nil
}

func (r *repository) ListPaymentModes(ctx context.Context, company string) ([]PaymentMode, error) {
	const query = `
		SELECT mode, type, is_default, in_return
		FROM payment_modes
		WHERE company = $1
		ORDER BY is_default DESC, mode`

	rows, err := r.pool.Query(ctx, query, company)
	if err != nil {
		return nil, fmt.Errorf("refdata: list payment modes: %w", err)
	}
	defer rows.Close()

	var modes []PaymentMode
	for rows.Next() {
		var m PaymentMode
		if err := rows.Scan(&m.Mode, &m.Type, &m.IsDefault, &m.InReturn); err != nil {
			return nil, fmt.Errorf("refdata: scan payment mode: %w", err)
		}
		modes = append(modes, m)
	}
	return modes, rows.Err()
}
