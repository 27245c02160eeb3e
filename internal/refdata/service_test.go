package refdata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/taxation"
)

type mockRepo struct {
	profile      CompanyProfile
	profileErr   error
	profileCalls int
	currency     map[string]Currency
	rate         ExchangeRate
	rateErr      error
	rateCalls    int
	template     TaxTemplate
	modes        []PaymentMode
	modeCalls    int
}

func (m *mockRepo) GetCompanyProfile(ctx context.Context, company string) (CompanyProfile, error) {
	m.profileCalls++
	return m.profile, m.profileErr
}

func (m *mockRepo) GetCurrency(ctx context.Context, code string) (Currency, error) {
	if cur, ok := m.currency[code]; ok {
		return cur, nil
	}
	return Currency{}, errNotConfigured
}

func (m *mockRepo) GetExchangeRate(ctx context.Context, from, to string) (ExchangeRate, error) {
	m.rateCalls++
	return m.rate, m.rateErr
}

func (m *mockRepo) UpsertExchangeRate(ctx context.Context, rate ExchangeRate) error {
	return nil
}

func (m *mockRepo) GetTaxTemplate(ctx context.Context, company, name string) (TaxTemplate, error) {
	return m.template, nil
}

func (m *mockRepo) ListPaymentModes(ctx context.Context, company string) ([]PaymentMode, error) {
	m.modeCalls++
	return m.modes, nil
}

var errNotConfigured = errors.New("currency not configured")

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, client, logger, time.Minute)
}

func TestCompanyProfileCaches(t *testing.T) {
	repo := &mockRepo{
		profile: CompanyProfile{
			Name:            "Meridian Corp",
			DefaultCurrency: "USD",
			RoundRowWiseTax: true,
		},
	}
	svc := newTestService(t, repo)
	ctx := context.Background()

	profile, err := svc.CompanyProfile(ctx, "Meridian Corp")
	require.NoError(t, err)
	assert.Equal(t, "USD", profile.DefaultCurrency)
	assert.Equal(t, 1, repo.profileCalls)

	profile, err = svc.CompanyProfile(ctx, "Meridian Corp")
	require.NoError(t, err)
	assert.True(t, profile.RoundRowWiseTax)
	assert.Equal(t, 1, repo.profileCalls, "second read must hit the cache")
}

func TestInvalidateForcesReload(t *testing.T) {
	repo := &mockRepo{profile: CompanyProfile{Name: "Meridian Corp", DefaultCurrency: "USD"}}
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.CompanyProfile(ctx, "Meridian Corp")
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, "Meridian Corp"))

	repo.profile.DefaultCurrency = "EUR"
	profile, err := svc.CompanyProfile(ctx, "Meridian Corp")
	require.NoError(t, err)
	assert.Equal(t, "EUR", profile.DefaultCurrency)
	assert.Equal(t, 2, repo.profileCalls)
}

func TestCurrencyInfoFallsBackToCLDR(t *testing.T) {
	svc := newTestService(t, &mockRepo{})
	ctx := context.Background()

	cur, err := svc.CurrencyInfo(ctx, "JPY")
	require.NoError(t, err)
	assert.Equal(t, "JPY", cur.Code)
	assert.Equal(t, 0, cur.Precision)
	assert.Equal(t, 1.0, cur.SmallestFraction)
}

func TestCurrencyInfoPrefersDatabase(t *testing.T) {
	repo := &mockRepo{
		currency: map[string]Currency{
			"INR": {Code: "INR", Precision: 2, SmallestFraction: 0.05},
		},
	}
	svc := newTestService(t, repo)

	cur, err := svc.CurrencyInfo(context.Background(), "INR")
	require.NoError(t, err)
	assert.Equal(t, 0.05, cur.SmallestFraction)
}

func TestCurrencyInfoRejectsUnknownCode(t *testing.T) {
	svc := newTestService(t, &mockRepo{})

	_, err := svc.CurrencyInfo(context.Background(), "NOPE")
	require.Error(t, err)
}

func TestExchangeRateIdentity(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(t, repo)

	rate, err := svc.ExchangeRate(context.Background(), "USD", "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
	assert.Equal(t, 0, repo.rateCalls)
}

func TestExchangeRateCaches(t *testing.T) {
	repo := &mockRepo{rate: ExchangeRate{FromCurrency: "USD", ToCurrency: "INR", Rate: 83.2}}
	svc := newTestService(t, repo)
	ctx := context.Background()

	rate, err := svc.ExchangeRate(ctx, "USD", "INR")
	require.NoError(t, err)
	assert.Equal(t, 83.2, rate)

	_, err = svc.ExchangeRate(ctx, "USD", "INR")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.rateCalls)
}

func TestTaxTemplateConvertsRows(t *testing.T) {
	repo := &mockRepo{
		template: TaxTemplate{
			Name:    "Standard VAT",
			Company: "Meridian Corp",
			Rows: []TaxTemplateRow{
				{Idx: 1, ChargeType: "On Net Total", AccountHead: "VAT - M", Rate: 10},
				{Idx: 2, ChargeType: "On Previous Row Total", AccountHead: "CESS - M", Rate: 2, RowID: 1},
			},
		},
	}
	svc := newTestService(t, repo)

	rows, err := svc.TaxTemplate(context.Background(), "Meridian Corp", "Standard VAT")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, taxation.ChargeOnNetTotal, rows[0].ChargeType)
	assert.Equal(t, taxation.ChargeOnPreviousRowTotal, rows[1].ChargeType)
	assert.Equal(t, 1, rows[1].RowID)
}

func TestEngineSettingsSnapshot(t *testing.T) {
	repo := &mockRepo{
		profile: CompanyProfile{
			Name:                       "Meridian Corp",
			DefaultCurrency:            "USD",
			RoundOffApplicableAccounts: []string{"Round Off - M"},
		},
		currency: map[string]Currency{
			"USD": {Code: "USD", Precision: 2, SmallestFraction: 0},
			"INR": {Code: "INR", Precision: 2, SmallestFraction: 0.05},
		},
	}
	svc := newTestService(t, repo)

	settings, prec, err := svc.EngineSettings(context.Background(), "Meridian Corp", "INR")
	require.NoError(t, err)
	assert.Equal(t, "USD", settings.CompanyCurrency)
	assert.Equal(t, []string{"Round Off - M"}, settings.RoundOffApplicableAccounts)
	assert.Equal(t, 0.05, settings.SmallestCurrencyFraction["INR"])
	assert.Equal(t, 2, prec.Currency)
}

func TestReturnModes(t *testing.T) {
	repo := &mockRepo{
		modes: []PaymentMode{
			{Mode: "Cash", Type: taxation.PaymentTypeCash, IsDefault: true, InReturn: true},
			{Mode: "Card", Type: "Bank"},
		},
	}
	svc := newTestService(t, repo)

	modes, err := svc.ReturnModes(context.Background(), "Meridian Corp")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cash"}, modes)
}
