package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// SnapshotExchangeRates reads the latest quote for every currency pair and
// writes each into the cache under the key the refdata service reads, so
// compute requests rarely miss on exchange rates.
func SnapshotExchangeRates(ctx context.Context, pool *pgxpool.Pool, cache *redis.Client, ttl time.Duration, logger *slog.Logger) error {
	if pool == nil || cache == nil {
		return nil
	}

	const query = `
		SELECT DISTINCT ON (from_currency, to_currency)
		       from_currency, to_currency, rate, valid_from
		FROM exchange_rates
		ORDER BY from_currency, to_currency, valid_from DESC`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		if logger != nil {
			logger.Error("fx snapshot query", slog.Any("error", err))
		}
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var entry struct {
			FromCurrency string    `json:"from_currency"`
			ToCurrency   string    `json:"to_currency"`
			Rate         float64   `json:"rate"`
			ValidFrom    time.Time `json:"valid_from"`
		}
		if err := rows.Scan(&entry.FromCurrency, &entry.ToCurrency, &entry.Rate, &entry.ValidFrom); err != nil {
			return err
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		key := "refdata:fx:" + entry.FromCurrency + ":" + entry.ToCurrency
		if err := cache.Set(ctx, key, raw, ttl).Err(); err != nil {
			if logger != nil {
				logger.Warn("fx snapshot cache write", slog.String("key", key), slog.Any("error", err))
			}
			continue
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("snapshotted exchange rates", slog.Int("pairs", count), slog.String("job", "fx_snapshot"))
	}
	return nil
}
