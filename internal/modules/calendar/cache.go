package calendar

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/avelis/coinkeeper/internal/database"
	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/events"
	"github.com/avelis/coinkeeper/internal/modules/transactions"
)

// cacheTTL bounds staleness in case an invalidation event is missed.
const cacheTTL = 15 * time.Minute

// Cache stores msgpack-encoded daily-total snapshots in the cache database.
// The cache database runs with synchronous=OFF, so entries are throwaway:
// a miss or a corrupt blob just falls through to the ledger query.
type Cache struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCache creates a calendar cache and subscribes it to the ledger-mutating
// events so realized or added transactions drop every snapshot.
func NewCache(db *database.DB, bus *events.Bus, log zerolog.Logger) *Cache {
	c := &Cache{
		db:  db,
		log: log.With().Str("component", "calendar_cache").Logger(),
	}

	invalidate := func(events.Event) { c.Clear() }
	bus.Subscribe(events.TransactionAdded, invalidate)
	bus.Subscribe(events.TransactionRealized, invalidate)
	bus.Subscribe(events.TransferRealized, invalidate)
	bus.Subscribe(events.ExceptionAdded, invalidate)

	return c
}

// cachedTotal keeps decimals as strings because msgpack cannot see inside
// decimal.Decimal's unexported fields.
type cachedTotal struct {
	Date   string `msgpack:"date"`
	Amount string `msgpack:"amount"`
	Count  int    `msgpack:"count"`
}

// GetDailyTotals returns a cached snapshot, or false on miss, expiry, or a
// blob that no longer decodes.
func (c *Cache) GetDailyTotals(year int, month time.Month, accountID *uuid.UUID) ([]transactions.DailyTotal, bool) {
	key := totalsKey(year, month, accountID)

	var payload []byte
	var createdAt int64
	err := c.db.Conn().QueryRow(
		`SELECT payload, created_at FROM calendar_cache WHERE cache_key = ?`, key,
	).Scan(&payload, &createdAt)
	if err != nil {
		return nil, false
	}

	if time.Since(time.Unix(createdAt, 0)) > cacheTTL {
		return nil, false
	}

	var cached []cachedTotal
	if err := msgpack.Unmarshal(payload, &cached); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		c.drop(key)
		return nil, false
	}

	totals := make([]transactions.DailyTotal, 0, len(cached))
	for _, ct := range cached {
		date, err := domain.ParseDate(ct.Date)
		if err != nil {
			return nil, false
		}
		amount, err := decimal.NewFromString(ct.Amount)
		if err != nil {
			return nil, false
		}
		totals = append(totals, transactions.DailyTotal{Date: date, Amount: amount, Count: ct.Count})
	}
	return totals, true
}

// PutDailyTotals stores a snapshot. Failures are logged and swallowed, the
// cache never blocks a read path.
func (c *Cache) PutDailyTotals(year int, month time.Month, accountID *uuid.UUID, totals []transactions.DailyTotal) {
	cached := make([]cachedTotal, 0, len(totals))
	for _, t := range totals {
		cached = append(cached, cachedTotal{
			Date:   t.Date.Format(domain.DateFormat),
			Amount: t.Amount.String(),
			Count:  t.Count,
		})
	}

	payload, err := msgpack.Marshal(cached)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to encode cache entry")
		return
	}

	key := totalsKey(year, month, accountID)
	_, err = c.db.Conn().Exec(
		`INSERT INTO calendar_cache (cache_key, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key, payload, time.Now().Unix(),
	)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to store cache entry")
	}
}

// Clear drops every snapshot.
func (c *Cache) Clear() {
	if _, err := c.db.Conn().Exec(`DELETE FROM calendar_cache`); err != nil {
		c.log.Warn().Err(err).Msg("Failed to clear calendar cache")
		return
	}
	c.log.Debug().Msg("Calendar cache cleared")
}

func (c *Cache) drop(key string) {
	_, _ = c.db.Conn().Exec(`DELETE FROM calendar_cache WHERE cache_key = ?`, key)
}

func totalsKey(year int, month time.Month, accountID *uuid.UUID) string {
	account := "all"
	if accountID != nil {
		account = accountID.String()
	}
	return fmt.Sprintf("daily-totals:%04d-%02d:%s", year, int(month), account)
}
