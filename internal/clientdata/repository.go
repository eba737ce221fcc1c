// Package clientdata provides persistent caching for upstream API responses and
// computed backtest results. Values are stored as msgpack blobs with an
// expiration timestamp for cache-first behavior.
package clientdata

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache tables
const (
	TableAlphaVantageSeries = "alphavantage_series"
	TableBacktestResults    = "backtest_results"
)

// AllTables lists all tables in the cache database for cleanup operations.
var AllTables = []string{
	TableAlphaVantageSeries,
	TableBacktestResults,
}

// validTables is a set for table name validation.
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Repository provides cache operations for client data.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// validateTable ensures the table name is in our allowed list.
// Table names are interpolated into queries, so this guards against injection.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Marshal encodes v as msgpack, honouring json struct tags.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes msgpack data produced by Marshal into v.
func Unmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// Store saves data with expiration = now + ttl.
// Uses INSERT OR REPLACE to upsert data.
func (r *Repository) Store(table, key string, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	blob, err := Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (key, data, expires_at) VALUES (?, ?, ?)", table)

	if _, err := r.db.Exec(query, key, blob, expiresAt); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh returns the stored blob only if expires_at > now.
// Returns nil, nil if the key doesn't exist or data is expired.
// Use Get() to retrieve stale data as a fallback when API calls fail.
func (r *Repository) GetIfFresh(table, key string) ([]byte, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE key = ? AND expires_at > ?", table)
	return r.scanBlob(table, query, key, time.Now().Unix())
}

// Get returns the stored blob regardless of expiration status.
// Returns nil, nil if the key doesn't exist.
func (r *Repository) Get(table, key string) ([]byte, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE key = ?", table)
	return r.scanBlob(table, query, key)
}

func (r *Repository) scanBlob(table, query string, args ...interface{}) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}
	return data, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE key = ?", table)
	if _, err := r.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

// Clear removes every entry of a table. Returns the number of rows deleted.
func (r *Repository) Clear(table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	result, err := r.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
	if err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", table, err)
	}

	return result.RowsAffected()
}

// DeleteExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(table string) (int64, error) {
	return r.DeleteExpiredBefore(table, time.Now())
}

// DeleteExpiredBefore removes all rows that expired before cutoff.
func (r *Repository) DeleteExpiredBefore(table string, cutoff time.Time) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)
	result, err := r.db.Exec(query, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return deleted, nil
}

// Table returns a typed view on one cache table.
func (r *Repository) Table(table string) *TableCache {
	return &TableCache{repo: r, table: table}
}

// TableCache is a cache bound to a single table.
type TableCache struct {
	repo  *Repository
	table string
}

// Load decodes the fresh entry for key into dest.
// Returns false when the key is missing or expired.
func (c *TableCache) Load(key string, dest interface{}) (bool, error) {
	data, err := c.repo.GetIfFresh(c.table, key)
	if err != nil || data == nil {
		return false, err
	}
	if err := Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s entry %s: %w", c.table, key, err)
	}
	return true, nil
}

// LoadStale decodes the entry for key into dest even if it has expired.
func (c *TableCache) LoadStale(key string, dest interface{}) (bool, error) {
	data, err := c.repo.Get(c.table, key)
	if err != nil || data == nil {
		return false, err
	}
	if err := Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s entry %s: %w", c.table, key, err)
	}
	return true, nil
}

// Save stores value under key for ttl.
func (c *TableCache) Save(key string, value interface{}, ttl time.Duration) error {
	return c.repo.Store(c.table, key, value, ttl)
}

// Clear removes every entry of the table.
func (c *TableCache) Clear() (int64, error) {
	return c.repo.Clear(c.table)
}
