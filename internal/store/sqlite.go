package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pintegram/toolbot/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed mirror.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS records (
		record_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		description TEXT NOT NULL,
		types_json TEXT NOT NULL,
		state TEXT NOT NULL,
		api_tier TEXT NOT NULL,
		payment_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_url ON records(url);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRecord stores a copy of a persisted record, replacing any previous
// copy with the same external record ID.
func (s *SQLiteStore) SaveRecord(ctx context.Context, rec domain.SavedRecord) error {
	types, err := json.Marshal(rec.Types)
	if err != nil {
		return fmt.Errorf("encode types: %w", err)
	}
	payment, err := json.Marshal(rec.Payment)
	if err != nil {
		return fmt.Errorf("encode payment: %w", err)
	}

	query := `
	INSERT INTO records (record_id, name, url, description, types_json, state, api_tier, payment_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(record_id) DO UPDATE SET
		name = excluded.name,
		url = excluded.url,
		description = excluded.description,
		types_json = excluded.types_json,
		state = excluded.state,
		api_tier = excluded.api_tier,
		payment_json = excluded.payment_json`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.URL, rec.Description,
		string(types), rec.State, rec.APITier, string(payment),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// DeleteRecord removes the mirror copy by external record ID.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, recordID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE record_id = ?`, recordID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("DeleteRecord affected 0 rows", "record_id", recordID)
	}
	return nil
}

// FindByURL returns the most recently saved record with the URL, or nil.
func (s *SQLiteStore) FindByURL(ctx context.Context, url string) (*domain.SavedRecord, error) {
	query := `
		SELECT record_id, name, url, description, types_json, state, api_tier, payment_json
		FROM records WHERE url = ?
		ORDER BY created_at DESC LIMIT 1`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, url))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan record row: %w", err)
	}
	return rec, nil
}

// ListRecords returns mirrored records sorted by URL ascending. A
// non-empty typeFilter keeps only records containing that type.
func (s *SQLiteStore) ListRecords(ctx context.Context, typeFilter string) ([]domain.SavedRecord, error) {
	query := `
		SELECT record_id, name, url, description, types_json, state, api_tier, payment_json
		FROM records ORDER BY url ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close records rows", "error", closeErr)
		}
	}()

	var records []domain.SavedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		if typeFilter != "" && !hasType(rec.Types, typeFilter) {
			continue
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.SavedRecord, error) {
	var rec domain.SavedRecord
	var typesJSON, paymentJSON string

	err := row.Scan(
		&rec.ID, &rec.Name, &rec.URL, &rec.Description,
		&typesJSON, &rec.State, &rec.APITier, &paymentJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(typesJSON), &rec.Types); err != nil {
		return nil, fmt.Errorf("decode types: %w", err)
	}
	if err := json.Unmarshal([]byte(paymentJSON), &rec.Payment); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	return &rec, nil
}

func hasType(types []string, t string) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}
