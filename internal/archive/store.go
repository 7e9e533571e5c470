// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists daily reports, their records, signal cache
// entries, and the run audit trail in a SQLite database.
package archive

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gowebpki/jcs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// Store manages the report archive SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the archive database at path, creating the
// schema on first use.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			report_date TEXT PRIMARY KEY,
			generated_at TEXT NOT NULL,
			digest TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			paper_id TEXT NOT NULL,
			report_date TEXT NOT NULL,
			published TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (paper_id, report_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_report_date ON records(report_date)`,
		`CREATE TABLE IF NOT EXISTS signal_cache (
			paper_id TEXT NOT NULL,
			source TEXT NOT NULL,
			day TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (paper_id, source, day)
		)`,
		`CREATE TABLE IF NOT EXISTS audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			report_date TEXT NOT NULL,
			stage TEXT NOT NULL,
			item_id TEXT NOT NULL,
			status TEXT NOT NULL,
			retries INTEGER NOT NULL,
			detail TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_report_date ON audit(report_date)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Digest returns the hex SHA-256 of the report's canonical JSON form,
// so byte-level key ordering never changes the stored digest.
func Digest(report *types.DailyReport) (string, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalizing report: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// WriteReport stores the report and its records in one transaction.
// Writing the same date again replaces the prior report and its
// records; partial writes never become visible.
func (s *Store) WriteReport(ctx context.Context, report *types.DailyReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	digest, err := Digest(report)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	date := report.Date

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reports (report_date, generated_at, digest, payload)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(report_date) DO UPDATE SET
			generated_at=excluded.generated_at, digest=excluded.digest, payload=excluded.payload`,
		date, report.GeneratedAt.UTC().Format(time.RFC3339), digest, string(payload),
	)
	if err != nil {
		return fmt.Errorf("upserting report: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE report_date = ?`, date); err != nil {
		return fmt.Errorf("deleting old records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (paper_id, report_date, published, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range report.Papers {
		recordJSON, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", r.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			r.ID, date, r.Published.UTC().Format(time.RFC3339), string(recordJSON))
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// ReadRange loads the reports archived with dates in [start, end],
// ordered by date ascending.
func (s *Store) ReadRange(ctx context.Context, start, end time.Time) ([]types.DailyReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM reports WHERE report_date >= ? AND report_date <= ?
		 ORDER BY report_date`,
		start.Format("2006-01-02"), end.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var out []types.DailyReport
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		var r types.DailyReport
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReadReport loads the report stored for the given date. Returns
// sql.ErrNoRows when no report exists for that date.
func (s *Store) ReadReport(ctx context.Context, date time.Time) (*types.DailyReport, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM reports WHERE report_date = ?`,
		date.Format("2006-01-02"),
	).Scan(&payload)
	if err != nil {
		return nil, err
	}

	var report types.DailyReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &report, nil
}

// RecordsSince loads the archived records from reports in the window
// (end-days, end], ordered by report date then paper ID for
// deterministic trend input.
func (s *Store) RecordsSince(ctx context.Context, end time.Time, days int) ([]types.PaperRecord, error) {
	start := end.AddDate(0, 0, -(days - 1))
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM records WHERE report_date >= ? AND report_date <= ?
		 ORDER BY report_date, paper_id`,
		start.Format("2006-01-02"), end.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []types.PaperRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		var r types.PaperRecord
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSignals returns cached attention signals for one (paper, source,
// day) key. The second return is false on a cache miss.
func (s *Store) GetSignals(paperID, source, day string) ([]types.AttentionSignal, bool, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM signal_cache WHERE paper_id = ? AND source = ? AND day = ?`,
		paperID, source, day,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying signal cache: %w", err)
	}

	var signals []types.AttentionSignal
	if err := json.Unmarshal([]byte(payload), &signals); err != nil {
		return nil, false, fmt.Errorf("decoding cached signals: %w", err)
	}
	return signals, true, nil
}

// PutSignals stores fetched signals for one (paper, source, day) key.
// Existing entries are kept as-is; the cache is append-only within a day.
func (s *Store) PutSignals(paperID, source, day string, signals []types.AttentionSignal) error {
	payload, err := json.Marshal(signals)
	if err != nil {
		return fmt.Errorf("encoding signals: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO signal_cache (paper_id, source, day, payload) VALUES (?, ?, ?, ?)`,
		paperID, source, day, string(payload),
	)
	if err != nil {
		return fmt.Errorf("writing signal cache: %w", err)
	}
	return nil
}

// AppendAudit stores the run's audit entries under the report date.
func (s *Store) AppendAudit(ctx context.Context, date time.Time, entries []types.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO audit (report_date, stage, item_id, status, retries, detail)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing audit insert: %w", err)
	}
	defer stmt.Close()

	day := date.Format("2006-01-02")
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, day, e.Stage, e.ItemID, string(e.Status), e.Retries, e.Detail); err != nil {
			return fmt.Errorf("inserting audit entry: %w", err)
		}
	}
	return tx.Commit()
}

// Stats summarizes archive contents for the stats command.
type Stats struct {
	Reports       int
	Records       int
	FirstDate     string
	LastDate      string
	CachedSignals int
}

// ReadStats returns archive-wide counts and date bounds.
func (s *Store) ReadStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), coalesce(min(report_date), ''), coalesce(max(report_date), '') FROM reports`,
	).Scan(&st.Reports, &st.FirstDate, &st.LastDate)
	if err != nil {
		return st, fmt.Errorf("querying reports: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM records`).Scan(&st.Records); err != nil {
		return st, fmt.Errorf("querying records: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM signal_cache`).Scan(&st.CachedSignals); err != nil {
		return st, fmt.Errorf("querying signal cache: %w", err)
	}
	return st, nil
}
