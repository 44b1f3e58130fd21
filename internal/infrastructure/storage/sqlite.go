package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/loop_scanner/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			rate_count INTEGER NOT NULL,
			sources TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at);`,
		`CREATE TABLE IF NOT EXISTS loops (
			scan_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			type TEXT NOT NULL,
			platform TEXT NOT NULL,
			market TEXT NOT NULL,
			collateral TEXT NOT NULL,
			borrow TEXT NOT NULL,
			best_net REAL NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (scan_id, rank)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_loops_pair ON loops(collateral, borrow);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// ScanRepository Implementation

func (s *SQLiteStore) SaveScan(ctx context.Context, report *domain.ScanReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO scans (id, created_at, rate_count, sources) VALUES (?, ?, ?, ?)`,
		report.ID, report.CreatedAt, report.RateCount, strings.Join(report.Sources, ","))
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO loops (scan_id, rank, type, platform, market, collateral, borrow, best_net, payload)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, l := range report.Loops {
		payload, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to encode loop %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, report.ID, i, string(l.Type), l.Platform, l.Market, l.Collateral, l.Borrow, l.BestNet, string(payload)); err != nil {
			return fmt.Errorf("failed to insert loop %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetLatestScan(ctx context.Context) (*domain.ScanReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, rate_count, sources FROM scans ORDER BY created_at DESC, rowid DESC LIMIT 1`)

	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoScan
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadLoops(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListScans returns the newest scans with their loops, newest first.
func (s *SQLiteStore) ListScans(ctx context.Context, limit int) ([]*domain.ScanReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, rate_count, sources FROM scans ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	var reports []*domain.ScanReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		reports = append(reports, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range reports {
		if err := s.loadLoops(ctx, r); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

func (s *SQLiteStore) loadLoops(ctx context.Context, report *domain.ScanReport) error {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM loops WHERE scan_id = ? ORDER BY rank`, report.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return err
		}

		var rec domain.LoopRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return fmt.Errorf("failed to decode loop of scan %s: %w", report.ID, err)
		}
		// best_net is stored once at the top level
		if rec.SingleReturns != nil {
			rec.SingleReturns.BestNet = rec.BestNet
		}
		if rec.CrossReturns != nil {
			rec.CrossReturns.BestNet = rec.BestNet
		}
		report.Loops = append(report.Loops, rec)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*domain.ScanReport, error) {
	var (
		r       domain.ScanReport
		sources string
		created time.Time
	)
	if err := row.Scan(&r.ID, &created, &r.RateCount, &sources); err != nil {
		return nil, err
	}
	r.CreatedAt = created.UTC()
	if sources != "" {
		r.Sources = strings.Split(sources, ",")
	}
	return &r, nil
}
