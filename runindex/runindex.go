// Package runindex keeps a queryable SQLite index of mechanism runs and
// their awards.
package runindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cloudx-io/vcgauction/auctionapi"
)

// Run is one indexed mechanism run.
type Run struct {
	RunID      string
	AuctionID  string
	RecordedAt time.Time
	TieBreak   string
	Bids       int
	Welfare    float64
	Payments   float64
	Awards     []auctionapi.Award
}

type Index struct {
	db *sql.DB
}

// Open opens or creates the index at path.
func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			auction_id TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			tie_break TEXT NOT NULL,
			bids INTEGER NOT NULL,
			welfare REAL NOT NULL,
			payments REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS runs_auction ON runs(auction_id);`,
		`CREATE TABLE IF NOT EXISTS awards (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			bidder TEXT NOT NULL,
			bundles TEXT NOT NULL,
			value REAL NOT NULL,
			payment REAL NOT NULL,
			welfare_without REAL NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (x *Index) Close() error {
	return x.db.Close()
}

// Record stores a run and its awards atomically. Recording the same run id
// twice fails.
func (x *Index) Record(ctx context.Context, run Run) error {
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.RecordedAt.IsZero() {
		run.RecordedAt = time.Now()
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs(run_id, auction_id, recorded_at, tie_break, bids, welfare, payments) VALUES(?,?,?,?,?,?,?)`,
		run.RunID, run.AuctionID, run.RecordedAt.UTC().Format(time.RFC3339Nano), run.TieBreak, run.Bids, run.Welfare, run.Payments,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}

	for i, award := range run.Awards {
		bundles, err := json.Marshal(award.Bundles)
		if err != nil {
			return fmt.Errorf("marshal bundles: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO awards(run_id, seq, bidder, bundles, value, payment, welfare_without) VALUES(?,?,?,?,?,?,?)`,
			run.RunID, i, award.Bidder, string(bundles), award.Value, award.Payment, award.WelfareWithout,
		); err != nil {
			return fmt.Errorf("insert award for %s: %w", award.Bidder, err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit runs, newest first. Awards are not loaded.
func (x *Index) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT run_id, auction_id, recorded_at, tie_break, bids, welfare, payments
		 FROM runs ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			recordedAt string
		)
		if err := rows.Scan(&run.RunID, &run.AuctionID, &recordedAt, &run.TieBreak, &run.Bids, &run.Welfare, &run.Payments); err != nil {
			return nil, err
		}
		run.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s: recorded_at: %w", run.RunID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Awards returns the awards of one run in declared bidder order.
func (x *Index) Awards(ctx context.Context, runID string) ([]auctionapi.Award, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT bidder, bundles, value, payment, welfare_without FROM awards WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var awards []auctionapi.Award
	for rows.Next() {
		var (
			award   auctionapi.Award
			bundles string
		)
		if err := rows.Scan(&award.Bidder, &bundles, &award.Value, &award.Payment, &award.WelfareWithout); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(bundles), &award.Bundles); err != nil {
			return nil, fmt.Errorf("award for %s: bundles: %w", award.Bidder, err)
		}
		awards = append(awards, award)
	}
	return awards, rows.Err()
}
