// Package sqlite is the archive backend: every logged sample of every
// source lives in one samples table keyed by (source, ts).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"stockwidget/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Record is one sample queued for the batched writer. When Done is set it
// receives the outcome of the transaction that carried the record; it must
// have room for one value.
type Record struct {
	Source string
	Point  model.Point
	Done   chan<- error
}

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/archive.db"

	// OnCommit is called after every batch commit (optional).
	OnCommit func(n int, elapsed time.Duration, err error)
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db       *sql.DB
	log      *slog.Logger
	onCommit func(int, time.Duration, error)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a Writer, opening the database in WAL mode and creating the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log := slog.Default().With(slog.String("component", "sqlite"))
	log.Info("archive writer opened", "path", cfg.DBPath)
	return &Writer{db: db, log: log, onCommit: cfg.OnCommit}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS samples (
			source TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			value  REAL    NOT NULL,
			PRIMARY KEY (source, ts)
		);
	`)
	return err
}

// Insert logs a single sample. A sample with an existing (source, ts) replaces it.
func (w *Writer) Insert(ctx context.Context, source string, p model.Point) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO samples (source, ts, value) VALUES (?, ?, ?)`,
		source, p.TS.UnixMilli(), p.Value)
	if err != nil {
		return fmt.Errorf("sqlite insert sample: %w", err)
	}
	return nil
}

// Run reads records from ch and inserts them in batched transactions.
// Flushes every batchSize records OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or ch is closed.
func (w *Writer) Run(ctx context.Context, ch <-chan Record) {
	batch := make([]Record, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		err := w.insertBatch(batch)
		if err != nil {
			w.log.Error("batch insert failed", "records", len(batch), "error", err)
		} else {
			w.log.Debug("batch committed", "records", len(batch), "elapsed", time.Since(start))
		}
		if w.onCommit != nil {
			w.onCommit(len(batch), time.Since(start), err)
		}
		for _, r := range batch {
			if r.Done != nil {
				r.Done <- err
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case rec, ok := <-ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch inserts records in a single transaction.
func (w *Writer) insertBatch(recs []Record) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO samples (source, ts, value) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.Exec(r.Source, r.Point.TS.UnixMilli(), r.Point.Value); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// LastTimestamp returns the newest sample time for source, or the zero
// time when nothing is logged.
func (w *Writer) LastTimestamp(ctx context.Context, source string) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM samples WHERE source = ?`, source,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(ts.Int64), nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
