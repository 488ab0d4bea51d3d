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

// Reader provides read-only archive queries over the samples table.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading and makes sure the schema exists.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("archive reader opened", "component", "sqlite", "path", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Query returns the samples logged for source between start and end, both
// inclusive to the second. AggRaw returns every sample ascending;
// AggLastPoint returns only the latest one.
func (r *Reader) Query(ctx context.Context, source string, start, end time.Time, agg model.Aggregation) ([]model.Point, error) {
	from, to := start.UnixMilli(), end.Truncate(time.Second).UnixMilli()+999

	query := `
		SELECT ts, value FROM samples
		WHERE source = ? AND ts BETWEEN ? AND ?
		ORDER BY ts ASC
	`
	if agg == model.AggLastPoint {
		query = `
		SELECT ts, value FROM samples
		WHERE source = ? AND ts BETWEEN ? AND ?
		ORDER BY ts DESC
		LIMIT 1
	`
	}

	rows, err := r.db.QueryContext(ctx, query, source, from, to)
	if err != nil {
		return nil, fmt.Errorf("sqlite query samples: %w", err)
	}
	defer rows.Close()

	pts := []model.Point{}
	for rows.Next() {
		var tsMs int64
		var p model.Point
		if err := rows.Scan(&tsMs, &p.Value); err != nil {
			return nil, fmt.Errorf("sqlite scan samples: %w", err)
		}
		p.TS = time.UnixMilli(tsMs).In(start.Location())
		pts = append(pts, p)
	}
	return pts, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
