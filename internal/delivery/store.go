// Package delivery keeps an in-memory DuckDB log of outbound webhook calls.
// Nothing is written to disk; the log is gone when the process exits.
package delivery

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/knowledge-chat/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// Store records deliveries and answers aggregate queries over them.
type Store struct {
	db *sql.DB
}

// NewStore opens an in-memory DuckDB database and creates the deliveries table.
func NewStore(threads int) (*Store, error) {
	if threads <= 0 {
		threads = 1
	}

	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA threads=%d", threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE SEQUENCE delivery_seq`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create delivery sequence: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE deliveries (
			id          BIGINT DEFAULT nextval('delivery_seq') PRIMARY KEY,
			flow        VARCHAR NOT NULL,
			status_code INTEGER NOT NULL,
			ok          BOOLEAN NOT NULL,
			err_msg     VARCHAR NOT NULL,
			duration_ms BIGINT NOT NULL,
			at          TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create deliveries table: %w", err)
	}

	return &Store{db: db}, nil
}

// Insert stores one delivery.
func (s *Store) Insert(ctx context.Context, d models.Delivery) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (flow, status_code, ok, err_msg, duration_ms, at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(d.Flow), d.StatusCode, d.OK, d.Error, d.DurationMs, d.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery: %w", err)
	}
	return nil
}

// Record implements webhook.Recorder. Failures are logged, never returned to the caller.
func (s *Store) Record(d models.Delivery) {
	if err := s.Insert(context.Background(), d); err != nil {
		fmt.Printf("[Delivery] Warning: %v\n", err)
	}
}

// Stats aggregates deliveries per flow, ordered by flow name.
func (s *Store) Stats(ctx context.Context) ([]models.FlowStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE ok),
		       COUNT(*) FILTER (WHERE NOT ok),
		       AVG(duration_ms)
		FROM deliveries
		GROUP BY flow
		ORDER BY flow
	`)
	if err != nil {
		return nil, fmt.Errorf("querying delivery stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.FlowStats, 0, 3)
	for rows.Next() {
		var st models.FlowStats
		var flow string
		var total, ok, failed int64
		if err := rows.Scan(&flow, &total, &ok, &failed, &st.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("scanning delivery stats: %w", err)
		}
		st.Flow = models.Flow(flow)
		st.Total = int(total)
		st.Succeeded = int(ok)
		st.Failed = int(failed)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Recent returns the latest deliveries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow, status_code, ok, err_msg, duration_ms, at
		FROM deliveries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent deliveries: %w", err)
	}
	defer rows.Close()

	out := make([]models.Delivery, 0, limit)
	for rows.Next() {
		var d models.Delivery
		var flow string
		var status int32
		if err := rows.Scan(&flow, &status, &d.OK, &d.Error, &d.DurationMs, &d.At); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		d.Flow = models.Flow(flow)
		d.StatusCode = int(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
