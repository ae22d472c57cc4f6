package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pointstream/common"
	"pointstream/config"
)

// StreamRun is the record of one finished /api/data request. Only request
// metadata is stored, never the generated points.
type StreamRun struct {
	Count    int
	Chunks   int
	Points   int
	Bytes    int
	Duration time.Duration
	Outcome  string
	ClientIP string
}

const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeFailed    = "failed"
)

// Database records stream runs
type Database struct {
	db *sql.DB
}

// NewDatabase connects to the database described by cfg
func NewDatabase(ctx context.Context, cfg *config.Config) (*Database, error) {
	db, err := common.DBConnect(ctx, common.DBParams{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		Name:            cfg.DBName,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		PingMaxWait:     60 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps an open connection pool
func New(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// EnsureTables creates the stream_runs table if needed
func (d *Database) EnsureTables(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS stream_runs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			point_count INT NOT NULL,
			chunks INT NOT NULL,
			points INT NOT NULL,
			bytes BIGINT NOT NULL,
			duration_ms DOUBLE NOT NULL,
			outcome VARCHAR(16) NOT NULL,
			client_ip VARCHAR(64) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_created_at (created_at)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create stream_runs table: %w", err)
	}
	return nil
}

// RecordStream inserts one stream run
func (d *Database) RecordStream(ctx context.Context, run StreamRun) error {
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO stream_runs (point_count, chunks, points, bytes, duration_ms, outcome, client_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Count, run.Chunks, run.Points, run.Bytes,
		float64(run.Duration)/float64(time.Millisecond), run.Outcome, run.ClientIP)
	if err != nil {
		return fmt.Errorf("failed to record stream run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get status of stream run insert: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("expected to insert 1 stream run, inserted %d", rows)
	}
	return nil
}
