package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/routediff/internal/constants"
	"github.com/aman-zulfiqar/routediff/internal/models"
)

type ClickHouseConfig struct {
	Addr        string
	Database    string
	Username    string
	Password    string
	DialTimeout time.Duration
	Logger      *logrus.Logger
}

// ClickHouseStore keeps divergence records for querying across runs.
type ClickHouseStore struct {
	conn driver.Conn
}

var _ DivergenceSink = (*ClickHouseStore)(nil)

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := createDivergenceTable(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	cfg.Logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn}, nil
}

func createDivergenceTable(ctx context.Context, conn driver.Conn) error {
	return conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+constants.DivergenceTable+` (
			run_id       String,
			record_index UInt64,
			pair         String,
			in_amount    String,
			old_index    UInt32,
			new_index    UInt32,
			old_amount   String,
			new_amount   String,
			diff_amount  Float64,
			old_path     String,
			new_path     String,
			detected_at  DateTime
		) ENGINE = MergeTree()
		ORDER BY (run_id, detected_at)
	`)
}

func (c *ClickHouseStore) RecordDivergence(ctx context.Context, d *models.Divergence) error {
	oldPath, err := json.Marshal(d.Old)
	if err != nil {
		return fmt.Errorf("marshal old path: %w", err)
	}
	newPath, err := json.Marshal(d.New)
	if err != nil {
		return fmt.Errorf("marshal new path: %w", err)
	}

	query := `
		INSERT INTO ` + constants.DivergenceTable + ` (
			run_id, record_index, pair, in_amount, old_index, new_index,
			old_amount, new_amount, diff_amount, old_path, new_path, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = c.conn.Exec(ctx, query,
		d.RunID,
		d.RecordIndex,
		d.Request.Pair(),
		d.Request.InAmount,
		uint32(d.OldIndex),
		uint32(d.NewIndex),
		deref(d.Old.Amount),
		deref(d.New.Amount),
		d.DiffAmount,
		string(oldPath),
		string(newPath),
		d.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert divergence: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
