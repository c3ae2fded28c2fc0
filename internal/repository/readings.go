package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hydro-monitor/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000

	pqUniqueViolation = "23505"
)

// ErrDuplicateReading 同一 snapshot_id 已经写入过
var ErrDuplicateReading = errors.New("reading already recorded")

const createReadingsTable = `
	CREATE TABLE IF NOT EXISTS sensor_readings (
		snapshot_id        UUID PRIMARY KEY,
		received_at        TIMESTAMPTZ NOT NULL,
		temperature        DOUBLE PRECISION NOT NULL,
		ph                 DOUBLE PRECISION NOT NULL,
		ec                 DOUBLE PRECISION NOT NULL,
		tds                DOUBLE PRECISION NOT NULL,
		distance           DOUBLE PRECISION NOT NULL,
		water_level        DOUBLE PRECISION NOT NULL,
		motion             BOOLEAN NOT NULL,
		sound              BOOLEAN NOT NULL,
		intruder           BOOLEAN NOT NULL,
		temperature_status TEXT NOT NULL,
		ph_status          TEXT NOT NULL,
		raw                JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sensor_readings_received_at ON sensor_readings (received_at DESC);
`

// ReadingsRepository 传感器历史记录仓库
type ReadingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingsRepository 创建历史记录仓库
func NewReadingsRepository(db *sql.DB, logger *zap.Logger) *ReadingsRepository {
	return &ReadingsRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（已存在则跳过）
func (r *ReadingsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createReadingsTable); err != nil {
		return fmt.Errorf("failed to create sensor_readings table: %w", err)
	}
	return nil
}

// InsertReading 写入一条历史记录；重复的 snapshot_id 返回 ErrDuplicateReading
func (r *ReadingsRepository) InsertReading(ctx context.Context, reading *models.SensorReading) error {
	query := `
		INSERT INTO sensor_readings (
			snapshot_id, received_at,
			temperature, ph, ec, tds, distance, water_level,
			motion, sound, intruder,
			temperature_status, ph_status, raw
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		reading.SnapshotID,
		reading.ReceivedAt,
		reading.Temperature,
		reading.PH,
		reading.EC,
		reading.TDS,
		reading.Distance,
		reading.WaterLevel,
		reading.Motion,
		reading.Sound,
		reading.Intruder,
		reading.TemperatureStatus,
		reading.PHStatus,
		[]byte(reading.Raw),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateReading, reading.SnapshotID)
		}
		return fmt.Errorf("failed to insert sensor reading: %w", err)
	}

	r.logger.Debug("Inserted sensor reading",
		zap.String("snapshot_id", reading.SnapshotID),
	)
	return nil
}

// ListRecent 按接收时间倒序返回最近的记录
func (r *ReadingsRepository) ListRecent(ctx context.Context, limit int) ([]models.SensorReading, error) {
	query := `
		SELECT
			snapshot_id, received_at,
			temperature, ph, ec, tds, distance, water_level,
			motion, sound, intruder,
			temperature_status, ph_status, raw
		FROM sensor_readings
		ORDER BY received_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor readings: %w", err)
	}
	defer rows.Close()

	readings := make([]models.SensorReading, 0)
	for rows.Next() {
		var reading models.SensorReading
		var raw []byte
		if err := rows.Scan(
			&reading.SnapshotID,
			&reading.ReceivedAt,
			&reading.Temperature,
			&reading.PH,
			&reading.EC,
			&reading.TDS,
			&reading.Distance,
			&reading.WaterLevel,
			&reading.Motion,
			&reading.Sound,
			&reading.Intruder,
			&reading.TemperatureStatus,
			&reading.PHStatus,
			&raw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sensor reading: %w", err)
		}
		reading.Raw = raw
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensor readings: %w", err)
	}

	return readings, nil
}

// ClampLimit 把条数限制在 [1, MaxListLimit]；非正值取 DefaultListLimit
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
