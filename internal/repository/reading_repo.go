package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/models"
)

// ReadingSQLite is the SQLite storage port for sensor and external readings.
type ReadingSQLite struct {
	db  *sql.DB
	log *logger.Logger
}

func NewReadingSQLite(db *sql.DB, log *logger.Logger) *ReadingSQLite {
	return &ReadingSQLite{db: db, log: log.Named("readings")}
}

var _ ReadingRepo = (*ReadingSQLite)(nil)

const (
	insertSensorDataSQL = `
		INSERT INTO sensor_data (timestamp, sensor_id, sensor_type, value, unit, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	insertExternalDataSQL = `
		INSERT INTO external_data (timestamp, data_type, payload)
		VALUES (?, ?, ?)
	`
	countSensorDataSQL     = `SELECT COUNT(*) FROM sensor_data`
	countExternalDataSQL   = `SELECT COUNT(*) FROM external_data`
	latestSensorTimeSQL    = `SELECT timestamp FROM sensor_data ORDER BY timestamp DESC LIMIT 1`
	selectSensorHistorySQL = `
		SELECT timestamp, sensor_id, sensor_type, value, unit, metadata
		FROM sensor_data WHERE sensor_id = ? ORDER BY timestamp DESC LIMIT ?
	`
)

// InsertSensorData appends one reading. A zero timestamp is replaced by now.
func (r *ReadingSQLite) InsertSensorData(ctx context.Context, rd models.SensorReading) error {
	ts := rd.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var metaPtr *string
	if len(rd.Metadata) > 0 {
		b, err := json.Marshal(rd.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", rd.SensorID, err)
		}
		s := string(b)
		metaPtr = &s
	}

	_, err := r.db.ExecContext(ctx, insertSensorDataSQL,
		ts.UTC(), rd.SensorID, rd.SensorType, rd.Value, rd.Unit, metaPtr)
	if err != nil {
		return fmt.Errorf("insert sensor reading %s/%s: %w", rd.SensorID, rd.SensorType, err)
	}
	return nil
}

// InsertExternalData appends one external reading with its payload stored as JSON.
func (r *ReadingSQLite) InsertExternalData(ctx context.Context, rd models.ExternalReading) error {
	ts := rd.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	payload, err := json.Marshal(rd.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", rd.DataType, err)
	}
	if _, err := r.db.ExecContext(ctx, insertExternalDataSQL, ts.UTC(), rd.DataType, string(payload)); err != nil {
		return fmt.Errorf("insert external reading %s: %w", rd.DataType, err)
	}
	return nil
}

func (r *ReadingSQLite) SensorDataCount(ctx context.Context) (int64, error) {
	return r.count(ctx, countSensorDataSQL)
}

func (r *ReadingSQLite) ExternalDataCount(ctx context.Context) (int64, error) {
	return r.count(ctx, countExternalDataSQL)
}

// LatestSensorTimestamp returns the newest sensor reading time; ok is false on an empty table.
func (r *ReadingSQLite) LatestSensorTimestamp(ctx context.Context) (time.Time, bool, error) {
	var ts time.Time
	if err := r.db.QueryRowContext(ctx, latestSensorTimeSQL).Scan(&ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("select latest sensor timestamp: %w", err)
	}
	return ts.UTC(), true, nil
}

// SensorHistory returns the newest readings of one sensor, newest first.
func (r *ReadingSQLite) SensorHistory(ctx context.Context, sensorID string, limit int) ([]models.SensorReading, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, selectSensorHistorySQL, sensorID, limit)
	if err != nil {
		return nil, fmt.Errorf("select sensor history %s: %w", sensorID, err)
	}
	defer rows.Close()

	out := make([]models.SensorReading, 0, limit)
	for rows.Next() {
		var (
			rd   models.SensorReading
			unit sql.NullString
			meta sql.NullString
		)
		if err := rows.Scan(&rd.Timestamp, &rd.SensorID, &rd.SensorType, &rd.Value, &unit, &meta); err != nil {
			return nil, err
		}
		rd.Timestamp = rd.Timestamp.UTC()
		rd.Unit = unit.String
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &rd.Metadata); err != nil {
				rd.Metadata = nil
				r.log.Warnw("reading_metadata_invalid", "sensor_id", rd.SensorID, "timestamp", rd.Timestamp, "err", err)
			}
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ReadingSQLite) count(ctx context.Context, q string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}
