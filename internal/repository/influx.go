package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"smarthome_collector/internal/config"
	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/models"
)

const influxConnectTimeout = 10 * time.Second

// Measurement names written to InfluxDB.
const (
	measurementSensor   = "sensor_reading"
	measurementExternal = "external_reading"
)

// ErrInfluxDisabled is returned by ConnectInflux when influxdb.enabled is false.
var ErrInfluxDisabled = errors.New("influxdb disabled")

// PointWriter is the subset of the InfluxDB non-blocking write API the mirror needs.
type PointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// InfluxClient owns the InfluxDB connection and its non-blocking write API.
type InfluxClient struct {
	client influxdb2.Client
	writer PointWriter
}

// ConnectInflux pings the server and starts logging async write errors.
func ConnectInflux(cfg config.InfluxDBConfig, log *logger.Logger) (*InfluxClient, error) {
	if !cfg.Enabled {
		return nil, ErrInfluxDisabled
	}
	log = log.Named("influxdb")

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), influxConnectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping %s: %w", cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influxdb %s not healthy", cfg.URL)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Warnw("influx_write_failed", "err", err)
		}
	}()

	return &InfluxClient{client: client, writer: writeAPI}, nil
}

// Writer exposes the write API for building a mirror.
func (c *InfluxClient) Writer() PointWriter { return c.writer }

// Close flushes pending points and closes the client.
func (c *InfluxClient) Close() {
	c.writer.Flush()
	c.client.Close()
}

// InfluxMirror is a ReadingRepo that stores into a primary repo and mirrors every
// stored reading to InfluxDB. Reads are served by the primary.
type InfluxMirror struct {
	ReadingRepo
	points PointWriter
}

// NewInfluxMirror wraps primary.
func NewInfluxMirror(primary ReadingRepo, points PointWriter) *InfluxMirror {
	return &InfluxMirror{ReadingRepo: primary, points: points}
}

func (m *InfluxMirror) InsertSensorData(ctx context.Context, rd models.SensorReading) error {
	if err := m.ReadingRepo.InsertSensorData(ctx, rd); err != nil {
		return err
	}
	tags := map[string]string{
		"sensor_id":   rd.SensorID,
		"sensor_type": rd.SensorType,
	}
	if rd.Unit != "" {
		tags["unit"] = rd.Unit
	}
	m.points.WritePoint(write.NewPoint(measurementSensor, tags,
		map[string]any{"value": rd.Value}, timestampOrNow(rd.Timestamp)))
	return nil
}

func (m *InfluxMirror) InsertExternalData(ctx context.Context, rd models.ExternalReading) error {
	if err := m.ReadingRepo.InsertExternalData(ctx, rd); err != nil {
		return err
	}
	fields := externalFields(rd.Payload)
	if len(fields) == 0 {
		return nil
	}
	m.points.WritePoint(write.NewPoint(measurementExternal,
		map[string]string{"data_type": rd.DataType}, fields, timestampOrNow(rd.Timestamp)))
	return nil
}

// externalFields keeps the numeric and boolean top-level values of the payload's
// JSON form.
func externalFields(payload any) map[string]any {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case float64, bool:
			fields[k] = v
		}
	}
	return fields
}

func timestampOrNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}
