package repository

import (
	"context"
	"database/sql"
	"time"

	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// ReadingRepo is the storage port of the collector.
type ReadingRepo interface {
	InsertSensorData(ctx context.Context, r models.SensorReading) error
	InsertExternalData(ctx context.Context, r models.ExternalReading) error
	SensorDataCount(ctx context.Context) (int64, error)
	ExternalDataCount(ctx context.Context) (int64, error)
	LatestSensorTimestamp(ctx context.Context) (time.Time, bool, error)
	SensorHistory(ctx context.Context, sensorID string, limit int) ([]models.SensorReading, error)
}

type AutomationStateRepo interface {
	Save(ctx context.Context, s models.AutomationState) error
	Load(ctx context.Context, name string) (models.AutomationState, error)
}

// EventFilter narrows EventRepo.List; zero fields do not filter.
type EventFilter struct {
	From       time.Time
	To         time.Time
	Automation string
	Type       string
}

type EventRepo interface {
	Append(ctx context.Context, e models.AutomationEvent) error
	List(ctx context.Context, f EventFilter) ([]models.AutomationEvent, error)
}

type Repository struct {
	Readings  ReadingRepo
	StateRepo AutomationStateRepo
	EventRepo EventRepo
	Auth      Authorization
}

// NewRepository wires the SQLite implementations. Pass a PointWriter to mirror
// readings to InfluxDB, or nil to keep them in SQLite only.
func NewRepository(db *sql.DB, influx PointWriter, log *logger.Logger) *Repository {
	var readings ReadingRepo = NewReadingSQLite(db, log)
	if influx != nil {
		readings = NewInfluxMirror(readings, influx)
	}
	return &Repository{
		Readings:  readings,
		StateRepo: NewAutomationStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
