package service

import (
	"context"
	"time"

	"smarthome_collector/internal/config"
	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/models"
	"smarthome_collector/internal/notify"
	"smarthome_collector/internal/platform"
	"smarthome_collector/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Collector exposes the background poller.
type Collector interface {
	Start()
	Stop() error
	Running() bool
	Stats(ctx context.Context) (CollectorStats, error)
	CollectOnce(ctx context.Context) (CycleReport, error)
	History(ctx context.Context, sensorID string, limit int) ([]models.SensorReading, error)
}

// Dehumidifier exposes the dehumidifier automation bound to the configured platform.
type Dehumidifier interface {
	Restore(ctx context.Context) error
	Run(ctx context.Context, interval time.Duration)
	Evaluate(ctx context.Context) ([]Command, error)
	Status(ctx context.Context) DehumidifierStatus
}

// Devices exposes manual device control.
type Devices interface {
	Platform() string
	Capabilities() []platform.OptionalCapability
	ListDevices(ctx context.Context, domain string) (DeviceList, error)
	GetDevice(ctx context.Context, id string) (platform.DeviceState, error)
	TurnOn(ctx context.Context, id string, p TurnOnParams) error
	TurnOff(ctx context.Context, id string) error
	SetTemperature(ctx context.Context, id string, value float64) error
	SetHVACMode(ctx context.Context, id, mode string) error
	Zones(ctx context.Context) ([]platform.Zone, error)
	Flows(ctx context.Context) ([]platform.Flow, error)
	TriggerFlow(ctx context.Context, id string) error
}

// EventLog exposes the append-only automation log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.AutomationEvent, error)
}

type Service struct {
	Authorization
	Collector
	Dehumidifier
	Devices
	EventLog
}

// NewService wires the repository layer and the platform adapter into concrete services.
func NewService(repos *repository.Repository, adapter platform.Adapter, publisher notify.Publisher, cfg *config.Config, log *logger.Logger) *Service {
	dh := NewDehumidifierService(cfg.Automation.Dehumidifier, repos.StateRepo, repos.EventRepo, publisher, log)
	return &Service{
		Authorization: NewAuthService(repos.Auth, cfg.Auth.SigningKey, cfg.Auth.TokenTTL),
		Collector:     NewCollectorService(adapter, repos.Readings, cfg.Collector, log),
		Dehumidifier:  &boundDehumidifier{svc: dh, adapter: adapter},
		Devices:       NewDeviceService(adapter, log),
		EventLog:      NewEventLogService(repos.EventRepo),
	}
}

// boundDehumidifier fixes the adapter the automation reads from and commands.
type boundDehumidifier struct {
	svc     *DehumidifierService
	adapter platform.Adapter
}

func (b *boundDehumidifier) Restore(ctx context.Context) error { return b.svc.Restore(ctx) }

func (b *boundDehumidifier) Run(ctx context.Context, interval time.Duration) {
	b.svc.Run(ctx, b.adapter, interval)
}

func (b *boundDehumidifier) Evaluate(ctx context.Context) ([]Command, error) {
	return b.svc.RunOnce(ctx, b.adapter)
}

func (b *boundDehumidifier) Status(ctx context.Context) DehumidifierStatus {
	return b.svc.GetStatus(ctx, b.adapter)
}
