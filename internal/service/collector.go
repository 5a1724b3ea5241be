package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smarthome_collector/internal/config"
	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/metrics"
	"smarthome_collector/internal/models"
	"smarthome_collector/internal/platform"
	"smarthome_collector/internal/repository"
)

const (
	DefaultCollectInterval = 300 * time.Second
	DefaultRetryDelay      = 60 * time.Second
	defaultStopTimeout     = 10 * time.Second
	maxHistoryLimit        = 500
)

var (
	// ErrStopTimeout means the collection loop did not exit within the stop
	// timeout; the collector must be considered in an indeterminate state.
	ErrStopTimeout = errors.New("collector did not stop in time")
	// ErrStoreUnavailable fails a cycle in which every write was rejected.
	ErrStoreUnavailable = errors.New("reading store unavailable")
)

// capabilitySensors maps measurement capabilities to sensor types.
// onoff and dim are handled separately because they depend on the device class.
var capabilitySensors = []struct {
	capability string
	sensorType string
}{
	{platform.CapMeasureTemperature, models.SensorTemperature},
	{platform.CapMeasureHumidity, models.SensorHumidity},
	{platform.CapMeasureLuminance, models.SensorBrightness},
	{platform.CapAlarmMotion, models.SensorMotion},
	{platform.CapTargetTemperature, models.SensorTargetTemperature},
}

// CollectorService polls the platform on an interval and stores what it sees.
type CollectorService struct {
	adapter     platform.Adapter
	store       repository.ReadingRepo
	interval    time.Duration
	retryDelay  time.Duration
	stopTimeout time.Duration
	log         *logger.Logger
	now         func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCollectorService(adapter platform.Adapter, store repository.ReadingRepo, cfg config.CollectorConfig, log *logger.Logger) *CollectorService {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	retry := cfg.RetryDelay
	if retry <= 0 {
		retry = DefaultRetryDelay
	}
	return &CollectorService{
		adapter:     adapter,
		store:       store,
		interval:    interval,
		retryDelay:  retry,
		stopTimeout: defaultStopTimeout,
		log:         log.Named("collector"),
		now:         time.Now,
	}
}

// Start launches the collection loop. It is a no-op while the loop is running.
func (s *CollectorService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.log.Infow("collector_started", "platform", s.adapter.Name(), "interval", s.interval.String())
	go s.loop(ctx, done)
}

// Stop signals the loop and waits up to 10s for it to exit. After a timeout the
// collector keeps reporting Running until the loop actually returns.
func (s *CollectorService) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		s.log.Infow("collector_stopped")
		return nil
	case <-time.After(s.stopTimeout):
		s.log.Errorw("collector_stop_timeout", "timeout", s.stopTimeout.String())
		return ErrStopTimeout
	}
}

// release clears the loop handle once the loop owning done has exited.
func (s *CollectorService) release(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == done {
		s.cancel, s.done = nil, nil
	}
}

func (s *CollectorService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// Stats reports the loop state and store counters. Store errors are returned
// alongside whatever could be read.
func (s *CollectorService) Stats(ctx context.Context) (CollectorStats, error) {
	st := CollectorStats{
		Running:         s.Running(),
		IntervalSeconds: s.interval.Seconds(),
	}

	var errs []error
	n, err := s.store.SensorDataCount(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	st.SensorReadings = n

	n, err = s.store.ExternalDataCount(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	st.ExternalReadings = n

	last, ok, err := s.store.LatestSensorTimestamp(ctx)
	if err != nil {
		errs = append(errs, err)
	} else if ok {
		st.LastReadingAt = &last
	}
	return st, errors.Join(errs...)
}

// History returns the latest stored readings of one sensor, newest first.
func (s *CollectorService) History(ctx context.Context, sensorID string, limit int) ([]models.SensorReading, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.store.SensorHistory(ctx, sensorID, limit)
}

func (s *CollectorService) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.release(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		delay := s.interval
		if err := s.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Errorw("collector_cycle_failed", "err", err, "retry_in", s.retryDelay.String())
			delay = s.retryDelay
		}
		timer.Reset(delay)
	}
}

// runCycle runs one CollectOnce and turns a panic into an error.
func (s *CollectorService) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collector cycle panic: %v", r)
		}
		metrics.CollectorCycles.WithLabelValues(metrics.Outcome(err)).Inc()
	}()
	_, err = s.CollectOnce(ctx)
	return err
}

// CollectOnce collects sensor data, then external data. Failures of single devices
// or external sources are logged and counted; the error is non-nil only when the store
// rejected every write of the cycle.
func (s *CollectorService) CollectOnce(ctx context.Context) (CycleReport, error) {
	report := CycleReport{StartedAt: s.now().UTC()}

	s.collectSensors(ctx, &report)
	s.collectExternal(ctx, &report)

	written := report.SensorReadings + report.ExternalReadings
	s.log.Infow("collector_cycle_done",
		"devices", report.Devices,
		"sensor_readings", report.SensorReadings,
		"external_readings", report.ExternalReadings,
		"device_failures", report.DeviceFailures,
		"store_failures", report.StoreFailures,
	)
	if written == 0 && report.StoreFailures > 0 {
		return report, fmt.Errorf("%w: %d writes failed", ErrStoreUnavailable, report.StoreFailures)
	}
	return report, nil
}

func (s *CollectorService) collectSensors(ctx context.Context, report *CycleReport) {
	states, err := s.adapter.GetStates(ctx, nil)
	if err != nil {
		// Adapter already logged the transport failure; keep whatever came back.
		s.log.Warnw("collector_states_incomplete", "received", len(states), "err", err)
	}
	report.Devices = len(states)

	for id, st := range states {
		if ctx.Err() != nil {
			return
		}
		if err := s.collectDevice(ctx, st, report); err != nil {
			report.DeviceFailures++
			s.log.Warnw("collector_device_failed", "device_id", id, "err", err)
		}
	}
}

// collectDevice stores the readings of one device; a panic or a rejected write is
// confined to it. The returned error joins every failed write.
func (s *CollectorService) collectDevice(ctx context.Context, st platform.DeviceState, report *CycleReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collect device %s: %v", st.ID, r)
		}
	}()

	var errs []error
	for _, rd := range ExtractReadings(st, report.StartedAt) {
		if err := s.store.InsertSensorData(ctx, rd); err != nil {
			report.StoreFailures++
			errs = append(errs, fmt.Errorf("store %s: %w", rd.SensorType, err))
			continue
		}
		report.SensorReadings++
		metrics.ReadingsWritten.WithLabelValues(rd.SensorType).Inc()
	}
	return errors.Join(errs...)
}

// ExtractReadings turns one device state into sensor readings. Capabilities the
// device does not have are skipped.
func ExtractReadings(st platform.DeviceState, ts time.Time) []models.SensorReading {
	caps := st.Attributes.Capabilities
	var out []models.SensorReading

	for _, m := range capabilitySensors {
		c, ok := caps[m.capability]
		if !ok {
			continue
		}
		v, ok := c.Value.Float()
		if !ok {
			continue
		}
		out = append(out, models.SensorReading{
			Timestamp:  ts,
			SensorID:   st.ID,
			SensorType: m.sensorType,
			Value:      v,
			Unit:       c.Unit,
		})
	}

	if on, ok := caps.Bool(platform.CapOnOff); ok && st.Attributes.DeviceClass == "light" {
		rd := models.SensorReading{
			Timestamp:  ts,
			SensorID:   st.ID,
			SensorType: models.SensorLightState,
		}
		if on {
			rd.Value = 1
		}
		if b, ok := st.Brightness(); ok {
			rd.Metadata = map[string]any{"brightness": b}
		}
		out = append(out, rd)
	}
	return out
}

func (s *CollectorService) collectExternal(ctx context.Context, report *CycleReport) {
	caps := s.adapter.OptionalCapabilities()

	if caps.Has(platform.OptWeather) {
		if wp, ok := s.adapter.(platform.WeatherProvider); ok {
			s.storeExternal(ctx, report, models.ExternalWeather, func(ctx context.Context) (any, error) {
				return wp.GetWeatherData(ctx)
			})
		}
	}
	if caps.Has(platform.OptPresence) {
		if pp, ok := s.adapter.(platform.PresenceProvider); ok {
			s.storeExternal(ctx, report, models.ExternalPresence, func(ctx context.Context) (any, error) {
				return pp.GetPresence(ctx)
			})
		}
	}
}

// storeExternal stores the result of one optional source; its failure does not affect others.
func (s *CollectorService) storeExternal(ctx context.Context, report *CycleReport, dataType string, fetch func(context.Context) (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("collector_external_panic", "data_type", dataType, "panic", r)
		}
	}()

	payload, err := fetch(ctx)
	if err != nil {
		s.log.Warnw("collector_external_failed", "data_type", dataType, "err", err)
		return
	}
	err = s.store.InsertExternalData(ctx, models.ExternalReading{
		Timestamp: report.StartedAt,
		DataType:  dataType,
		Payload:   payload,
	})
	if err != nil {
		report.StoreFailures++
		s.log.Warnw("collector_store_failed", "data_type", dataType, "err", err)
		return
	}
	report.ExternalReadings++
	metrics.ReadingsWritten.WithLabelValues(dataType).Inc()
}
