package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"smarthome_collector/internal/config"
	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/metrics"
	"smarthome_collector/internal/models"
	"smarthome_collector/internal/notify"
	"smarthome_collector/internal/platform"
	"smarthome_collector/internal/repository"
)

// DehumidifierAutomation is the automation name used in events, state rows and topics.
const DehumidifierAutomation = "dehumidifier"

const defaultCheckInterval = 60 * time.Second

var (
	ErrAutomationDisabled = errors.New("automation disabled")
	ErrSensorUnavailable  = errors.New("sensor value unavailable")
)

// DehumidifierService switches a dehumidifier on above the high humidity threshold
// and off once humidity has stayed below the low threshold for the configured delay.
//
// The pending-shutdown timer is the only mutable state. Process is the only writer;
// calls to Process are serialized by processMu, while status readers take mu.RLock
// and never wait on adapter I/O.
type DehumidifierService struct {
	cfg       config.DehumidifierConfig
	stateRepo repository.AutomationStateRepo
	eventRepo repository.EventRepo
	publisher notify.Publisher
	log       *logger.Logger
	now       func() time.Time

	processMu sync.Mutex

	mu    sync.RWMutex
	timer *time.Time
}

func NewDehumidifierService(
	cfg config.DehumidifierConfig,
	stateRepo repository.AutomationStateRepo,
	eventRepo repository.EventRepo,
	publisher notify.Publisher,
	log *logger.Logger,
) *DehumidifierService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &DehumidifierService{
		cfg:       cfg,
		stateRepo: stateRepo,
		eventRepo: eventRepo,
		publisher: publisher,
		log:       log.Named(DehumidifierAutomation),
		now:       time.Now,
	}
}

// Restore loads a timer persisted by a previous run.
func (s *DehumidifierService) Restore(ctx context.Context) error {
	st, err := s.stateRepo.Load(ctx, DehumidifierAutomation)
	if err != nil {
		return fmt.Errorf("restore dehumidifier timer: %w", err)
	}
	s.mu.Lock()
	s.timer = st.ThresholdCrossedAt
	s.mu.Unlock()
	if st.ThresholdCrossedAt != nil {
		s.log.Infow("dehumidifier_timer_restored", "threshold_crossed_at", st.ThresholdCrossedAt.Format(time.RFC3339))
	}
	return nil
}

// Run evaluates the automation every interval until ctx is canceled.
func (s *DehumidifierService) Run(ctx context.Context, adapter platform.Adapter, interval time.Duration) {
	if !s.cfg.Enabled {
		s.log.Infow("dehumidifier_disabled")
		return
	}
	if interval <= 0 {
		interval = s.cfg.CheckInterval
	}
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.RunOnce(ctx, adapter); err != nil {
				s.log.Warnw("dehumidifier_cycle_failed", "err", err)
			}
		}
	}
}

// RunOnce reads the configured sensors and device, then runs Process.
func (s *DehumidifierService) RunOnce(ctx context.Context, adapter platform.Adapter) ([]Command, error) {
	if !s.cfg.Enabled {
		return nil, ErrAutomationDisabled
	}
	snap, err := s.ReadClimate(ctx, adapter)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, adapter, snap)
}

// ReadClimate reads humidity, temperature and the device run state in one query.
// A missing temperature sensor is not an error.
func (s *DehumidifierService) ReadClimate(ctx context.Context, adapter platform.Adapter) (ClimateSnapshot, error) {
	ids := []string{s.cfg.HumiditySensor, s.cfg.Device}
	if s.cfg.TemperatureSensor != "" {
		ids = append(ids, s.cfg.TemperatureSensor)
	}

	states, err := adapter.GetStates(ctx, ids)
	if err != nil {
		return ClimateSnapshot{}, err
	}

	var snap ClimateSnapshot
	hum, ok := states[s.cfg.HumiditySensor]
	if !ok {
		return ClimateSnapshot{}, fmt.Errorf("%w: %s", ErrSensorUnavailable, s.cfg.HumiditySensor)
	}
	snap.Humidity = measurement(hum, platform.CapMeasureHumidity)
	if snap.Humidity == nil {
		return ClimateSnapshot{}, fmt.Errorf("%w: %s has no humidity", ErrSensorUnavailable, s.cfg.HumiditySensor)
	}

	dev, ok := states[s.cfg.Device]
	if !ok {
		return ClimateSnapshot{}, fmt.Errorf("%w: %s", ErrSensorUnavailable, s.cfg.Device)
	}
	snap.DeviceOn = dev.IsOn()

	if temp, ok := states[s.cfg.TemperatureSensor]; ok {
		snap.Temperature = measurement(temp, platform.CapMeasureTemperature)
	}
	return snap, nil
}

// measurement reads a numeric capability, falling back to a numeric primary state.
func measurement(st platform.DeviceState, capability string) *float64 {
	if v, ok := st.Attributes.Capabilities.Number(capability); ok {
		return &v
	}
	if v, err := strconv.ParseFloat(st.State, 64); err == nil {
		return &v
	}
	return nil
}

// Process applies the hysteresis rules to snap, sends the resulting commands through
// adapter and returns them. It is the only operation that changes the timer.
//
// A failed command is still returned and reported through the error. A failed
// turn_off keeps the timer so the next cycle retries it.
func (s *DehumidifierService) Process(ctx context.Context, adapter platform.Adapter, snap ClimateSnapshot) ([]Command, error) {
	s.processMu.Lock()
	defer s.processMu.Unlock()

	if snap.Humidity == nil {
		return []Command{}, nil
	}
	h := *snap.Humidity
	now := s.now().UTC()

	s.mu.RLock()
	timer := s.timer
	s.mu.RUnlock()

	var (
		commands []Command
		next     = timer
		event    *models.AutomationEvent
	)

	switch {
	case h >= s.cfg.HumidityHigh && !snap.DeviceOn:
		commands = append(commands, Command{
			Action:   ActionTurnOn,
			DeviceID: s.cfg.Device,
			Reason:   fmt.Sprintf("humidity %.1f%% >= %.1f%%", h, s.cfg.HumidityHigh),
		})
		next = nil

	case h < s.cfg.HumidityLow && snap.DeviceOn:
		switch {
		case timer == nil:
			armed := now
			next = &armed
			event = &models.AutomationEvent{
				Type:        models.EventTimerArmed,
				Description: fmt.Sprintf("humidity %.1f%% < %.1f%%, shutdown in %s", h, s.cfg.HumidityLow, s.cfg.Delay),
			}
		case now.Sub(*timer) >= s.cfg.Delay:
			commands = append(commands, Command{
				Action:   ActionTurnOff,
				DeviceID: s.cfg.Device,
				Reason:   fmt.Sprintf("humidity below %.1f%% for %s", s.cfg.HumidityLow, now.Sub(*timer).Round(time.Second)),
			})
			next = nil
		}

	case h >= s.cfg.HumidityLow && timer != nil:
		next = nil
		event = &models.AutomationEvent{
			Type:        models.EventTimerCancelled,
			Description: fmt.Sprintf("humidity back to %.1f%%, shutdown cancelled", h),
		}
	}

	var errs []error
	for _, cmd := range commands {
		if err := s.execute(ctx, adapter, cmd, now, h); err != nil {
			errs = append(errs, err)
			if cmd.Action == ActionTurnOff {
				next = timer
			}
		}
	}

	if event != nil {
		event.OccurredAt = now
		event.Metadata = map[string]any{"humidity": h}
		s.appendEvent(ctx, *event)
	}
	if !sameTime(timer, next) {
		s.setTimer(ctx, next, now)
	}

	if commands == nil {
		commands = []Command{}
	}
	return commands, errors.Join(errs...)
}

func (s *DehumidifierService) execute(ctx context.Context, adapter platform.Adapter, cmd Command, now time.Time, humidity float64) error {
	var err error
	switch cmd.Action {
	case ActionTurnOn:
		err = adapter.TurnOn(ctx, cmd.DeviceID, platform.TurnOnOptions{})
	case ActionTurnOff:
		err = adapter.TurnOff(ctx, cmd.DeviceID)
	default:
		err = fmt.Errorf("%w: %s", platform.ErrUnsupportedService, cmd.Action)
	}
	metrics.AutomationCommands.WithLabelValues(DehumidifierAutomation, cmd.Action, metrics.Outcome(err)).Inc()

	ev := models.AutomationEvent{
		OccurredAt:  now,
		Description: cmd.Reason,
		Metadata:    map[string]any{"device_id": cmd.DeviceID, "humidity": humidity, "action": cmd.Action},
	}
	if err != nil {
		s.log.Errorw("dehumidifier_command_failed", "action", cmd.Action, "device_id", cmd.DeviceID, "err", err)
		ev.Type = models.EventCommandFailed
		ev.Metadata = map[string]any{"device_id": cmd.DeviceID, "humidity": humidity, "action": cmd.Action, "error": err.Error()}
	} else {
		s.log.Infow("dehumidifier_command_sent", "action", cmd.Action, "device_id", cmd.DeviceID, "reason", cmd.Reason)
		ev.Type = models.EventTurnOn
		if cmd.Action == ActionTurnOff {
			ev.Type = models.EventTurnOff
		}
	}
	s.appendEvent(ctx, ev)

	if perr := s.publisher.PublishCommand(notify.CommandMessage{
		Automation: DehumidifierAutomation,
		Action:     cmd.Action,
		DeviceID:   cmd.DeviceID,
		Reason:     cmd.Reason,
		Success:    err == nil,
		IssuedAt:   now,
	}); perr != nil {
		s.log.Warnw("dehumidifier_publish_failed", "action", cmd.Action, "err", perr)
	}

	if err != nil {
		return fmt.Errorf("%s %s: %w", cmd.Action, cmd.DeviceID, err)
	}
	return nil
}

func (s *DehumidifierService) setTimer(ctx context.Context, next *time.Time, now time.Time) {
	s.mu.Lock()
	s.timer = next
	s.mu.Unlock()

	err := s.stateRepo.Save(ctx, models.AutomationState{
		Name:               DehumidifierAutomation,
		ThresholdCrossedAt: next,
		UpdatedAt:          now,
	})
	if err != nil {
		s.log.Warnw("dehumidifier_timer_persist_failed", "err", err)
	}
}

func (s *DehumidifierService) appendEvent(ctx context.Context, ev models.AutomationEvent) {
	ev.Automation = DehumidifierAutomation
	if err := s.eventRepo.Append(ctx, ev); err != nil {
		s.log.Warnw("dehumidifier_event_append_failed", "type", ev.Type, "err", err)
	}
}

// SecondsRemaining returns the time left until automatic shutdown, if a timer is armed.
func (s *DehumidifierService) SecondsRemaining(now time.Time) (float64, bool) {
	s.mu.RLock()
	timer := s.timer
	s.mu.RUnlock()
	if timer == nil {
		return 0, false
	}
	return s.remaining(*timer, now), true
}

func (s *DehumidifierService) remaining(crossed, now time.Time) float64 {
	left := s.cfg.Delay - now.Sub(crossed)
	if left < 0 {
		left = 0
	}
	return left.Seconds()
}

// GetStatus re-reads the sensors and reports the countdown. It never changes the timer.
func (s *DehumidifierService) GetStatus(ctx context.Context, adapter platform.Adapter) DehumidifierStatus {
	snap, err := s.ReadClimate(ctx, adapter)
	// taken after the read so platform latency does not inflate the countdown
	now := s.now().UTC()

	st := DehumidifierStatus{
		Enabled:       s.cfg.Enabled,
		Device:        s.cfg.Device,
		ThresholdHigh: s.cfg.HumidityHigh,
		ThresholdLow:  s.cfg.HumidityLow,
		DelaySeconds:  s.cfg.Delay.Seconds(),
		CheckedAt:     now,
	}
	if err != nil {
		st.Error = err.Error()
	} else {
		st.Humidity = snap.Humidity
		st.Temperature = snap.Temperature
		st.DeviceOn = snap.DeviceOn
	}

	s.mu.RLock()
	timer := s.timer
	s.mu.RUnlock()
	if timer != nil {
		crossed := *timer
		st.TimerArmed = true
		st.ThresholdCrossedAt = &crossed
		left := s.remaining(crossed, now)
		st.SecondsRemaining = &left
	}
	return st
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
