package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"smarthome_collector/internal/config"
	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/models"
	"smarthome_collector/internal/platform"
)

const (
	testHumiditySensor = "sensor.bathroom_humidity"
	testTempSensor     = "sensor.bathroom_temperature"
	testDevice         = "switch.dehumidifier"
)

type dehumidifierFixture struct {
	svc       *DehumidifierService
	adapter   *fakeAdapter
	states    *fakeStateRepo
	events    *fakeEventRepo
	publisher *fakePublisher
	clock     *testClock
}

func newDehumidifierFixture(t *testing.T) *dehumidifierFixture {
	t.Helper()
	cfg := config.DehumidifierConfig{
		Enabled:           true,
		HumiditySensor:    testHumiditySensor,
		TemperatureSensor: testTempSensor,
		Device:            testDevice,
		HumidityHigh:      70,
		HumidityLow:       60,
		Delay:             300 * time.Second,
		CheckInterval:     time.Minute,
	}
	f := &dehumidifierFixture{
		adapter:   newFakeAdapter(),
		states:    &fakeStateRepo{},
		events:    &fakeEventRepo{},
		publisher: &fakePublisher{},
		clock:     &testClock{t: time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)},
	}
	f.svc = NewDehumidifierService(cfg, f.states, f.events, f.publisher, logger.Nop())
	f.svc.now = f.clock.Now
	return f
}

func (f *dehumidifierFixture) process(t *testing.T, humidity float64, on bool) []Command {
	t.Helper()
	cmds, err := f.svc.Process(context.Background(), f.adapter, ClimateSnapshot{Humidity: &humidity, DeviceOn: on})
	if err != nil {
		t.Fatalf("Process(%.1f, on=%v): %v", humidity, on, err)
	}
	return cmds
}

func actions(cmds []Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Action)
	}
	return out
}

func TestDehumidifier_TurnsOnAboveHighThreshold(t *testing.T) {
	f := newDehumidifierFixture(t)

	cmds := f.process(t, 75, false)
	if got := actions(cmds); !reflect.DeepEqual(got, []string{ActionTurnOn}) {
		t.Fatalf("actions = %v", got)
	}
	if cmds[0].DeviceID != testDevice || cmds[0].Reason == "" {
		t.Fatalf("command = %+v", cmds[0])
	}
	if got := f.adapter.recorded(); !reflect.DeepEqual(got, []string{"turn_on:" + testDevice}) {
		t.Fatalf("adapter calls = %v", got)
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []string{models.EventTurnOn}) {
		t.Fatalf("events = %v", got)
	}
	if len(f.publisher.msgs) != 1 || !f.publisher.msgs[0].Success {
		t.Fatalf("published = %+v", f.publisher.msgs)
	}
}

func TestDehumidifier_NoActionInsideBand(t *testing.T) {
	f := newDehumidifierFixture(t)

	for _, tc := range []struct {
		humidity float64
		on       bool
	}{
		{65, true},
		{65, false},
		{75, true},
		{55, false},
		{70, true},
	} {
		if cmds := f.process(t, tc.humidity, tc.on); len(cmds) != 0 {
			t.Fatalf("humidity %.1f on=%v: unexpected commands %v", tc.humidity, tc.on, cmds)
		}
	}
	if _, ok := f.svc.SecondsRemaining(f.clock.Now()); ok {
		t.Fatalf("timer should not be armed")
	}
	if len(f.adapter.recorded()) != 0 {
		t.Fatalf("adapter should not be called, got %v", f.adapter.recorded())
	}
}

func TestDehumidifier_HighThresholdIsInclusive(t *testing.T) {
	f := newDehumidifierFixture(t)
	if got := actions(f.process(t, 70, false)); !reflect.DeepEqual(got, []string{ActionTurnOn}) {
		t.Fatalf("actions at exactly 70%% = %v", got)
	}
}

func TestDehumidifier_ArmsTimerThenTurnsOffAfterDelay(t *testing.T) {
	f := newDehumidifierFixture(t)
	armedAt := f.clock.Now()

	if cmds := f.process(t, 55, true); len(cmds) != 0 {
		t.Fatalf("arming cycle emitted %v", cmds)
	}
	if f.states.stored.ThresholdCrossedAt == nil || !f.states.stored.ThresholdCrossedAt.Equal(armedAt) {
		t.Fatalf("persisted timer = %v, want %v", f.states.stored.ThresholdCrossedAt, armedAt)
	}

	f.clock.Advance(100 * time.Second)
	if cmds := f.process(t, 50, true); len(cmds) != 0 {
		t.Fatalf("cycle before delay emitted %v", cmds)
	}
	left, ok := f.svc.SecondsRemaining(f.clock.Now())
	if !ok || left != 200 {
		t.Fatalf("SecondsRemaining = %v, %v; want 200, true", left, ok)
	}

	f.clock.Advance(200 * time.Second)
	cmds := f.process(t, 50, true)
	if got := actions(cmds); !reflect.DeepEqual(got, []string{ActionTurnOff}) {
		t.Fatalf("actions after delay = %v", got)
	}
	if _, ok := f.svc.SecondsRemaining(f.clock.Now()); ok {
		t.Fatalf("timer should be cleared after turn_off")
	}
	if f.states.stored.ThresholdCrossedAt != nil {
		t.Fatalf("persisted timer should be cleared")
	}
	want := []string{models.EventTimerArmed, models.EventTurnOff}
	if got := f.events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestDehumidifier_RecoveryCancelsTimer(t *testing.T) {
	f := newDehumidifierFixture(t)

	f.process(t, 55, true)
	f.clock.Advance(time.Minute)
	if cmds := f.process(t, 62, true); len(cmds) != 0 {
		t.Fatalf("cancel cycle emitted %v", cmds)
	}
	if _, ok := f.svc.SecondsRemaining(f.clock.Now()); ok {
		t.Fatalf("timer should be cancelled")
	}

	// a new dip starts a fresh countdown
	f.clock.Advance(10 * time.Minute)
	f.process(t, 58, true)
	left, ok := f.svc.SecondsRemaining(f.clock.Now())
	if !ok || left != 300 {
		t.Fatalf("SecondsRemaining = %v, %v; want full delay", left, ok)
	}
	want := []string{models.EventTimerArmed, models.EventTimerCancelled, models.EventTimerArmed}
	if got := f.events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestDehumidifier_StatusDoesNotResetCountdown(t *testing.T) {
	f := newDehumidifierFixture(t)
	f.adapter.set(sensorState(testHumiditySensor, platform.CapMeasureHumidity, 55, "%"))
	f.adapter.set(switchState(testDevice, true))

	if _, err := f.svc.RunOnce(context.Background(), f.adapter); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	saves := f.states.saves()

	last := 301.0
	for i := 0; i < 5; i++ {
		f.clock.Advance(30 * time.Second)
		st := f.svc.GetStatus(context.Background(), f.adapter)
		if !st.TimerArmed || st.SecondsRemaining == nil {
			t.Fatalf("status %d: timer not armed: %+v", i, st)
		}
		if *st.SecondsRemaining >= last {
			t.Fatalf("status %d: countdown did not advance: %v >= %v", i, *st.SecondsRemaining, last)
		}
		last = *st.SecondsRemaining
	}
	if last != 150 {
		t.Fatalf("remaining after 150s = %v, want 150", last)
	}
	if f.states.saves() != saves {
		t.Fatalf("GetStatus persisted state")
	}
	if got := f.adapter.recorded(); len(got) != 0 {
		t.Fatalf("GetStatus issued commands: %v", got)
	}
}

func TestDehumidifier_StatusCountsPlatformLatency(t *testing.T) {
	f := newDehumidifierFixture(t)
	f.process(t, 55, true)
	f.adapter.set(sensorState(testHumiditySensor, platform.CapMeasureHumidity, 55, "%"))
	f.adapter.set(switchState(testDevice, true))
	f.adapter.onStates = func() { f.clock.Advance(8 * time.Second) }

	st := f.svc.GetStatus(context.Background(), f.adapter)
	if st.SecondsRemaining == nil || *st.SecondsRemaining != 292 {
		t.Fatalf("SecondsRemaining = %v, want 292 after an 8s platform read", st.SecondsRemaining)
	}
	if !st.CheckedAt.Equal(f.clock.Now()) {
		t.Fatalf("CheckedAt = %v, want time after the read %v", st.CheckedAt, f.clock.Now())
	}
}

func TestDehumidifier_RemainingClampsAtZero(t *testing.T) {
	f := newDehumidifierFixture(t)
	f.process(t, 55, true)
	f.clock.Advance(time.Hour)

	st := f.svc.GetStatus(context.Background(), f.adapter)
	if st.SecondsRemaining == nil || *st.SecondsRemaining != 0 {
		t.Fatalf("SecondsRemaining = %v, want 0", st.SecondsRemaining)
	}
	if st.Error == "" {
		t.Fatalf("expected sensor error with empty adapter")
	}
}

func TestDehumidifier_FailedTurnOffKeepsTimer(t *testing.T) {
	f := newDehumidifierFixture(t)
	f.adapter.turnOffErr = platform.ErrTransport

	f.process(t, 55, true)
	f.clock.Advance(5 * time.Minute)

	hum := 55.0
	cmds, err := f.svc.Process(context.Background(), f.adapter, ClimateSnapshot{Humidity: &hum, DeviceOn: true})
	if !errors.Is(err, platform.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if got := actions(cmds); !reflect.DeepEqual(got, []string{ActionTurnOff}) {
		t.Fatalf("actions = %v", got)
	}
	if _, ok := f.svc.SecondsRemaining(f.clock.Now()); !ok {
		t.Fatalf("timer should survive a failed turn_off")
	}
	want := []string{models.EventTimerArmed, models.EventCommandFailed}
	if got := f.events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if len(f.publisher.msgs) != 1 || f.publisher.msgs[0].Success {
		t.Fatalf("published = %+v", f.publisher.msgs)
	}

	// retried on the next cycle
	f.adapter.turnOffErr = nil
	f.clock.Advance(time.Minute)
	if got := actions(f.process(t, 55, true)); !reflect.DeepEqual(got, []string{ActionTurnOff}) {
		t.Fatalf("retry actions = %v", got)
	}
	if _, ok := f.svc.SecondsRemaining(f.clock.Now()); ok {
		t.Fatalf("timer should be cleared after successful retry")
	}
}

func TestDehumidifier_MissingHumidityIsNoop(t *testing.T) {
	f := newDehumidifierFixture(t)
	cmds, err := f.svc.Process(context.Background(), f.adapter, ClimateSnapshot{DeviceOn: true})
	if err != nil || cmds == nil || len(cmds) != 0 {
		t.Fatalf("Process(nil humidity) = %v, %v", cmds, err)
	}
	if f.states.saves() != 0 || len(f.events.types()) != 0 {
		t.Fatalf("no side effects expected")
	}
}

func TestDehumidifier_ReadClimate(t *testing.T) {
	f := newDehumidifierFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ReadClimate(ctx, f.adapter); !errors.Is(err, ErrSensorUnavailable) {
		t.Fatalf("expected ErrSensorUnavailable, got %v", err)
	}

	// numeric primary state without capability map
	f.adapter.set(platform.DeviceState{ID: testHumiditySensor, State: "64.5"})
	f.adapter.set(switchState(testDevice, true))
	f.adapter.set(sensorState(testTempSensor, platform.CapMeasureTemperature, 21.5, "°C"))

	snap, err := f.svc.ReadClimate(ctx, f.adapter)
	if err != nil {
		t.Fatalf("ReadClimate: %v", err)
	}
	if snap.Humidity == nil || *snap.Humidity != 64.5 {
		t.Fatalf("humidity = %v", snap.Humidity)
	}
	if snap.Temperature == nil || *snap.Temperature != 21.5 || !snap.DeviceOn {
		t.Fatalf("snapshot = %+v", snap)
	}

	f.adapter.set(platform.DeviceState{ID: testHumiditySensor, State: platform.StateUnavailable})
	if _, err := f.svc.ReadClimate(ctx, f.adapter); !errors.Is(err, ErrSensorUnavailable) {
		t.Fatalf("expected ErrSensorUnavailable for unavailable sensor, got %v", err)
	}
}

func TestDehumidifier_Restore(t *testing.T) {
	f := newDehumidifierFixture(t)
	crossed := f.clock.Now().Add(-4 * time.Minute)
	f.states.stored = models.AutomationState{ThresholdCrossedAt: &crossed}

	if err := f.svc.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	left, ok := f.svc.SecondsRemaining(f.clock.Now())
	if !ok || left != 60 {
		t.Fatalf("SecondsRemaining = %v, %v; want 60", left, ok)
	}

	f.states.loadErr = errors.New("db locked")
	if err := f.svc.Restore(context.Background()); err == nil {
		t.Fatalf("expected restore error")
	}
}

func TestDehumidifier_Disabled(t *testing.T) {
	f := newDehumidifierFixture(t)
	f.svc.cfg.Enabled = false

	if _, err := f.svc.RunOnce(context.Background(), f.adapter); !errors.Is(err, ErrAutomationDisabled) {
		t.Fatalf("expected ErrAutomationDisabled, got %v", err)
	}

	done := make(chan struct{})
	go func() {
		f.svc.Run(context.Background(), f.adapter, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run should return immediately when disabled")
	}
}

func TestDehumidifier_RunStopsOnCancel(t *testing.T) {
	f := newDehumidifierFixture(t)
	f.adapter.set(sensorState(testHumiditySensor, platform.CapMeasureHumidity, 80, "%"))
	f.adapter.set(switchState(testDevice, false))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx, f.adapter, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(f.adapter.recorded()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("Run never evaluated the automation")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestDehumidifier_ConcurrentProcessAndStatus(t *testing.T) {
	f := newDehumidifierFixture(t)
	f.adapter.set(sensorState(testHumiditySensor, platform.CapMeasureHumidity, 55, "%"))
	f.adapter.set(switchState(testDevice, true))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.svc.RunOnce(ctx, f.adapter); err != nil {
				t.Errorf("RunOnce: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			f.svc.GetStatus(ctx, f.adapter)
		}()
	}
	wg.Wait()

	armed := 0
	for _, typ := range f.events.types() {
		if typ == models.EventTimerArmed {
			armed++
		}
	}
	if armed != 1 {
		t.Fatalf("timer armed %d times, want exactly once", armed)
	}
}
