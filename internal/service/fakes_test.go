package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"smarthome_collector/internal/models"
	"smarthome_collector/internal/notify"
	"smarthome_collector/internal/platform"
)

// fakeAdapter is an in-memory platform.Adapter.
type fakeAdapter struct {
	mu sync.Mutex

	name        string
	states      map[string]platform.DeviceState
	statesErr   error
	statesCalls int
	// statesGate, when set, makes GetStates wait for it regardless of ctx
	statesGate chan struct{}
	onStates   func()
	caps       platform.CapabilitySet

	turnOnErr  error
	turnOffErr error
	calls      []string

	weather     platform.WeatherSummary
	weatherErr  error
	presenceErr error
	flows       []platform.Flow
}

var _ platform.Adapter = (*fakeAdapter)(nil)

func newFakeAdapter(states ...platform.DeviceState) *fakeAdapter {
	f := &fakeAdapter{name: "fake", states: map[string]platform.DeviceState{}}
	for _, st := range states {
		f.states[st.ID] = st
	}
	return f
}

func (f *fakeAdapter) Name() string                        { return f.name }
func (f *fakeAdapter) TestConnection(context.Context) bool { return true }
func (f *fakeAdapter) OptionalCapabilities() platform.CapabilitySet {
	return f.caps
}

func (f *fakeAdapter) set(st platform.DeviceState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[st.ID] = st
}

func (f *fakeAdapter) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAdapter) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAdapter) GetState(_ context.Context, id string) (platform.DeviceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[id]
	if !ok {
		return platform.DeviceState{}, platform.ErrNotFound
	}
	return st, nil
}

func (f *fakeAdapter) stateReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statesCalls
}

func (f *fakeAdapter) GetStates(_ context.Context, ids []string) (map[string]platform.DeviceState, error) {
	f.mu.Lock()
	f.statesCalls++
	gate, hook := f.statesGate, f.onStates
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]platform.DeviceState{}
	if ids == nil {
		for id, st := range f.states {
			out[id] = st
		}
		return out, f.statesErr
	}
	for _, id := range ids {
		if st, ok := f.states[id]; ok {
			out[id] = st
		}
	}
	return out, f.statesErr
}

func (f *fakeAdapter) TurnOn(_ context.Context, id string, opts platform.TurnOnOptions) error {
	f.record("turn_on:" + id)
	return f.turnOnErr
}

func (f *fakeAdapter) TurnOff(_ context.Context, id string) error {
	f.record("turn_off:" + id)
	return f.turnOffErr
}

func (f *fakeAdapter) SetTemperature(_ context.Context, id string, _ float64) error {
	f.record("set_temperature:" + id)
	return nil
}

func (f *fakeAdapter) SetHVACMode(_ context.Context, id, mode string) error {
	if mode == "dry" {
		return platform.ErrUnsupportedMode
	}
	f.record("set_hvac_mode:" + id)
	return nil
}

func (f *fakeAdapter) GetAllEntities(_ context.Context, domain string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id := range f.states {
		if d, _, ok := platform.SplitEntityID(id); domain == "" || (ok && d == domain) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeAdapter) CallService(_ context.Context, domain, service, id string, _ map[string]any) error {
	f.record(domain + "." + service + ":" + id)
	return nil
}

func (f *fakeAdapter) GetWeatherData(context.Context) (platform.WeatherSummary, error) {
	return f.weather, f.weatherErr
}

func (f *fakeAdapter) GetPresence(context.Context) (platform.PresenceSummary, error) {
	if f.presenceErr != nil {
		return platform.PresenceSummary{}, f.presenceErr
	}
	return platform.PresenceSummary{AnyonePresent: true, PresentCount: 1}, nil
}

func (f *fakeAdapter) GetFlows(context.Context) ([]platform.Flow, error) { return f.flows, nil }

func (f *fakeAdapter) TriggerFlow(_ context.Context, id string) error {
	f.record("trigger_flow:" + id)
	return nil
}

func sensorState(id, capability string, v float64, unit string) platform.DeviceState {
	caps := platform.Capabilities{}
	caps.Set(capability, platform.NumberValue(v), unit)
	return platform.DeviceState{
		ID:    id,
		State: "",
		Attributes: platform.Attributes{
			FriendlyName: id,
			Capabilities: caps,
			Available:    true,
		},
	}
}

func switchState(id string, on bool) platform.DeviceState {
	caps := platform.Capabilities{}
	caps.Set(platform.CapOnOff, platform.BoolValue(on), "")
	state := platform.StateOff
	if on {
		state = platform.StateOn
	}
	return platform.DeviceState{
		ID:         id,
		State:      state,
		Attributes: platform.Attributes{FriendlyName: id, Capabilities: caps, Available: true},
	}
}

// fakeStateRepo keeps automation state in memory.
type fakeStateRepo struct {
	mu      sync.Mutex
	saved   []models.AutomationState
	stored  models.AutomationState
	loadErr error
}

func (r *fakeStateRepo) Save(_ context.Context, s models.AutomationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, s)
	r.stored = s
	return nil
}

func (r *fakeStateRepo) Load(_ context.Context, name string) (models.AutomationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return models.AutomationState{}, r.loadErr
	}
	st := r.stored
	st.Name = name
	return st, nil
}

func (r *fakeStateRepo) saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

// fakePublisher records published command messages.
type fakePublisher struct {
	mu   sync.Mutex
	msgs []notify.CommandMessage
	err  error
}

func (p *fakePublisher) PublishCommand(msg notify.CommandMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

// memReadingRepo is an in-memory repository.ReadingRepo.
type memReadingRepo struct {
	mu       sync.Mutex
	sensor   []models.SensorReading
	external []models.ExternalReading
	failAll  bool
	failIDs  map[string]bool
	panicID  string
}

var errStoreDown = errors.New("store down")

func (m *memReadingRepo) InsertSensorData(_ context.Context, r models.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.SensorID != "" && r.SensorID == m.panicID {
		panic("corrupt reading " + r.SensorID)
	}
	if m.failAll || m.failIDs[r.SensorID] {
		return errStoreDown
	}
	m.sensor = append(m.sensor, r)
	return nil
}

func (m *memReadingRepo) InsertExternalData(_ context.Context, r models.ExternalReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errStoreDown
	}
	m.external = append(m.external, r)
	return nil
}

func (m *memReadingRepo) SensorDataCount(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sensor)), nil
}

func (m *memReadingRepo) ExternalDataCount(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.external)), nil
}

func (m *memReadingRepo) LatestSensorTimestamp(context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, r := range m.sensor {
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	return latest, !latest.IsZero(), nil
}

func (m *memReadingRepo) SensorHistory(_ context.Context, id string, limit int) ([]models.SensorReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SensorReading
	for i := len(m.sensor) - 1; i >= 0 && len(out) < limit; i-- {
		if m.sensor[i].SensorID == id {
			out = append(out, m.sensor[i])
		}
	}
	return out, nil
}

func (m *memReadingRepo) sensorIDs() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, r := range m.sensor {
		out[r.SensorID] = true
	}
	return out
}

func (m *memReadingRepo) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sensor), len(m.external)
}

// testClock is a settable clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
