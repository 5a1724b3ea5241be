package platform

import (
	"context"
	"sort"
)

// Adapter is the device-control surface every vendor integration implements.
//
// Failures never panic out of an adapter: transport problems come back wrapped in
// ErrTransport after being logged by the adapter, semantic problems as
// ErrUnsupportedMode / ErrUnsupportedService. A nil error means the platform accepted
// the call.
type Adapter interface {
	// Name is the canonical platform name, e.g. "home_assistant".
	Name() string

	// TestConnection is a liveness check; it returns false on any failure.
	TestConnection(ctx context.Context) bool

	GetState(ctx context.Context, deviceID string) (DeviceState, error)

	// GetStates returns the states of deviceIDs, or of every device when deviceIDs is nil.
	// On partial failure the states that could be read are returned with the error.
	GetStates(ctx context.Context, deviceIDs []string) (map[string]DeviceState, error)

	TurnOn(ctx context.Context, deviceID string, opts TurnOnOptions) error
	TurnOff(ctx context.Context, deviceID string) error
	SetTemperature(ctx context.Context, deviceID string, value float64) error
	SetHVACMode(ctx context.Context, deviceID string, mode string) error

	// GetAllEntities lists device ids in platform order, filtered by domain when not empty.
	GetAllEntities(ctx context.Context, domain string) ([]string, error)

	// CallService is the generic fallback dispatch.
	CallService(ctx context.Context, domain, service, deviceID string, data map[string]any) error

	// OptionalCapabilities declares which of the optional provider interfaces are served.
	OptionalCapabilities() CapabilitySet
}

// OptionalCapability names a platform-specific feature outside the Adapter interface.
type OptionalCapability string

const (
	OptWeather  OptionalCapability = "weather"
	OptPresence OptionalCapability = "presence"
	OptZones    OptionalCapability = "zones"
	OptFlows    OptionalCapability = "flows"
)

// CapabilitySet is an immutable set of optional capabilities.
type CapabilitySet struct {
	caps map[OptionalCapability]struct{}
}

// NewCapabilitySet builds a set from caps.
func NewCapabilitySet(caps ...OptionalCapability) CapabilitySet {
	m := make(map[OptionalCapability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return CapabilitySet{caps: m}
}

// Has reports whether c is declared.
func (s CapabilitySet) Has(c OptionalCapability) bool {
	_, ok := s.caps[c]
	return ok
}

// List returns the declared capabilities sorted by name.
func (s CapabilitySet) List() []OptionalCapability {
	out := make([]OptionalCapability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WeatherProvider is served by adapters declaring OptWeather.
type WeatherProvider interface {
	GetWeatherData(ctx context.Context) (WeatherSummary, error)
}

// PresenceProvider is served by adapters declaring OptPresence.
type PresenceProvider interface {
	GetPresence(ctx context.Context) (PresenceSummary, error)
}

// ZoneProvider is served by adapters declaring OptZones.
type ZoneProvider interface {
	GetZones(ctx context.Context) ([]Zone, error)
}

// FlowProvider is served by adapters declaring OptFlows.
type FlowProvider interface {
	GetFlows(ctx context.Context) ([]Flow, error)
	TriggerFlow(ctx context.Context, flowID string) error
}

// WeatherSummary aggregates indoor climate sensors. A nil mean means no valid sample.
type WeatherSummary struct {
	Temperature        *float64 `json:"temperature"`
	TemperatureSensors int      `json:"temperature_sensors"`
	Humidity           *float64 `json:"humidity"`
	HumiditySensors    int      `json:"humidity_sensors"`
}

// PresenceSummary lists who is home.
type PresenceSummary struct {
	Users         []PresenceUser `json:"users"`
	PresentCount  int            `json:"present_count"`
	AnyonePresent bool           `json:"anyone_present"`
}

// PresenceUser is one household member.
type PresenceUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Asleep  bool   `json:"asleep"`
}

// Zone is a room or area.
type Zone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// Flow is a platform automation that can be triggered.
type Flow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}
