package homeassistant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/platform"
)

// PlatformName is the canonical name of this adapter.
const PlatformName = "home_assistant"

const (
	pathPing     = "/api/"
	pathStates   = "/api/states"
	pathServices = "/api/services"
)

// hvacModes lists the modes climate.set_hvac_mode accepts.
var hvacModes = map[string]struct{}{
	"off": {}, "heat": {}, "cool": {}, "heat_cool": {}, "auto": {}, "dry": {}, "fan_only": {},
}

var serviceNameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// Adapter talks to the Home Assistant REST API.
type Adapter struct {
	client *platform.RESTClient
	log    *logger.Logger
}

var _ platform.Adapter = (*Adapter)(nil)

// New builds an adapter for the instance at baseURL using a long-lived access token.
func New(baseURL, token string, log *logger.Logger) *Adapter {
	log = log.Named(PlatformName)
	return &Adapter{
		client: platform.NewRESTClient(PlatformName, baseURL, token, log),
		log:    log,
	}
}

func (a *Adapter) Name() string { return PlatformName }

// OptionalCapabilities is empty: Home Assistant exposes only the common surface.
func (a *Adapter) OptionalCapabilities() platform.CapabilitySet {
	return platform.NewCapabilitySet()
}

// TestConnection calls GET /api/.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	var resp struct {
		Message string `json:"message"`
	}
	if err := a.client.Do(ctx, http.MethodGet, pathPing, nil, &resp); err != nil {
		return false
	}
	return true
}

func (a *Adapter) GetState(ctx context.Context, deviceID string) (platform.DeviceState, error) {
	var st haState
	err := a.client.Do(ctx, http.MethodGet, pathStates+"/"+url.PathEscape(deviceID), nil, &st)
	if err != nil {
		if code, ok := platform.HTTPStatus(err); ok && code == http.StatusNotFound {
			return platform.DeviceState{}, fmt.Errorf("%w: %s", platform.ErrNotFound, deviceID)
		}
		return platform.DeviceState{}, err
	}
	return st.normalize(), nil
}

// GetStates reads all entities in one request and filters locally.
func (a *Adapter) GetStates(ctx context.Context, deviceIDs []string) (map[string]platform.DeviceState, error) {
	states, err := a.fetchStates(ctx)
	if err != nil {
		return map[string]platform.DeviceState{}, err
	}

	var want map[string]struct{}
	if deviceIDs != nil {
		want = make(map[string]struct{}, len(deviceIDs))
		for _, id := range deviceIDs {
			want[id] = struct{}{}
		}
	}

	out := make(map[string]platform.DeviceState, len(states))
	for _, st := range states {
		if want != nil {
			if _, ok := want[st.EntityID]; !ok {
				continue
			}
		}
		out[st.EntityID] = st.normalize()
	}
	return out, nil
}

func (a *Adapter) TurnOn(ctx context.Context, deviceID string, opts platform.TurnOnOptions) error {
	domain, _, ok := platform.SplitEntityID(deviceID)
	if !ok {
		return a.invalidID(deviceID)
	}
	data := make(map[string]any, len(opts.Extra)+1)
	for k, v := range opts.Extra {
		data[k] = v
	}
	if opts.Brightness != nil {
		data["brightness"] = clampBrightness(*opts.Brightness)
	}
	return a.CallService(ctx, domain, "turn_on", deviceID, data)
}

func (a *Adapter) TurnOff(ctx context.Context, deviceID string) error {
	domain, _, ok := platform.SplitEntityID(deviceID)
	if !ok {
		return a.invalidID(deviceID)
	}
	return a.CallService(ctx, domain, "turn_off", deviceID, nil)
}

func (a *Adapter) SetTemperature(ctx context.Context, deviceID string, value float64) error {
	return a.CallService(ctx, "climate", "set_temperature", deviceID, map[string]any{"temperature": value})
}

// SetHVACMode forwards mode after checking it against the climate integration's modes.
func (a *Adapter) SetHVACMode(ctx context.Context, deviceID string, mode string) error {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if _, ok := hvacModes[mode]; !ok {
		a.log.Warnw("hvac_mode_unsupported", "device_id", deviceID, "mode", mode)
		return fmt.Errorf("%w: %q", platform.ErrUnsupportedMode, mode)
	}
	return a.CallService(ctx, "climate", "set_hvac_mode", deviceID, map[string]any{"hvac_mode": mode})
}

// GetAllEntities returns entity ids in the order /api/states lists them.
func (a *Adapter) GetAllEntities(ctx context.Context, domain string) ([]string, error) {
	states, err := a.fetchStates(ctx)
	if err != nil {
		return []string{}, err
	}
	prefix := ""
	if domain != "" {
		prefix = domain + "."
	}
	ids := make([]string, 0, len(states))
	for _, st := range states {
		if strings.HasPrefix(st.EntityID, prefix) {
			ids = append(ids, st.EntityID)
		}
	}
	return ids, nil
}

// CallService POSTs to /api/services/{domain}/{service} with entity_id merged into data.
func (a *Adapter) CallService(ctx context.Context, domain, service, deviceID string, data map[string]any) error {
	if !serviceNameRe.MatchString(domain) || !serviceNameRe.MatchString(service) {
		a.log.Warnw("service_unsupported", "domain", domain, "service", service, "device_id", deviceID)
		return fmt.Errorf("%w: %s.%s", platform.ErrUnsupportedService, domain, service)
	}
	body := make(map[string]any, len(data)+1)
	for k, v := range data {
		body[k] = v
	}
	if deviceID != "" {
		body["entity_id"] = deviceID
	}
	path := pathServices + "/" + domain + "/" + service
	return a.client.Do(ctx, http.MethodPost, path, body, nil)
}

func (a *Adapter) fetchStates(ctx context.Context) ([]haState, error) {
	var states []haState
	if err := a.client.Do(ctx, http.MethodGet, pathStates, nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

func (a *Adapter) invalidID(deviceID string) error {
	a.log.Warnw("device_id_invalid", "device_id", deviceID)
	return fmt.Errorf("%w: %q is not domain.object_id", platform.ErrInvalidDeviceID, deviceID)
}

func clampBrightness(b int) int {
	if b < 0 {
		return 0
	}
	if b > 255 {
		return 255
	}
	return b
}
