package homey

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/platform"
)

// PlatformName is the canonical name of this adapter.
const PlatformName = "homey"

const (
	pathSystem  = "/api/manager/system"
	pathDevices = "/api/manager/devices/device"
	pathZones   = "/api/manager/zones/zone"
	pathFlows   = "/api/manager/flow/flow"
	pathUsers   = "/api/manager/users/user"
)

// hvacModes maps normalized HVAC modes to Homey thermostat_mode values.
var hvacModes = map[string]string{
	"heat": "heat",
	"cool": "cool",
	"auto": "auto",
	"off":  "off",
}

// domainClasses maps entity domains to the Homey device classes they cover.
// Domains not listed here match a class of the same name.
var domainClasses = map[string][]string{
	"light":         {"light", "socket"},
	"switch":        {"socket"},
	"climate":       {"thermostat", "heater", "airconditioning"},
	"sensor":        {"sensor"},
	"binary_sensor": {"sensor"},
}

// Adapter talks to the Homey Pro local REST API.
type Adapter struct {
	client *platform.RESTClient
	cache  *deviceCache
	log    *logger.Logger
}

var (
	_ platform.Adapter          = (*Adapter)(nil)
	_ platform.WeatherProvider  = (*Adapter)(nil)
	_ platform.PresenceProvider = (*Adapter)(nil)
	_ platform.ZoneProvider     = (*Adapter)(nil)
	_ platform.FlowProvider     = (*Adapter)(nil)
)

// New builds an adapter for the Homey at baseURL using an API key.
func New(baseURL, token string, log *logger.Logger) *Adapter {
	log = log.Named(PlatformName)
	return &Adapter{
		client: platform.NewRESTClient(PlatformName, baseURL, token, log),
		cache:  newDeviceCache(DeviceCacheTTL),
		log:    log,
	}
}

func (a *Adapter) Name() string { return PlatformName }

func (a *Adapter) OptionalCapabilities() platform.CapabilitySet {
	return platform.NewCapabilitySet(platform.OptWeather, platform.OptPresence, platform.OptZones, platform.OptFlows)
}

// TestConnection checks the system manager.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	_, err := a.client.DoRaw(ctx, http.MethodGet, pathSystem, nil)
	return err == nil
}

// GetState always reads the device directly, bypassing the cache.
func (a *Adapter) GetState(ctx context.Context, deviceID string) (platform.DeviceState, error) {
	if deviceID == "" {
		return platform.DeviceState{}, a.invalidID(deviceID)
	}
	var d homeyDevice
	if err := a.client.Do(ctx, http.MethodGet, devicePath(deviceID), nil, &d); err != nil {
		if code, ok := platform.HTTPStatus(err); ok && code == http.StatusNotFound {
			return platform.DeviceState{}, fmt.Errorf("%w: %s", platform.ErrNotFound, deviceID)
		}
		return platform.DeviceState{}, err
	}
	return d.normalize(), nil
}

func (a *Adapter) GetStates(ctx context.Context, deviceIDs []string) (map[string]platform.DeviceState, error) {
	devices, err := a.devices(ctx)
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

	out := make(map[string]platform.DeviceState, len(devices))
	for _, d := range devices {
		if want != nil {
			if _, ok := want[d.ID]; !ok {
				continue
			}
		}
		out[d.ID] = d.normalize()
	}
	return out, nil
}

// TurnOn sets onoff and, when a brightness is given, dim rescaled to 0..1.
// Extra options have no Homey counterpart and are dropped.
func (a *Adapter) TurnOn(ctx context.Context, deviceID string, opts platform.TurnOnOptions) error {
	if err := a.setCapability(ctx, deviceID, platform.CapOnOff, true); err != nil {
		return err
	}
	if opts.Brightness != nil {
		return a.setCapability(ctx, deviceID, platform.CapDim, platform.BrightnessToDim(*opts.Brightness))
	}
	if len(opts.Extra) > 0 {
		a.log.Debugw("turn_on_extra_ignored", "device_id", deviceID, "keys", len(opts.Extra))
	}
	return nil
}

func (a *Adapter) TurnOff(ctx context.Context, deviceID string) error {
	return a.setCapability(ctx, deviceID, platform.CapOnOff, false)
}

func (a *Adapter) SetTemperature(ctx context.Context, deviceID string, value float64) error {
	return a.setCapability(ctx, deviceID, platform.CapTargetTemperature, value)
}

// SetHVACMode maps mode through hvacModes; anything else is rejected before any request.
func (a *Adapter) SetHVACMode(ctx context.Context, deviceID string, mode string) error {
	homeyMode, ok := hvacModes[strings.ToLower(strings.TrimSpace(mode))]
	if !ok {
		a.log.Warnw("hvac_mode_unsupported", "device_id", deviceID, "mode", mode)
		return fmt.Errorf("%w: %q", platform.ErrUnsupportedMode, mode)
	}
	return a.setCapability(ctx, deviceID, platform.CapThermostatMode, homeyMode)
}

// GetAllEntities lists device ids in the order Homey returns them, filtered by the
// device classes the domain covers.
func (a *Adapter) GetAllEntities(ctx context.Context, domain string) ([]string, error) {
	devices, err := a.devices(ctx)
	if err != nil {
		return []string{}, err
	}

	var classes map[string]struct{}
	if domain != "" {
		list, ok := domainClasses[domain]
		if !ok {
			list = []string{domain}
		}
		classes = make(map[string]struct{}, len(list))
		for _, c := range list {
			classes[c] = struct{}{}
		}
	}

	ids := make([]string, 0, len(devices))
	for _, d := range devices {
		if classes != nil {
			if _, ok := classes[d.Class]; !ok {
				continue
			}
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// CallService translates the Home Assistant service vocabulary into capability writes.
func (a *Adapter) CallService(ctx context.Context, domain, service, deviceID string, data map[string]any) error {
	switch service {
	case "turn_on":
		var opts platform.TurnOnOptions
		if b, ok := data["brightness"].(float64); ok {
			v := int(math.Round(b))
			opts.Brightness = &v
		} else if b, ok := data["brightness"].(int); ok {
			opts.Brightness = &b
		}
		return a.TurnOn(ctx, deviceID, opts)
	case "turn_off":
		return a.TurnOff(ctx, deviceID)
	case "toggle":
		st, err := a.GetState(ctx, deviceID)
		if err != nil {
			return err
		}
		return a.setCapability(ctx, deviceID, platform.CapOnOff, !st.IsOn())
	case "set_temperature":
		if t, ok := data["temperature"].(float64); ok {
			return a.SetTemperature(ctx, deviceID, t)
		}
	case "set_hvac_mode":
		if m, ok := data["hvac_mode"].(string); ok {
			return a.SetHVACMode(ctx, deviceID, m)
		}
	}
	a.log.Warnw("service_unsupported", "domain", domain, "service", service, "device_id", deviceID)
	return fmt.Errorf("%w: %s.%s", platform.ErrUnsupportedService, domain, service)
}

// setCapability PUTs {"value": v} to the device capability endpoint.
func (a *Adapter) setCapability(ctx context.Context, deviceID, capability string, value any) error {
	if deviceID == "" {
		return a.invalidID(deviceID)
	}
	path := devicePath(deviceID) + "/capability/" + url.PathEscape(capability)
	if err := a.client.Do(ctx, http.MethodPut, path, map[string]any{"value": value}, nil); err != nil {
		return err
	}
	a.cache.invalidate()
	return nil
}

// devices returns the device listing, served from cache while it is fresh.
func (a *Adapter) devices(ctx context.Context) ([]homeyDevice, error) {
	if devices, ok := a.cache.get(); ok {
		return devices, nil
	}
	devices, err := fetchOrdered[homeyDevice](ctx, a, pathDevices)
	if err != nil {
		return nil, err
	}
	a.cache.put(devices)
	return devices, nil
}

func (a *Adapter) invalidID(deviceID string) error {
	a.log.Warnw("device_id_invalid", "device_id", deviceID)
	return fmt.Errorf("%w: empty device id", platform.ErrInvalidDeviceID)
}

func devicePath(deviceID string) string {
	return pathDevices + "/" + url.PathEscape(deviceID)
}
