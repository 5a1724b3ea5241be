package homey

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"smarthome_collector/internal/platform"
)

// Plausible indoor temperature window. Readings outside it usually come from
// devices that misreport a temperature capability.
const (
	minPlausibleTemp = -20.0
	maxPlausibleTemp = 40.0
)

// GetWeatherData averages temperature and humidity over all devices.
// Temperatures outside the plausible window are discarded; humidity is not filtered.
func (a *Adapter) GetWeatherData(ctx context.Context) (platform.WeatherSummary, error) {
	devices, err := a.devices(ctx)
	if err != nil {
		return platform.WeatherSummary{}, err
	}

	var (
		tempSum, humSum float64
		summary         platform.WeatherSummary
	)
	for _, d := range devices {
		caps := d.normalize().Attributes.Capabilities
		if t, ok := caps.Number(platform.CapMeasureTemperature); ok && t >= minPlausibleTemp && t <= maxPlausibleTemp {
			tempSum += t
			summary.TemperatureSensors++
		}
		if h, ok := caps.Number(platform.CapMeasureHumidity); ok {
			humSum += h
			summary.HumiditySensors++
		}
	}

	if summary.TemperatureSensors > 0 {
		avg := tempSum / float64(summary.TemperatureSensors)
		summary.Temperature = &avg
	}
	if summary.HumiditySensors > 0 {
		avg := humSum / float64(summary.HumiditySensors)
		summary.Humidity = &avg
	}
	return summary, nil
}

// GetPresence lists household users and who is home.
func (a *Adapter) GetPresence(ctx context.Context) (platform.PresenceSummary, error) {
	users, err := fetchOrdered[homeyUser](ctx, a, pathUsers)
	if err != nil {
		return platform.PresenceSummary{}, err
	}
	summary := platform.PresenceSummary{Users: make([]platform.PresenceUser, 0, len(users))}
	for _, u := range users {
		summary.Users = append(summary.Users, platform.PresenceUser{
			ID:      u.ID,
			Name:    u.Name,
			Present: u.Present,
			Asleep:  u.Asleep,
		})
		if u.Present {
			summary.PresentCount++
		}
	}
	summary.AnyonePresent = summary.PresentCount > 0
	return summary, nil
}

func (a *Adapter) GetZones(ctx context.Context) ([]platform.Zone, error) {
	zones, err := fetchOrdered[homeyZone](ctx, a, pathZones)
	if err != nil {
		return []platform.Zone{}, err
	}
	out := make([]platform.Zone, 0, len(zones))
	for _, z := range zones {
		out = append(out, platform.Zone{ID: z.ID, Name: z.Name, Parent: z.Parent})
	}
	return out, nil
}

func (a *Adapter) GetFlows(ctx context.Context) ([]platform.Flow, error) {
	flows, err := fetchOrdered[homeyFlow](ctx, a, pathFlows)
	if err != nil {
		return []platform.Flow{}, err
	}
	out := make([]platform.Flow, 0, len(flows))
	for _, f := range flows {
		out = append(out, platform.Flow{ID: f.ID, Name: f.Name, Enabled: f.Enabled})
	}
	return out, nil
}

// TriggerFlow runs a flow by id.
func (a *Adapter) TriggerFlow(ctx context.Context, flowID string) error {
	if flowID == "" {
		return fmt.Errorf("%w: empty flow id", platform.ErrInvalidDeviceID)
	}
	path := pathFlows + "/" + url.PathEscape(flowID) + "/trigger"
	_, err := a.client.DoRaw(ctx, http.MethodPost, path, map[string]any{})
	return err
}

func fetchOrdered[T any](ctx context.Context, a *Adapter, path string) ([]T, error) {
	raw, err := a.client.DoRaw(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeOrdered[T](raw)
	if err != nil {
		a.log.Warnw("response_decode_failed", "path", path, "err", err)
		return nil, fmt.Errorf("%w: decode %s: %w", platform.ErrTransport, path, err)
	}
	return items, nil
}
