package service

import (
	"context"
	"errors"
	"fmt"

	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/platform"
)

// ErrCapabilityUnsupported is returned for optional features the platform does not declare.
var ErrCapabilityUnsupported = errors.New("capability not supported by platform")

// DeviceService exposes manual device control over the configured adapter.
type DeviceService struct {
	adapter platform.Adapter
	log     *logger.Logger
}

func NewDeviceService(adapter platform.Adapter, log *logger.Logger) *DeviceService {
	return &DeviceService{adapter: adapter, log: log.Named("devices")}
}

func (s *DeviceService) Platform() string { return s.adapter.Name() }

func (s *DeviceService) ListDevices(ctx context.Context, domain string) (DeviceList, error) {
	ids, err := s.adapter.GetAllEntities(ctx, domain)
	if err != nil {
		return DeviceList{}, err
	}
	return DeviceList{Platform: s.adapter.Name(), Domain: domain, Devices: ids}, nil
}

func (s *DeviceService) GetDevice(ctx context.Context, id string) (platform.DeviceState, error) {
	return s.adapter.GetState(ctx, id)
}

func (s *DeviceService) TurnOn(ctx context.Context, id string, p TurnOnParams) error {
	if p.Brightness != nil && (*p.Brightness < 0 || *p.Brightness > 255) {
		return fmt.Errorf("brightness %d out of range 0-255", *p.Brightness)
	}
	err := s.adapter.TurnOn(ctx, id, platform.TurnOnOptions{Brightness: p.Brightness})
	s.logCommand("turn_on", id, err)
	return err
}

func (s *DeviceService) TurnOff(ctx context.Context, id string) error {
	err := s.adapter.TurnOff(ctx, id)
	s.logCommand("turn_off", id, err)
	return err
}

func (s *DeviceService) SetTemperature(ctx context.Context, id string, value float64) error {
	err := s.adapter.SetTemperature(ctx, id, value)
	s.logCommand("set_temperature", id, err)
	return err
}

func (s *DeviceService) SetHVACMode(ctx context.Context, id, mode string) error {
	err := s.adapter.SetHVACMode(ctx, id, mode)
	s.logCommand("set_hvac_mode", id, err)
	return err
}

// Capabilities lists the optional features of the platform.
func (s *DeviceService) Capabilities() []platform.OptionalCapability {
	return s.adapter.OptionalCapabilities().List()
}

func (s *DeviceService) Zones(ctx context.Context) ([]platform.Zone, error) {
	zp, ok := s.adapter.(platform.ZoneProvider)
	if !ok || !s.adapter.OptionalCapabilities().Has(platform.OptZones) {
		return nil, fmt.Errorf("%w: %s", ErrCapabilityUnsupported, platform.OptZones)
	}
	return zp.GetZones(ctx)
}

func (s *DeviceService) Flows(ctx context.Context) ([]platform.Flow, error) {
	fp, err := s.flowProvider()
	if err != nil {
		return nil, err
	}
	return fp.GetFlows(ctx)
}

func (s *DeviceService) TriggerFlow(ctx context.Context, id string) error {
	fp, err := s.flowProvider()
	if err != nil {
		return err
	}
	err = fp.TriggerFlow(ctx, id)
	s.logCommand("trigger_flow", id, err)
	return err
}

func (s *DeviceService) flowProvider() (platform.FlowProvider, error) {
	fp, ok := s.adapter.(platform.FlowProvider)
	if !ok || !s.adapter.OptionalCapabilities().Has(platform.OptFlows) {
		return nil, fmt.Errorf("%w: %s", ErrCapabilityUnsupported, platform.OptFlows)
	}
	return fp, nil
}

func (s *DeviceService) logCommand(action, id string, err error) {
	if err != nil {
		s.log.Warnw("device_command_failed", "action", action, "device_id", id, "err", err)
		return
	}
	s.log.Infow("device_command_sent", "action", action, "device_id", id)
}
