package handlers

import (
	"context"
	"net/http"
	"time"

	"smarthome_collector/internal/models"
	"smarthome_collector/internal/platform"
	"smarthome_collector/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastGenUsername    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockCollector struct {
	running    bool
	stats      service.CollectorStats
	statsErr   error
	report     service.CycleReport
	collectErr error
	history    []models.SensorReading
	historyErr error

	collectCalls int
	lastSensor   string
	lastLimit    int
}

func (m *mockCollector) Start()        {}
func (m *mockCollector) Stop() error   { return nil }
func (m *mockCollector) Running() bool { return m.running }
func (m *mockCollector) Stats(ctx context.Context) (service.CollectorStats, error) {
	return m.stats, m.statsErr
}
func (m *mockCollector) CollectOnce(ctx context.Context) (service.CycleReport, error) {
	m.collectCalls++
	return m.report, m.collectErr
}
func (m *mockCollector) History(ctx context.Context, sensorID string, limit int) ([]models.SensorReading, error) {
	m.lastSensor = sensorID
	m.lastLimit = limit
	return m.history, m.historyErr
}

type mockDehumidifier struct {
	status   service.DehumidifierStatus
	commands []service.Command
	err      error

	statusCalls   int
	evaluateCalls int
}

func (m *mockDehumidifier) Restore(ctx context.Context) error               { return nil }
func (m *mockDehumidifier) Run(ctx context.Context, interval time.Duration) {}
func (m *mockDehumidifier) Status(ctx context.Context) service.DehumidifierStatus {
	m.statusCalls++
	return m.status
}
func (m *mockDehumidifier) Evaluate(ctx context.Context) ([]service.Command, error) {
	m.evaluateCalls++
	return m.commands, m.err
}

type mockDevices struct {
	list     service.DeviceList
	state    platform.DeviceState
	err      error
	caps     []platform.OptionalCapability
	flows    []platform.Flow
	flowsErr error

	lastID         string
	lastTurnOn     service.TurnOnParams
	lastTemp       float64
	lastMode       string
	lastDomain     string
	commandActions []string
}

func (m *mockDevices) Platform() string                            { return "home_assistant" }
func (m *mockDevices) Capabilities() []platform.OptionalCapability { return m.caps }
func (m *mockDevices) ListDevices(ctx context.Context, domain string) (service.DeviceList, error) {
	m.lastDomain = domain
	return m.list, m.err
}
func (m *mockDevices) GetDevice(ctx context.Context, id string) (platform.DeviceState, error) {
	m.lastID = id
	return m.state, m.err
}
func (m *mockDevices) TurnOn(ctx context.Context, id string, p service.TurnOnParams) error {
	m.lastID, m.lastTurnOn = id, p
	m.commandActions = append(m.commandActions, "turn_on")
	return m.err
}
func (m *mockDevices) TurnOff(ctx context.Context, id string) error {
	m.lastID = id
	m.commandActions = append(m.commandActions, "turn_off")
	return m.err
}
func (m *mockDevices) SetTemperature(ctx context.Context, id string, value float64) error {
	m.lastID, m.lastTemp = id, value
	m.commandActions = append(m.commandActions, "set_temperature")
	return m.err
}
func (m *mockDevices) SetHVACMode(ctx context.Context, id, mode string) error {
	m.lastID, m.lastMode = id, mode
	m.commandActions = append(m.commandActions, "set_hvac_mode")
	return m.err
}
func (m *mockDevices) Zones(ctx context.Context) ([]platform.Zone, error) {
	return nil, service.ErrCapabilityUnsupported
}
func (m *mockDevices) Flows(ctx context.Context) ([]platform.Flow, error) {
	return m.flows, m.flowsErr
}
func (m *mockDevices) TriggerFlow(ctx context.Context, id string) error {
	m.lastID = id
	return m.flowsErr
}

type mockEventLog struct {
	resp []models.AutomationEvent
	err  error
	last service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.AutomationEvent, error) {
	m.last = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func withAuth(req *http.Request) *http.Request {
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
