package notify

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"smarthome_collector/internal/config"
	"smarthome_collector/internal/logger"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePaho struct {
	msgs  []published
	token *fakeToken
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.msgs = append(f.msgs, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return f.token
}

type fakeConn struct {
	fakePaho
	connectToken *fakeToken
	disconnects  []uint
}

func (f *fakeConn) Connect() pahomqtt.Token { return f.connectToken }
func (f *fakeConn) Disconnect(quiesce uint) { f.disconnects = append(f.disconnects, quiesce) }

func useFakeConn(t *testing.T, conn *fakeConn) {
	t.Helper()
	orig := newPahoClient
	newPahoClient = func(*pahomqtt.ClientOptions) pahoConn { return conn }
	t.Cleanup(func() { newPahoClient = orig })
}

func TestCommandTopic(t *testing.T) {
	tests := []struct{ prefix, want string }{
		{"smarthome", "smarthome/automation/dehumidifier/command"},
		{"home/", "home/automation/dehumidifier/command"},
		{"", "automation/dehumidifier/command"},
	}
	for _, tt := range tests {
		if got := CommandTopic(tt.prefix, "dehumidifier"); got != tt.want {
			t.Errorf("CommandTopic(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestPublishCommand(t *testing.T) {
	fake := &fakePaho{token: &fakeToken{}}
	p := &MQTTPublisher{client: fake, prefix: "smarthome", qos: 1, log: logger.Nop()}
	issued := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	err := p.PublishCommand(CommandMessage{
		Automation: "dehumidifier",
		Action:     "turn_on",
		DeviceID:   "switch.dh",
		Reason:     "humidity 75% >= 70%",
		Success:    true,
		IssuedAt:   issued,
	})
	if err != nil {
		t.Fatalf("PublishCommand: %v", err)
	}
	if len(fake.msgs) != 1 {
		t.Fatalf("got %d messages", len(fake.msgs))
	}
	m := fake.msgs[0]
	if m.topic != "smarthome/automation/dehumidifier/command" || m.qos != 1 || m.retained {
		t.Fatalf("message = %+v", m)
	}
	var got CommandMessage
	if err := json.Unmarshal(m.payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Action != "turn_on" || got.DeviceID != "switch.dh" || !got.IssuedAt.Equal(issued) {
		t.Fatalf("payload = %+v", got)
	}
}

func TestPublishCommand_Errors(t *testing.T) {
	brokerErr := errors.New("not authorized")
	p := &MQTTPublisher{client: &fakePaho{token: &fakeToken{err: brokerErr}}, log: logger.Nop()}
	if err := p.PublishCommand(CommandMessage{Automation: "a"}); !errors.Is(err, ErrPublishFailed) || !errors.Is(err, brokerErr) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}

	p = &MQTTPublisher{client: &fakePaho{token: &fakeToken{timeout: true}}, log: logger.Nop()}
	if err := p.PublishCommand(CommandMessage{Automation: "a"}); !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	if _, err := Connect(config.MQTTConfig{}, nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestConnect_FailureDisconnectsClient(t *testing.T) {
	cfg := config.MQTTConfig{Enabled: true, Broker: "tcp://127.0.0.1:1883", ClientID: "collector-test"}
	refused := errors.New("connection refused")

	cases := []struct {
		name  string
		token *fakeToken
	}{
		{"timeout", &fakeToken{timeout: true}},
		{"broker error", &fakeToken{err: refused}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := &fakeConn{connectToken: tc.token}
			useFakeConn(t, conn)

			pub, err := Connect(cfg, logger.Nop())
			if !errors.Is(err, ErrConnectionFailed) || pub != nil {
				t.Fatalf("expected ErrConnectionFailed, got %v, %v", pub, err)
			}
			if len(conn.disconnects) != 1 || conn.disconnects[0] != disconnectQuiesceMS {
				t.Fatalf("disconnects = %v, want one with quiesce %d", conn.disconnects, disconnectQuiesceMS)
			}
		})
	}
}

func TestConnect_SuccessKeepsClient(t *testing.T) {
	conn := &fakeConn{connectToken: &fakeToken{}, fakePaho: fakePaho{token: &fakeToken{}}}
	useFakeConn(t, conn)

	pub, err := Connect(config.MQTTConfig{Enabled: true, Broker: "tcp://127.0.0.1:1883", TopicPrefix: "home", QoS: 1}, logger.Nop())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(conn.disconnects) != 0 {
		t.Fatalf("connected client was disconnected")
	}
	if err := pub.PublishCommand(CommandMessage{Automation: "dehumidifier"}); err != nil {
		t.Fatalf("PublishCommand: %v", err)
	}
	if len(conn.msgs) != 1 || conn.msgs[0].topic != "home/automation/dehumidifier/command" {
		t.Fatalf("messages = %+v", conn.msgs)
	}
	pub.Close()
	if len(conn.disconnects) != 1 {
		t.Fatalf("Close should disconnect once, got %v", conn.disconnects)
	}
}
