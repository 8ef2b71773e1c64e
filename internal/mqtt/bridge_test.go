package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/muurk/ecomax360/internal/config"
	"github.com/muurk/ecomax360/internal/payload"
	"github.com/muurk/ecomax360/internal/poller"
)

type mockToken struct{ err error }

func (t mockToken) Wait() bool                     { return true }
func (t mockToken) WaitTimeout(time.Duration) bool { return true }
func (t mockToken) Error() error                   { return t.err }
func (t mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type mockClient struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	pubs       []published
	subs       map[string]paho.MessageHandler
}

func newMockClient() *mockClient {
	return &mockClient{connected: true, subs: make(map[string]paho.MessageHandler)}
}

func (m *mockClient) Connect() paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = m.connectErr == nil
	return mockToken{m.connectErr}
}

func (m *mockClient) Disconnect(uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *mockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, p interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	var data []byte
	switch v := p.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	}
	m.pubs = append(m.pubs, published{topic, qos, retained, data})
	return mockToken{}
}

func (m *mockClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = cb
	return mockToken{}
}

func (m *mockClient) last(topic string) (published, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.pubs) - 1; i >= 0; i-- {
		if m.pubs[i].topic == topic {
			return m.pubs[i], true
		}
	}
	return published{}, false
}

type mockMessage struct {
	topic   string
	payload []byte
	acked   bool
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 1 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              { m.acked = true }

type mockWriter struct {
	preset  string
	night   bool
	celsius float64
	target  float64
	err     error
}

func (w *mockWriter) SetPreset(ctx context.Context, preset string) error {
	w.preset = preset
	return w.err
}

func (w *mockWriter) SetSetpoint(ctx context.Context, night bool, celsius float64) error {
	w.night, w.celsius = night, celsius
	return w.err
}

func (w *mockWriter) SetTargetTemperature(ctx context.Context, celsius float64) (string, error) {
	w.target = celsius
	return "SET_SETPOINT_DAY", w.err
}

func newTestBridge(w Writer) (*Bridge, *mockClient) {
	b := newBridge(config.MQTTConfig{Broker: "tcp://broker:1883", TopicPrefix: "home/", QoS: 1, Retain: true}, "boiler", w)
	m := newMockClient()
	b.client = m
	return b, m
}

func TestPublishSnapshot(t *testing.T) {
	b, m := newTestBridge(&mockWriter{})

	b.Publish(poller.Snapshot{
		Parameter: "GET_THERMOSTAT",
		Reading:   payload.Reading{"TEMPERATURE": {Kind: payload.KindFloat32, Float: 21.5}},
	})

	pub, ok := m.last("home/boiler/state/GET_THERMOSTAT")
	if !ok {
		t.Fatalf("no publish on state topic, got %+v", m.pubs)
	}
	if pub.qos != 1 || !pub.retain {
		t.Errorf("qos = %d, retain = %v, want 1 and true", pub.qos, pub.retain)
	}

	var got struct {
		Parameter string             `json:"parameter"`
		Reading   map[string]float64 `json:"reading"`
	}
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v (%s)", err, pub.payload)
	}
	if got.Reading["TEMPERATURE"] != 21.5 {
		t.Errorf("TEMPERATURE = %v, want 21.5", got.Reading["TEMPERATURE"])
	}
}

func TestPublishSkippedWhenDisconnected(t *testing.T) {
	b, m := newTestBridge(&mockWriter{})
	m.connected = false

	b.Publish(poller.Snapshot{Parameter: "GET_DATAS"})
	if len(m.pubs) != 0 {
		t.Errorf("published %d messages while disconnected", len(m.pubs))
	}
}

func TestOnConnect(t *testing.T) {
	b, m := newTestBridge(&mockWriter{})

	b.onConnect(m)

	pub, ok := m.last("home/boiler/status")
	if !ok || string(pub.payload) != statusOnline || !pub.retain {
		t.Errorf("status publish = %+v, want retained online", pub)
	}
	if _, ok := m.subs["home/boiler/set/#"]; !ok {
		t.Errorf("subscriptions = %v, want home/boiler/set/#", m.subs)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		check   func(t *testing.T, w *mockWriter)
		wantOK  bool
	}{
		{"preset", "set/preset", "eco", func(t *testing.T, w *mockWriter) {
			if w.preset != "eco" {
				t.Errorf("preset = %q, want eco", w.preset)
			}
		}, true},
		{"day setpoint", "set/setpoint/day", "21.5", func(t *testing.T, w *mockWriter) {
			if w.night || w.celsius != 21.5 {
				t.Errorf("setpoint = night:%v %v, want day 21.5", w.night, w.celsius)
			}
		}, true},
		{"night setpoint", "set/setpoint/night", " 17 ", func(t *testing.T, w *mockWriter) {
			if !w.night || w.celsius != 17 {
				t.Errorf("setpoint = night:%v %v, want night 17", w.night, w.celsius)
			}
		}, true},
		{"target", "set/target", "19", func(t *testing.T, w *mockWriter) {
			if w.target != 19 {
				t.Errorf("target = %v, want 19", w.target)
			}
		}, true},
		{"bad number", "set/target", "warm", nil, false},
		{"unknown", "set/fan", "on", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &mockWriter{}
			b, m := newTestBridge(w)
			refreshed := false
			b.AfterWrite = func(context.Context) { refreshed = true }

			msg := &mockMessage{topic: "home/boiler/" + tt.topic, payload: []byte(tt.payload)}
			b.handleCommand(nil, msg)

			if !msg.acked {
				t.Error("command message not acknowledged")
			}
			if tt.check != nil {
				tt.check(t, w)
			}
			if refreshed != tt.wantOK {
				t.Errorf("AfterWrite called = %v, want %v", refreshed, tt.wantOK)
			}

			pub, ok := m.last("home/boiler/result")
			if !ok {
				t.Fatal("no result published")
			}
			var res Result
			if err := json.Unmarshal(pub.payload, &res); err != nil {
				t.Fatalf("result is not JSON: %v", err)
			}
			if res.OK != tt.wantOK {
				t.Errorf("result = %+v, want ok=%v", res, tt.wantOK)
			}
		})
	}
}

func TestCommandWriterError(t *testing.T) {
	w := &mockWriter{err: errors.New("no ack")}
	b, m := newTestBridge(w)

	b.handleCommand(nil, &mockMessage{topic: "home/boiler/set/preset", payload: []byte("eco")})

	pub, _ := m.last("home/boiler/result")
	var res Result
	if err := json.Unmarshal(pub.payload, &res); err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Error != "no ack" {
		t.Errorf("result = %+v, want failure with writer error", res)
	}
}

func TestStartAndStop(t *testing.T) {
	b, m := newTestBridge(&mockWriter{})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	b.Stop()
	if m.IsConnected() {
		t.Error("Stop() should disconnect")
	}
	if pub, ok := m.last("home/boiler/status"); !ok || string(pub.payload) != statusOffline {
		t.Errorf("status on stop = %+v, want offline", pub)
	}

	m.connectErr = errors.New("refused")
	if err := b.Start(context.Background()); err == nil {
		t.Error("Start() should report a connect failure")
	}
}

func TestOptions(t *testing.T) {
	b := newBridge(config.MQTTConfig{Broker: "tcp://broker:1883", Username: "u", Password: "p"}, "boiler", &mockWriter{})
	opts := b.options()

	if opts.ClientID != config.DefaultClientID {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, config.DefaultClientID)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.WillEnabled || opts.WillTopic != "ecomax360/boiler/status" {
		t.Errorf("will = %v %q", opts.WillEnabled, opts.WillTopic)
	}
	if len(opts.Servers) != 1 || opts.Servers[0].Host != "broker:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
}
