package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/muurk/ecomax360/internal/config"
	"github.com/muurk/ecomax360/internal/logging"
	"github.com/muurk/ecomax360/internal/poller"
)

const (
	networkTimeout = 10 * time.Second
	commandTimeout = 60 * time.Second

	statusOnline  = "online"
	statusOffline = "offline"
)

// Client is the part of paho's client the bridge uses
type Client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Writer carries out commands received over MQTT. *ecomax.Client
// implements it.
type Writer interface {
	SetPreset(ctx context.Context, preset string) error
	SetSetpoint(ctx context.Context, night bool, celsius float64) error
	SetTargetTemperature(ctx context.Context, celsius float64) (string, error)
}

// Result is published after every command
type Result struct {
	Command string `json:"command"`
	Value   string `json:"value"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Bridge publishes poller snapshots and accepts write commands.
//
// Topics, below <prefix>/<controller>:
//
//	status                  online/offline (retained, last will)
//	state/<PARAMETER>       snapshot JSON
//	set/preset              preset name, e.g. "eco"
//	set/setpoint/day        degrees Celsius
//	set/setpoint/night      degrees Celsius
//	set/target              degrees Celsius, to whichever setpoint is active
//	result                  Result JSON for each command
type Bridge struct {
	cfg    config.MQTTConfig
	base   string
	writer Writer
	client Client

	// AfterWrite runs after a successful command, e.g. to refresh state
	AfterWrite func(ctx context.Context)

	mu  sync.Mutex
	ctx context.Context
}

// New creates a bridge connected through paho. controller names the
// controller in topics.
func New(cfg config.MQTTConfig, controller string, writer Writer) *Bridge {
	b := newBridge(cfg, controller, writer)
	b.client = paho.NewClient(b.options())
	return b
}

func newBridge(cfg config.MQTTConfig, controller string, writer Writer) *Bridge {
	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = config.DefaultTopicPrefix
	}
	return &Bridge{
		cfg:    cfg,
		base:   prefix + "/" + controller,
		writer: writer,
		ctx:    context.Background(),
	}
}

func (b *Bridge) options() *paho.ClientOptions {
	clientID := b.cfg.ClientID
	if clientID == "" {
		clientID = config.DefaultClientID
	}

	opts := paho.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetClientID(clientID).
		SetConnectTimeout(networkTimeout).
		SetKeepAlive(networkTimeout * 3).
		SetMaxReconnectInterval(time.Minute).
		SetOrderMatters(false).
		SetWill(b.topic("status"), statusOffline, 1, true).
		SetWriteTimeout(networkTimeout).
		SetOnConnectHandler(func(c paho.Client) { b.onConnect(c) }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logging.Warn("MQTT connection lost", zap.String("broker", b.cfg.Broker), zap.Error(err))
		})
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	return opts
}

func (b *Bridge) topic(suffix string) string {
	return b.base + "/" + suffix
}

// Start connects to the broker. Commands run under ctx.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	logging.Info("Connecting to MQTT broker", zap.String("broker", b.cfg.Broker), zap.String("topic", b.base))
	if err := tokenWait(b.client.Connect(), "connect"); err != nil {
		return err
	}
	return nil
}

// Stop publishes the offline status and disconnects
func (b *Bridge) Stop() {
	if !b.client.IsConnected() {
		return
	}
	_ = tokenWait(b.client.Publish(b.topic("status"), 1, true, statusOffline), "publish status")
	b.client.Disconnect(uint(time.Second / time.Millisecond))
}

// onConnect runs after every (re)connection
func (b *Bridge) onConnect(c Client) {
	logging.Info("MQTT connected", zap.String("broker", b.cfg.Broker))

	if err := tokenWait(c.Publish(b.topic("status"), 1, true, statusOnline), "publish status"); err != nil {
		logging.Error("MQTT status publish failed", zap.Error(err))
	}
	if err := tokenWait(c.Subscribe(b.topic("set/#"), 1, b.handleCommand), "subscribe"); err != nil {
		logging.Error("MQTT subscribe failed", zap.Error(err))
	}
}

// Publish sends a snapshot to its state topic. It implements poller.Sink.
func (b *Bridge) Publish(s poller.Snapshot) {
	if !b.client.IsConnected() {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		logging.Error("Failed to encode snapshot", zap.String("parameter", s.Parameter), zap.Error(err))
		return
	}
	topic := b.topic("state/" + s.Parameter)
	if err := tokenWait(b.client.Publish(topic, b.cfg.QoS, b.cfg.Retain, data), "publish "+topic); err != nil {
		logging.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (b *Bridge) handleCommand(_ paho.Client, msg paho.Message) {
	command := strings.TrimPrefix(msg.Topic(), b.topic("set/"))
	value := strings.TrimSpace(string(msg.Payload()))

	b.mu.Lock()
	parent := b.ctx
	b.mu.Unlock()
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	logging.Info("MQTT command", zap.String("command", command), zap.String("value", value))

	err := b.execute(ctx, command, value)
	res := Result{Command: command, Value: value, OK: err == nil}
	if err != nil {
		res.Error = err.Error()
		logging.Warn("MQTT command failed", zap.String("command", command), zap.Error(err))
	} else if b.AfterWrite != nil {
		b.AfterWrite(ctx)
	}

	data, _ := json.Marshal(res)
	if err := tokenWait(b.client.Publish(b.topic("result"), b.cfg.QoS, false, data), "publish result"); err != nil {
		logging.Warn("MQTT result publish failed", zap.Error(err))
	}
	msg.Ack()
}

func (b *Bridge) execute(ctx context.Context, command, value string) error {
	switch command {
	case "preset":
		return b.writer.SetPreset(ctx, value)
	case "setpoint/day", "setpoint/night", "target":
		celsius, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", value)
		}
		if command == "target" {
			_, err = b.writer.SetTargetTemperature(ctx, celsius)
			return err
		}
		return b.writer.SetSetpoint(ctx, command == "setpoint/night", celsius)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func tokenWait(t paho.Token, tag string) error {
	if !t.WaitTimeout(networkTimeout) {
		return fmt.Errorf("mqtt %s: timeout", tag)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("mqtt %s: %w", tag, err)
	}
	return nil
}
