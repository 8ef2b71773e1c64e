package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/muurk/ecomax360/internal/params"
	"github.com/muurk/ecomax360/internal/transport"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Duration is a time.Duration written as text ("30s", "2m") in config files
type Duration time.Duration

// D returns the value as a time.Duration
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Config represents the entire configuration file
type Config struct {
	Version     int                    `yaml:"version" toml:"version"`
	Default     string                 `yaml:"default,omitempty" toml:"default,omitempty"` // Controller used when none is named
	Controllers map[string]*Controller `yaml:"controllers" toml:"controllers"`
	Poll        *PollConfig            `yaml:"poll,omitempty" toml:"poll,omitempty"`
	MQTT        *MQTTConfig            `yaml:"mqtt,omitempty" toml:"mqtt,omitempty"`
	Server      *ServerConfig          `yaml:"server,omitempty" toml:"server,omitempty"`
}

// Controller describes how to reach one ecoMAX360 controller
type Controller struct {
	Transport string `yaml:"transport,omitempty" toml:"transport,omitempty"` // "tcp" (default) or "serial"

	Host string `yaml:"host,omitempty" toml:"host,omitempty"`
	Port int    `yaml:"port,omitempty" toml:"port,omitempty"`

	Device   string `yaml:"device,omitempty" toml:"device,omitempty"` // Serial device, e.g. /dev/ttyUSB0
	BaudRate int    `yaml:"baud_rate,omitempty" toml:"baud_rate,omitempty"`
	Parity   string `yaml:"parity,omitempty" toml:"parity,omitempty"`
	StopBits int    `yaml:"stop_bits,omitempty" toml:"stop_bits,omitempty"`

	DialTimeout Duration `yaml:"dial_timeout,omitempty" toml:"dial_timeout,omitempty"`
	ReceiveWait Duration `yaml:"receive_wait,omitempty" toml:"receive_wait,omitempty"` // Per attempt
	ListenWait  Duration `yaml:"listen_wait,omitempty" toml:"listen_wait,omitempty"`   // Per receive while listening
	Pause       Duration `yaml:"pause,omitempty" toml:"pause,omitempty"`               // Between attempts

	RequestAttempts int `yaml:"request_attempts,omitempty" toml:"request_attempts,omitempty"`
	CommandAttempts int `yaml:"command_attempts,omitempty" toml:"command_attempts,omitempty"`
	ListenAttempts  int `yaml:"listen_attempts,omitempty" toml:"listen_attempts,omitempty"`

	Retries   int   `yaml:"retries,omitempty" toml:"retries,omitempty"`       // Whole-operation retries
	KeepAlive *bool `yaml:"keep_alive,omitempty" toml:"keep_alive,omitempty"` // Keep the session open between operations (default true)
}

// PollConfig configures the periodic reader
type PollConfig struct {
	Interval   Duration `yaml:"interval" toml:"interval"`
	Parameters []string `yaml:"parameters" toml:"parameters"`
}

// MQTTConfig configures the MQTT bridge. An empty broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker" toml:"broker"`
	ClientID    string `yaml:"client_id,omitempty" toml:"client_id,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty" toml:"topic_prefix,omitempty"`
	QoS         byte   `yaml:"qos,omitempty" toml:"qos,omitempty"`
	Retain      bool   `yaml:"retain,omitempty" toml:"retain,omitempty"`
	Username    string `yaml:"username,omitempty" toml:"username,omitempty"`
	Password    string `yaml:"password,omitempty" toml:"password,omitempty"`
}

// ServerConfig configures the HTTP/WebSocket server
type ServerConfig struct {
	Listen string `yaml:"listen" toml:"listen"`
}

// Defaults
const (
	DefaultControllerName = "boiler"
	DefaultPollInterval   = 30 * time.Second
	DefaultListenAddr     = ":8080"
	DefaultTopicPrefix    = "ecomax360"
	DefaultClientID       = "ecomax360"
)

// DefaultConfig returns a configuration with one example controller
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Default: DefaultControllerName,
		Controllers: map[string]*Controller{
			DefaultControllerName: {
				Transport: transport.KindTCP,
				Host:      "192.168.1.38",
				Port:      transport.DefaultPort,
			},
		},
		Poll: &PollConfig{
			Interval:   Duration(DefaultPollInterval),
			Parameters: params.Names(),
		},
		Server: &ServerConfig{Listen: DefaultListenAddr},
	}
}

// applyDefaults fills sections a file left out
func (c *Config) applyDefaults() {
	if c.Controllers == nil {
		c.Controllers = make(map[string]*Controller)
	}
	if c.Poll == nil {
		c.Poll = &PollConfig{}
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = Duration(DefaultPollInterval)
	}
	if len(c.Poll.Parameters) == 0 {
		c.Poll.Parameters = params.Names()
	}
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListenAddr
	}
	if c.MQTT != nil {
		if c.MQTT.TopicPrefix == "" {
			c.MQTT.TopicPrefix = DefaultTopicPrefix
		}
		if c.MQTT.ClientID == "" {
			c.MQTT.ClientID = DefaultClientID
		}
	}
}

// Validate checks the configuration for mistakes a controller would only
// reveal at runtime
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if c.Default != "" {
		if _, ok := c.Controllers[c.Default]; !ok {
			return fmt.Errorf("default controller %q is not defined", c.Default)
		}
	}

	names := make([]string, 0, len(c.Controllers))
	for name := range c.Controllers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := c.Controllers[name].Validate(); err != nil {
			return fmt.Errorf("controller %q: %w", name, err)
		}
	}

	if c.Poll != nil {
		for _, p := range c.Poll.Parameters {
			if _, err := params.Lookup(p); err != nil {
				return fmt.Errorf("poll: %w", err)
			}
		}
	}
	if c.MQTT != nil && c.MQTT.Broker != "" && c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

// Validate checks a single controller entry
func (ctrl *Controller) Validate() error {
	switch ctrl.Transport {
	case "", transport.KindTCP:
		if ctrl.Host == "" {
			return fmt.Errorf("host is required for tcp transport")
		}
		if ctrl.Port < 0 || ctrl.Port > 65535 {
			return fmt.Errorf("port %d out of range", ctrl.Port)
		}
	case transport.KindSerial:
		if ctrl.Device == "" {
			return fmt.Errorf("device is required for serial transport")
		}
	default:
		return fmt.Errorf("unknown transport %q", ctrl.Transport)
	}
	if ctrl.RequestAttempts < 0 || ctrl.CommandAttempts < 0 || ctrl.ListenAttempts < 0 || ctrl.Retries < 0 {
		return fmt.Errorf("attempt counts must not be negative")
	}
	return nil
}

// TransportConfig converts the entry into transport settings
func (ctrl *Controller) TransportConfig() transport.Config {
	return transport.Config{
		Kind: ctrl.Transport,
		TCP: transport.TCPConfig{
			Host:        ctrl.Host,
			Port:        ctrl.Port,
			DialTimeout: ctrl.DialTimeout.D(),
		},
		Serial: transport.SerialConfig{
			Device:   ctrl.Device,
			BaudRate: ctrl.BaudRate,
			Parity:   ctrl.Parity,
			StopBits: ctrl.StopBits,
		},
	}
}

// KeepsAlive reports whether the session stays open between operations
func (ctrl *Controller) KeepsAlive() bool {
	return ctrl.KeepAlive == nil || *ctrl.KeepAlive
}

// Controller returns the named controller, or the default one when name
// is empty. With a single controller defined, that one is the default.
func (c *Config) Controller(name string) (*Controller, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" && len(c.Controllers) == 1 {
		for _, ctrl := range c.Controllers {
			return ctrl, nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("no controller named and no default set")
	}
	ctrl, ok := c.Controllers[name]
	if !ok {
		return nil, fmt.Errorf("controller %q not found in config", name)
	}
	return ctrl, nil
}
