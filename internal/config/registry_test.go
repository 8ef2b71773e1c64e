package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/ecomax360/internal/params"
	"github.com/muurk/ecomax360/internal/transport"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "ecomax360") {
		t.Errorf("GetConfigDir() = %v, should contain 'ecomax360'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if want := filepath.Join(dir, "ecomax360"); got != want {
		t.Errorf("GetConfigDir() = %q, want %q", got, want)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

const sampleYAML = `version: 1
default: boiler
controllers:
  boiler:
    host: 192.168.1.38
    port: 8899
    receive_wait: 3s
    listen_wait: 20s
    pause: 250ms
    request_attempts: 7
    keep_alive: false
  attic:
    transport: serial
    device: /dev/ttyUSB0
    baud_rate: 9600
poll:
  interval: 1m
  parameters: [GET_DATAS]
mqtt:
  broker: tcp://localhost:1883
`

const sampleTOML = `version = 1
default = "boiler"

[controllers.boiler]
host = "192.168.1.38"
port = 8899
receive_wait = "3s"
listen_wait = "20s"
pause = "250ms"
request_attempts = 7
keep_alive = false

[controllers.attic]
transport = "serial"
device = "/dev/ttyUSB0"
baud_rate = 9600

[poll]
interval = "1m"
parameters = ["GET_DATAS"]

[mqtt]
broker = "tcp://localhost:1883"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func checkSample(t *testing.T, cfg *Config) {
	t.Helper()

	boiler, err := cfg.Controller("")
	if err != nil {
		t.Fatalf("Controller(\"\") error = %v", err)
	}
	if boiler.Host != "192.168.1.38" || boiler.Port != 8899 {
		t.Errorf("boiler = %s:%d", boiler.Host, boiler.Port)
	}
	if boiler.ReceiveWait.D() != 3*time.Second {
		t.Errorf("ReceiveWait = %v, want 3s", boiler.ReceiveWait.D())
	}
	if boiler.ListenWait.D() != 20*time.Second {
		t.Errorf("ListenWait = %v, want 20s", boiler.ListenWait.D())
	}
	if boiler.Pause.D() != 250*time.Millisecond {
		t.Errorf("Pause = %v, want 250ms", boiler.Pause.D())
	}
	if boiler.RequestAttempts != 7 {
		t.Errorf("RequestAttempts = %d, want 7", boiler.RequestAttempts)
	}
	if boiler.KeepsAlive() {
		t.Error("keep_alive: false should disable keep-alive")
	}

	attic, err := cfg.Controller("attic")
	if err != nil {
		t.Fatalf("Controller(attic) error = %v", err)
	}
	if attic.Transport != transport.KindSerial || attic.BaudRate != 9600 {
		t.Errorf("attic = %+v", attic)
	}
	if !attic.KeepsAlive() {
		t.Error("keep-alive should default to true")
	}

	if cfg.Poll.Interval.D() != time.Minute {
		t.Errorf("Poll.Interval = %v, want 1m", cfg.Poll.Interval.D())
	}
	if len(cfg.Poll.Parameters) != 1 || cfg.Poll.Parameters[0] != params.GetDatas {
		t.Errorf("Poll.Parameters = %v", cfg.Poll.Parameters)
	}

	// Defaults filled in for omitted values
	if cfg.MQTT.TopicPrefix != DefaultTopicPrefix || cfg.MQTT.ClientID != DefaultClientID {
		t.Errorf("MQTT defaults not applied: %+v", cfg.MQTT)
	}
	if cfg.Server == nil || cfg.Server.Listen != DefaultListenAddr {
		t.Errorf("Server = %+v, want listen %q", cfg.Server, DefaultListenAddr)
	}
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checkSample(t, cfg)
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.toml", sampleTOML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checkSample(t, cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"bad version", "c.yaml", "version: 2\ncontrollers: {}\n", "unsupported config version"},
		{"bad duration", "c.yaml", "version: 1\ncontrollers:\n  a:\n    host: h\n    pause: soon\n", "invalid duration"},
		{"bad yaml", "c.yaml", "version: [\n", "failed to parse"},
		{"bad toml", "c.toml", "version = \n", "failed to parse"},
		{"unknown parameter", "c.yaml", "version: 1\npoll:\n  parameters: [GET_NOTHING]\n", "poll"},
		{"missing default", "c.yaml", "version: 1\ndefault: x\n", "default controller"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sub", name)

			cfg := DefaultConfig()
			cfg.Controllers[DefaultControllerName].ReceiveWait = Duration(1500 * time.Millisecond)
			cfg.MQTT = &MQTTConfig{Broker: "tcp://broker:1883", QoS: 1, Retain: true}
			if err := cfg.Save(path); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat: %v", err)
			}
			if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
				t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Error("temporary file left behind")
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			ctrl := loaded.Controllers[DefaultControllerName]
			if ctrl == nil || ctrl.Host != "192.168.1.38" || ctrl.Port != transport.DefaultPort {
				t.Fatalf("controller after round trip = %+v", ctrl)
			}
			if ctrl.ReceiveWait.D() != 1500*time.Millisecond {
				t.Errorf("ReceiveWait = %v, want 1.5s", ctrl.ReceiveWait.D())
			}
			if loaded.MQTT.QoS != 1 || !loaded.MQTT.Retain {
				t.Errorf("MQTT after round trip = %+v", loaded.MQTT)
			}
			if loaded.Poll.Interval.D() != DefaultPollInterval {
				t.Errorf("Poll.Interval = %v", loaded.Poll.Interval.D())
			}
		})
	}
}

func TestLoadDefault_NoFile(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if cfg.Default != DefaultControllerName {
		t.Errorf("Default = %q, want %q", cfg.Default, DefaultControllerName)
	}
}

func TestLoadDefault_ReadsFile(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := GetConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(sampleYAML), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	checkSample(t, cfg)
}
