// Package config loads and saves the ecoMAX360 tools' configuration.
//
// The file describes one or more controllers (TCP bridge or serial
// adapter), the polling schedule, the optional MQTT bridge and the HTTP
// server. YAML is the default format; a path ending in .toml is read and
// written as TOML instead.
//
// # Configuration File Location
//
// Unless a path is given explicitly, the file lives in:
//   - Linux: $XDG_CONFIG_HOME/ecomax360/config.yaml or $HOME/.config/ecomax360/config.yaml
//   - macOS: $HOME/.config/ecomax360/config.yaml
//   - Windows: %LOCALAPPDATA%\ecomax360\config.yaml
//
// # Example
//
//	version: 1
//	default: boiler
//	controllers:
//	  boiler:
//	    host: 192.168.1.38
//	    port: 8899
//	    receive_wait: 2s
//	poll:
//	  interval: 30s
//	  parameters: [GET_DATAS, GET_THERMOSTAT]
//	mqtt:
//	  broker: tcp://localhost:1883
//
// Durations are written as Go duration strings ("30s", "1m30s").
//
// # Security
//
// The MQTT password, when set, is stored in clear text. Save writes the
// file with 0600 permissions.
package config
