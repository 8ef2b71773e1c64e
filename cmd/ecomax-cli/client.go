package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ecomax360/internal/capture"
	"github.com/muurk/ecomax360/internal/config"
	"github.com/muurk/ecomax360/internal/ecomax"
	"github.com/muurk/ecomax360/internal/transport"
	"github.com/muurk/ecomax360/internal/ui"
)

// Output formats
const (
	formatText = "text"
	formatJSON = "json"
)

// Global flags
var (
	configPath     string
	controllerName string
	hostFlag       string
	portFlag       int
	deviceFlag     string
	logLevel       string
	outputFormat   string
	captureDir     string
	timeoutFlag    time.Duration
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: ecomax360/config.yaml in the user config dir)")
	pf.StringVarP(&controllerName, "controller", "c", "", "Controller name from the config file")
	pf.StringVar(&hostFlag, "host", "", "Controller bridge host (overrides config)")
	pf.IntVar(&portFlag, "port", 0, "Controller bridge TCP port (overrides config)")
	pf.StringVar(&deviceFlag, "device", "", "Serial device, e.g. /dev/ttyUSB0 (overrides config)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from ECOMAX_LOG_LEVEL")
	pf.StringVar(&outputFormat, "format", formatText, "Output format (text, json)")
	pf.StringVar(&captureDir, "capture-dir", "", "Record all controller traffic to JSONL files in this directory")
	pf.DurationVar(&timeoutFlag, "timeout", 2*time.Minute, "Overall timeout for one command")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadDefault()
}

// resolveController picks the controller entry and applies --host, --port
// and --device. With --host or --device and no config entry, a bare entry
// is built from the flags alone.
func resolveController() (string, *config.Controller, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", nil, err
	}

	name := controllerName
	ctrl, err := cfg.Controller(name)
	if err != nil {
		if hostFlag == "" && deviceFlag == "" {
			return "", nil, err
		}
		ctrl = &config.Controller{}
	}
	if name == "" {
		name = cfg.Default
	}

	c := *ctrl
	switch {
	case deviceFlag != "":
		c.Transport = transport.KindSerial
		c.Device = deviceFlag
	case hostFlag != "":
		c.Transport = transport.KindTCP
		c.Host = hostFlag
	}
	if portFlag != 0 {
		c.Port = portFlag
	}
	if err := c.Validate(); err != nil {
		return "", nil, fmt.Errorf("controller %q: %w", name, err)
	}
	return name, &c, nil
}

// newClient connects nothing yet; the first operation opens the session.
func newClient() (*ecomax.Client, *config.Controller, error) {
	_, ctrl, err := resolveController()
	if err != nil {
		return nil, nil, err
	}

	t, err := transport.New(ctrl.TransportConfig())
	if err != nil {
		return nil, nil, err
	}
	if captureDir != "" {
		t = capture.NewRecorder(t, captureDir, describe(ctrl))
	}

	client := ecomax.NewClient(t)
	client.ApplyConfig(ctrl)
	return client, ctrl, nil
}

func describe(ctrl *config.Controller) string {
	if ctrl.Transport == transport.KindSerial {
		return ctrl.Device
	}
	port := ctrl.Port
	if port == 0 {
		port = transport.DefaultPort
	}
	return fmt.Sprintf("%s:%d", ctrl.Host, port)
}

func newPrinter(cmd *cobra.Command) *ui.Printer {
	return ui.NewPrinter(cmd.OutOrStdout())
}
