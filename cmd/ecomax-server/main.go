// Ecomax-server polls an ecoMAX360 controller and serves its readings.
//
// It keeps the last known value of each configured parameter, serves them
// as JSON over HTTP, streams updates to WebSocket clients, and optionally
// bridges readings and commands to an MQTT broker.
//
// Usage:
//
//	ecomax-server serve [flags]
//
// See 'ecomax-server serve --help' for available options.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/ecomax360/internal/capture"
	"github.com/muurk/ecomax360/internal/config"
	"github.com/muurk/ecomax360/internal/ecomax"
	"github.com/muurk/ecomax360/internal/logging"
	"github.com/muurk/ecomax360/internal/mqtt"
	"github.com/muurk/ecomax360/internal/params"
	"github.com/muurk/ecomax360/internal/poller"
	"github.com/muurk/ecomax360/internal/server"
	"github.com/muurk/ecomax360/internal/transport"
	"github.com/muurk/ecomax360/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ecomax-server",
	Short: "ecoMAX360 Polling Server",
	Long: `A standalone server that polls an ecoMAX360 heating controller.

Readings are served over HTTP as JSON, streamed to WebSocket clients, and
optionally published to an MQTT broker. Preset and setpoint changes are
accepted over HTTP and MQTT.

For one-off reads and writes, use the separate 'ecomax-cli' utility.`,
	Version:      version.Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command flags
var (
	configPath     string
	controllerName string
	listenAddr     string
	certPath       string
	keyPath        string
	logLevel       string
	interval       time.Duration
	noMQTT         bool
	captureDir     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the controller and serve readings",
	Long: `Poll the controller and serve its readings.

The controller, poll interval, parameters, listen address and MQTT broker
come from the configuration file; flags override them. TLS is enabled when
both --cert and --key are given.

To capture controller traffic for protocol analysis, use --capture-dir.`,
	Example: `  # Serve with the default config file
  ecomax-server serve

  # Listen on another port, poll every 10 seconds
  ecomax-server serve --listen :9000 --interval 10s --log-level debug

  # Serve over TLS
  ecomax-server serve --cert fullchain.pem --key privkey.pem

  # Record traffic, no MQTT
  ecomax-server serve --capture-dir ./captures --no-mqtt`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&configPath, "config", "", "Config file (default: ecomax360/config.yaml in the user config dir)")
	f.StringVarP(&controllerName, "controller", "c", "", "Controller name from the config file")
	f.StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config)")
	f.StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	f.StringVar(&keyPath, "key", "", "Path to TLS private key file")
	f.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.DurationVar(&interval, "interval", 0, "Poll interval (overrides config)")
	f.BoolVar(&noMQTT, "no-mqtt", false, "Disable the MQTT bridge even if configured")
	f.StringVar(&captureDir, "capture-dir", "", "Directory to write controller traffic captures (disabled if not specified)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadDefault()
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	if (certPath == "") != (keyPath == "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctrl, err := cfg.Controller(controllerName)
	if err != nil {
		return err
	}
	name := controllerName
	if name == "" {
		name = cfg.Default
	}
	if name == "" {
		name = config.DefaultControllerName
	}

	client, err := newClient(ctrl)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	pollInterval := cfg.Poll.Interval.D()
	if interval > 0 {
		pollInterval = interval
	}
	p := poller.New(client, pollInterval, cfg.Poll.Parameters)

	// A write changes the thermostat; read it back right away
	refreshThermostat := func(ctx context.Context) {
		if slices.Contains(p.Parameters, params.GetThermostat) {
			p.Refresh(ctx, params.GetThermostat)
		}
	}

	listen := cfg.Server.Listen
	if listenAddr != "" {
		listen = listenAddr
	}
	srv, err := server.New(&server.Config{Listen: listen, CertPath: certPath, KeyPath: keyPath}, p, client)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	srv.AfterWrite = refreshThermostat
	p.AddSink(srv)

	ctx := cmd.Context()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.MQTT != nil && cfg.MQTT.Broker != "" && !noMQTT {
		bridge := mqtt.New(*cfg.MQTT, name, client)
		bridge.AfterWrite = refreshThermostat
		if err := bridge.Start(ctx); err != nil {
			// paho keeps reconnecting in the background
			logging.Warn("MQTT broker not reachable yet", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
		}
		defer bridge.Stop()
		p.AddSink(bridge)
	}

	logging.Info("Starting ecomax-server",
		zap.String("version", version.Version),
		zap.String("controller", name),
		zap.String("link", client.String()),
		zap.String("listen", listen),
	)

	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return p.Run(ctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newClient(ctrl *config.Controller) (*ecomax.Client, error) {
	if captureDir == "" {
		return ecomax.NewClientFromConfig(ctrl)
	}
	if err := ctrl.Validate(); err != nil {
		return nil, err
	}
	t, err := transport.New(ctrl.TransportConfig())
	if err != nil {
		return nil, err
	}
	link := ctrl.Device
	if ctrl.Transport != transport.KindSerial {
		link = ctrl.Host
	}
	client := ecomax.NewClient(capture.NewRecorder(t, captureDir, link))
	client.ApplyConfig(ctrl)
	return client, nil
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ecomax-server %s (commit: %s)\n", version.Version, version.Commit)
	},
}
