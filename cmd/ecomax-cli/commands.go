package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ecomax360/internal/ecomax"
	"github.com/muurk/ecomax360/internal/params"
	"github.com/muurk/ecomax360/internal/payload"
	"github.com/muurk/ecomax360/internal/poller"
	"github.com/muurk/ecomax360/internal/protocol"
	"github.com/muurk/ecomax360/internal/ui"
)

// Command flags
var (
	watchInterval time.Duration
	assumeYes     bool
	verifyWrite   bool
	verifyRetries int
)

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(paramsCmd)

	writeCmd.AddCommand(writePresetCmd)
	writeCmd.AddCommand(writeSetpointCmd)
	writeCmd.AddCommand(writeTargetCmd)
	writeCmd.AddCommand(writeRawCmd)
}

// commandContext bounds a command by --timeout and by Ctrl-C
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeoutFlag)
}

// withClient runs fn against a fresh client and closes it afterwards
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *ecomax.Client) error) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := commandContext(cmd)
	defer cancel()
	return fn(ctx, client)
}

func printReading(cmd *cobra.Command, name string, r payload.Reading) error {
	p := newPrinter(cmd)
	if outputFormat == formatJSON {
		return p.PrintJSON(map[string]any{"parameter": name, "reading": r})
	}
	p.Println(ui.RenderReading(name, r, p.Width()))
	return nil
}

// fail renders err as an error box in text mode and returns it so the
// exit code reflects the failure
func fail(cmd *cobra.Command, title string, err error) error {
	if outputFormat == formatText {
		newPrinter(cmd).PrintError(title, err)
	}
	return err
}

// readCmd reads one parameter
var readCmd = &cobra.Command{
	Use:   "read <parameter>",
	Short: "Read a controller parameter",
	Long: `Read a parameter from the controller and print its decoded values.

Parameters with a request frame (GET_THERMOSTAT) are asked for; broadcast
parameters (GET_DATAS) are listened for. Run 'ecomax-cli params' for the list.`,
	Example: `  # Read the thermostat
  ecomax-cli read GET_THERMOSTAT

  # Read boiler temperatures as JSON
  ecomax-cli read GET_DATAS --format json

  # Against a bridge not in the config file
  ecomax-cli read GET_THERMOSTAT --host 192.168.1.38 --port 8899`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	name := strings.ToUpper(args[0])
	if _, err := params.Lookup(name); err != nil {
		return err
	}

	return withClient(cmd, func(ctx context.Context, c *ecomax.Client) error {
		reading, err := c.Read(ctx, name)
		if err != nil {
			return fail(cmd, "Read "+name, err)
		}
		return printReading(cmd, name, reading)
	})
}

// listenCmd waits for a parameter's frame without sending anything
var listenCmd = &cobra.Command{
	Use:   "listen <parameter>",
	Short: "Listen for a parameter without sending a request",
	Long: `Wait for the controller to send a parameter's frame on its own.

Nothing is written to the bus. Works for any parameter, including those
that can also be requested.`,
	Example: `  ecomax-cli listen GET_DATAS`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToUpper(args[0])
		if _, err := params.Lookup(name); err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *ecomax.Client) error {
			reading, err := c.ListenBroadcast(ctx, name)
			if err != nil {
				return fail(cmd, "Listen "+name, err)
			}
			return printReading(cmd, name, reading)
		})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Change controller settings",
}

// announce prints what is about to be written, in text mode only
func announce(cmd *cobra.Command, c *ecomax.Client, title string, fields ...ui.Field) {
	if outputFormat == formatText {
		newPrinter(cmd).PrintHeader(title, c.String(), fields...)
	}
}

func printWritten(cmd *cobra.Command, title string, details map[string]string) error {
	p := newPrinter(cmd)
	if outputFormat == formatJSON {
		details["status"] = "ok"
		return p.PrintJSON(details)
	}
	p.PrintSuccess(title, details)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{writePresetCmd, writeSetpointCmd} {
		c.Flags().BoolVar(&verifyWrite, "verify", false, "Read the thermostat back and check the change was applied")
		c.Flags().IntVar(&verifyRetries, "retries", 3, "Number of verification retries")
	}
}

func verificationOptions() *ecomax.VerificationOptions {
	opts := ecomax.DefaultVerificationOptions()
	opts.MaxRetries = verifyRetries
	return opts
}

// printVerified reports a write checked with --verify
func printVerified(cmd *cobra.Command, title string, details map[string]string, result *ecomax.VerificationResult) error {
	if !result.Success {
		err := result.Error
		if err == nil {
			err = fmt.Errorf("verification failed")
		}
		if outputFormat == formatText {
			p := newPrinter(cmd)
			p.PrintError(title, err)
			for _, m := range result.Mismatches {
				p.Println("  - " + m)
			}
		}
		return fmt.Errorf("configuration verification failed after %d attempts: %w", result.Attempts, err)
	}
	details["verified"] = fmt.Sprintf("yes (%d attempt(s))", result.Attempts)
	return printWritten(cmd, title, details)
}

var writePresetCmd = &cobra.Command{
	Use:   "preset <name>",
	Short: "Switch the thermostat preset",
	Long: fmt.Sprintf(`Switch the thermostat to a preset.

Known presets: %s`, strings.Join(params.Presets(), ", ")),
	Example: `  ecomax-cli write preset eco
  ecomax-cli write preset Calendrier`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preset := args[0]
		if _, err := params.PresetToCode(preset); err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *ecomax.Client) error {
			details := map[string]string{"preset": preset}
			announce(cmd, c, "Set preset", ui.Field{Key: "Register", Value: params.SetPreset}, ui.Field{Key: "Preset", Value: preset})
			if !verifyWrite {
				if err := c.SetPreset(ctx, preset); err != nil {
					return fail(cmd, "Set preset", err)
				}
				return printWritten(cmd, "Preset changed", details)
			}
			result := c.SetPresetAndVerify(ctx, preset, verificationOptions())
			return printVerified(cmd, "Preset changed", details, result)
		})
	},
}

var writeSetpointCmd = &cobra.Command{
	Use:   "setpoint <day|night> <celsius>",
	Short: "Set the day or night target temperature",
	Example: `  ecomax-cli write setpoint day 21.5
  ecomax-cli write setpoint night 18`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var night bool
		switch strings.ToLower(args[0]) {
		case "day", "jour":
		case "night", "nuit":
			night = true
		default:
			return fmt.Errorf("setpoint must be day or night, got %q", args[0])
		}
		celsius, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid temperature: %w", err)
		}

		return withClient(cmd, func(ctx context.Context, c *ecomax.Client) error {
			details := map[string]string{
				"setpoint":    strings.ToLower(args[0]),
				"temperature": fmt.Sprintf("%.1f °C", celsius),
			}
			announce(cmd, c, "Set setpoint",
				ui.Field{Key: "Setpoint", Value: details["setpoint"]},
				ui.Field{Key: "Temperature", Value: details["temperature"]},
			)
			if !verifyWrite {
				if err := c.SetSetpoint(ctx, night, celsius); err != nil {
					return fail(cmd, "Set setpoint", err)
				}
				return printWritten(cmd, "Setpoint changed", details)
			}
			result := c.SetSetpointAndVerify(ctx, night, celsius, verificationOptions())
			return printVerified(cmd, "Setpoint changed", details, result)
		})
	},
}

var writeTargetCmd = &cobra.Command{
	Use:   "target <celsius>",
	Short: "Set the target temperature of the active setpoint",
	Long: `Read the thermostat and write the temperature to whichever setpoint
(day or night) is currently in effect.`,
	Example: `  ecomax-cli write target 20.5`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		celsius, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid temperature: %w", err)
		}
		return withClient(cmd, func(ctx context.Context, c *ecomax.Client) error {
			announce(cmd, c, "Set target temperature", ui.Field{Key: "Temperature", Value: fmt.Sprintf("%.1f °C", celsius)})
			register, err := c.SetTargetTemperature(ctx, celsius)
			if err != nil {
				return fail(cmd, "Set target temperature", err)
			}
			return printWritten(cmd, "Target temperature changed", map[string]string{
				"register":    register,
				"temperature": fmt.Sprintf("%.1f °C", celsius),
			})
		})
	},
}

var writeRawCmd = &cobra.Command{
	Use:   "raw <register-hex> <value-hex>",
	Short: "Write raw bytes to a register",
	Long: `Write already encoded bytes to a 3-byte register selector.

No range checks are applied. You will be asked to confirm unless --yes is set.`,
	Example: `  # Same as 'write preset comfort'
  ecomax-cli write raw 011e01 01

  # Day setpoint 21.0 °C as float32 little-endian
  ecomax-cli write raw 012001 0000a841 --yes`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		register, err := protocol.DecodeHex(args[0])
		if err != nil {
			return err
		}
		value, err := protocol.DecodeHex(args[1])
		if err != nil {
			return err
		}
		if _, err := protocol.BuildWritePayload(register, value); err != nil {
			return err
		}

		if !assumeYes && !ui.RawWriteConfirmation(os.Stdin, cmd.OutOrStdout(), args[0], args[1]) {
			return fmt.Errorf("write cancelled")
		}

		return withClient(cmd, func(ctx context.Context, c *ecomax.Client) error {
			announce(cmd, c, "Raw write", ui.Field{Key: "Register", Value: args[0]}, ui.Field{Key: "Value", Value: args[1]})
			if err := c.WriteRaw(ctx, register, value); err != nil {
				return fail(cmd, "Raw write", err)
			}
			return printWritten(cmd, "Register written", map[string]string{
				"register": args[0],
				"value":    args[1],
			})
		})
	},
}

func init() {
	writeRawCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
}

// watchCmd shows parameters live
var watchCmd = &cobra.Command{
	Use:   "watch [parameter...]",
	Short: "Watch parameters live",
	Long: `Re-read parameters on an interval and show the latest values.

Without arguments the parameters from the poll section of the config file
are watched. A failed read keeps the last value, marked stale.`,
	Example: `  ecomax-cli watch
  ecomax-cli watch GET_THERMOSTAT --interval 10s`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Refresh interval (default from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(args))
	for _, a := range args {
		name := strings.ToUpper(a)
		if _, err := params.Lookup(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		names = cfg.Poll.Parameters
	}

	interval := watchInterval
	if interval <= 0 {
		interval = cfg.Poll.Interval.D()
	}

	client, _, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	// The poller keeps the last good value of each parameter
	p := poller.New(client, interval, names)
	return ui.RunWatch(cmd.Context(), p.Refresh, names, interval)
}

// paramsCmd lists the known parameters and registers
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "List known parameters, registers and presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		type paramInfo struct {
			Name      string   `json:"name"`
			Broadcast bool     `json:"broadcast"`
			Marker    string   `json:"marker"`
			Length    int      `json:"expected_length,omitempty"`
			Fields    []string `json:"fields"`
		}
		type registerInfo struct {
			Name     string  `json:"name"`
			Selector string  `json:"selector"`
			Min      float64 `json:"min"`
			Max      float64 `json:"max"`
		}

		var ps []paramInfo
		for _, name := range params.Names() {
			p, _ := params.Lookup(name)
			info := paramInfo{Name: name, Broadcast: p.Broadcast(), Marker: p.Marker, Length: p.ExpectedLength}
			for _, f := range p.Schema.Fields {
				info.Fields = append(info.Fields, f.Key)
			}
			ps = append(ps, info)
		}
		var rs []registerInfo
		for _, name := range params.RegisterNames() {
			r, _ := params.LookupRegister(name)
			rs = append(rs, registerInfo{Name: name, Selector: fmt.Sprintf("%x", r.Selector), Min: r.Min, Max: r.Max})
		}

		pr := newPrinter(cmd)
		if outputFormat == formatJSON {
			return pr.PrintJSON(map[string]any{
				"parameters": ps,
				"registers":  rs,
				"presets":    params.Presets(),
			})
		}

		pr.Println("Parameters:")
		for _, p := range ps {
			kind := "request"
			if p.Broadcast {
				kind = "broadcast"
			}
			pr.Println(fmt.Sprintf("  %-16s %-9s %s", p.Name, kind, strings.Join(p.Fields, ", ")))
		}
		pr.Println("\nRegisters:")
		for _, r := range rs {
			pr.Println(fmt.Sprintf("  %-20s %s  [%g, %g]", r.Name, r.Selector, r.Min, r.Max))
		}
		pr.Println("\nPresets:")
		pr.Println("  " + strings.Join(params.Presets(), ", "))
		return nil
	},
}
