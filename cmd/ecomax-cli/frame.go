package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/ecomax360/internal/params"
	"github.com/muurk/ecomax360/internal/payload"
	"github.com/muurk/ecomax360/internal/protocol"
)

func init() {
	rootCmd.AddCommand(frameCmd)
	frameCmd.AddCommand(frameEncodeCmd)
	frameCmd.AddCommand(frameWriteCmd)
	frameCmd.AddCommand(frameVerifyCmd)
	frameCmd.AddCommand(frameSplitCmd)
	frameCmd.AddCommand(frameInspectCmd)
}

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Offline tools for protocol frames",
	Long: `Build, split and check protocol frames without a controller.

Hex arguments may contain spaces or colons. Pass "-" to read hex from stdin.`,
}

// hexArg decodes an argument, reading stdin for "-"
func hexArg(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		arg = string(data)
	}
	return protocol.DecodeHex(arg)
}

var frameEncodeCmd = &cobra.Command{
	Use:   "encode <destination> <source> <function> [payload]",
	Short: "Encode a frame from hex fields",
	Example: `  # The thermostat read request
  ecomax-cli frame encode 6400 2000 40 647800`,
	Args: cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		data := ""
		if len(args) == 4 {
			data = args[3]
		}
		frame, err := protocol.EncodeHex(args[0], args[1], args[2], data)
		if err != nil {
			return err
		}
		return printFrameHex(cmd, frame)
	},
}

var frameWriteCmd = &cobra.Command{
	Use:   "write <register> <value>",
	Short: "Build a write command frame",
	Long: `Build the frame a write sends. The register is either a name from
'ecomax-cli params' (the value is then validated and encoded) or a 3-byte
hex selector (the value is then raw hex).`,
	Example: `  ecomax-cli frame write SET_PRESET 1
  ecomax-cli frame write SET_SETPOINT_DAY 21.5
  ecomax-cli frame write 011e01 01`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		register, value, err := writeArgs(args[0], args[1])
		if err != nil {
			return err
		}
		frame, err := protocol.BuildWriteFrame(params.WriteDestination, params.WriteSource, register, value)
		if err != nil {
			return err
		}
		return printFrameHex(cmd, frame)
	},
}

func writeArgs(register, value string) ([]byte, []byte, error) {
	if reg, err := params.LookupRegister(strings.ToUpper(register)); err == nil {
		var v any = value
		if reg.Kind == payload.KindUint8 {
			code, perr := params.PresetToCode(value)
			if perr == nil {
				v = int(code)
			}
		}
		encoded, err := reg.Validate(v)
		if err != nil {
			return nil, nil, err
		}
		return reg.Selector, encoded, nil
	}

	sel, err := protocol.DecodeHex(register)
	if err != nil {
		return nil, nil, fmt.Errorf("register is neither a known name nor hex: %w", err)
	}
	raw, err := protocol.DecodeHex(value)
	if err != nil {
		return nil, nil, err
	}
	return sel, raw, nil
}

func printFrameHex(cmd *cobra.Command, frame []byte) error {
	if outputFormat == formatJSON {
		f, err := protocol.ParseFrame(frame)
		if err != nil {
			return err
		}
		return newPrinter(cmd).PrintJSON(frameJSON(f))
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(frame))
	return nil
}

type frameSummary struct {
	Hex         string `json:"hex"`
	Valid       bool   `json:"valid"`
	Length      int    `json:"length"`
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
	Function    string `json:"function,omitempty"`
	Payload     string `json:"payload,omitempty"`
	Parameter   string `json:"parameter,omitempty"`
}

func frameJSON(f *protocol.Frame) frameSummary {
	return frameSummary{
		Hex:         hex.EncodeToString(f.Raw),
		Valid:       true,
		Length:      len(f.Raw),
		Source:      f.Source.String(),
		Destination: f.Destination.String(),
		Function:    protocol.FunctionName(f.Function),
		Payload:     hex.EncodeToString(f.Payload),
	}
}

func summarize(candidate []byte) frameSummary {
	f, err := protocol.ParseFrame(candidate)
	if err != nil {
		return frameSummary{Hex: hex.EncodeToString(candidate), Length: len(candidate)}
	}
	s := frameJSON(f)
	if p, ok := params.Identify(candidate); ok {
		s.Parameter = p.Name
	}
	return s
}

var frameVerifyCmd = &cobra.Command{
	Use:   "verify <hex>",
	Short: "Check a frame's delimiters, length and CRC",
	Example: `  ecomax-cli frame verify 68050064000100a9fa8e16`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := hexArg(cmd, args[0])
		if err != nil {
			return err
		}
		s := summarize(frame)
		if outputFormat == formatJSON {
			if err := newPrinter(cmd).PrintJSON(s); err != nil {
				return err
			}
		} else if s.Valid {
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %s -> %s %s, %d bytes payload\n", s.Source, s.Destination, s.Function, len(s.Payload)/2)
		}
		if !s.Valid {
			return fmt.Errorf("invalid frame (%d bytes)", len(frame))
		}
		return nil
	},
}

var frameSplitCmd = &cobra.Command{
	Use:   "split <hex>",
	Short: "Split a captured byte stream into frames",
	Long: `Cut a captured buffer into frame candidates and check each one.

Candidates run from a 0x68 byte to the next 0x16, so a 0x16 inside a payload
produces a rejected candidate.`,
	Example: `  ecomax-cli frame split 0068050064000100a9fa8e16ff
  cat capture.hex | ecomax-cli frame split -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := hexArg(cmd, args[0])
		if err != nil {
			return err
		}
		frames, rest := protocol.SplitStream(buf)

		summaries := make([]frameSummary, 0, len(frames))
		for _, f := range frames {
			summaries = append(summaries, summarize(f))
		}
		if outputFormat == formatJSON {
			return newPrinter(cmd).PrintJSON(map[string]any{
				"frames": summaries,
				"rest":   hex.EncodeToString(rest),
			})
		}

		out := cmd.OutOrStdout()
		for i, s := range summaries {
			status := "ok "
			if !s.Valid {
				status = "bad"
			}
			fmt.Fprintf(out, "%2d %s %4d bytes %s", i+1, status, s.Length, s.Hex)
			if s.Parameter != "" {
				fmt.Fprintf(out, "  (%s)", s.Parameter)
			}
			fmt.Fprintln(out)
		}
		if len(rest) > 0 {
			fmt.Fprintf(out, "unterminated tail: %x\n", rest)
		}
		return nil
	},
}

var frameInspectCmd = &cobra.Command{
	Use:   "inspect <hex>",
	Short: "Decode a frame against the known parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := hexArg(cmd, args[0])
		if err != nil {
			return err
		}
		if _, err := protocol.ParseFrame(frame); err != nil {
			return err
		}
		p, ok := params.Identify(frame)
		if !ok {
			return fmt.Errorf("frame matches no known parameter marker")
		}
		reading, err := payload.Decode(frame, p.Schema)
		if err != nil {
			return err
		}
		return printReading(cmd, p.Name, reading)
	},
}
