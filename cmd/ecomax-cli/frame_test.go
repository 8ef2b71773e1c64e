package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestFrameEncode(t *testing.T) {
	out, err := runCLI(t, "frame", "encode", "6400", "2000", "40", "647800", "--format", "text")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "6808002000640040647800c05d16" {
		t.Errorf("encode = %s", got)
	}
}

func TestFrameWrite(t *testing.T) {
	want := "6817000100640029555345522d303030003430393500011e01016a6e16"

	tests := []struct {
		name     string
		register string
		value    string
	}{
		{"preset name", "SET_PRESET", "comfort"},
		{"preset code", "set_preset", "1"},
		{"raw selector", "011e01", "01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, "frame", "write", tt.register, tt.value, "--format", "text")
			if err != nil {
				t.Fatalf("write error = %v", err)
			}
			if got := strings.TrimSpace(out); got != want {
				t.Errorf("write frame = %s, want %s", got, want)
			}
		})
	}

	if _, err := runCLI(t, "frame", "write", "SET_SETPOINT_DAY", "99", "--format", "text"); err == nil {
		t.Error("out of range setpoint should fail")
	}
}

func TestFrameVerify(t *testing.T) {
	if _, err := runCLI(t, "frame", "verify", "68050064000100a9fa8e16", "--format", "text"); err != nil {
		t.Errorf("valid frame rejected: %v", err)
	}
	if _, err := runCLI(t, "frame", "verify", "68050064000100a9fa8f16", "--format", "text"); err == nil {
		t.Error("bad CRC accepted")
	}
}

func TestFrameSplitJSON(t *testing.T) {
	out, err := runCLI(t, "frame", "split", "00 68050064000100a9fa8e16 ff 6801", "--format", "json")
	if err != nil {
		t.Fatalf("split error = %v", err)
	}

	var got struct {
		Frames []frameSummary `json:"frames"`
		Rest   string         `json:"rest"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(got.Frames) != 1 || !got.Frames[0].Valid || got.Frames[0].Function != "write-ack" {
		t.Errorf("frames = %+v", got.Frames)
	}
	if got.Rest != "6801" {
		t.Errorf("rest = %q, want 6801", got.Rest)
	}
}

func TestFrameSplitStdin(t *testing.T) {
	rootCmd.SetIn(strings.NewReader("68050064000100a9fa8e16\n"))
	defer rootCmd.SetIn(nil)

	out, err := runCLI(t, "frame", "split", "-", "--format", "text")
	if err != nil {
		t.Fatalf("split error = %v", err)
	}
	if !strings.Contains(out, "ok") || !strings.Contains(out, "11 bytes") {
		t.Errorf("split output = %q", out)
	}
}
