//go:build ignore

package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/muurk/ecomax360/internal/capture"
	"github.com/muurk/ecomax360/internal/params"
	"github.com/muurk/ecomax360/internal/payload"
	"github.com/muurk/ecomax360/internal/protocol"
)

// Statistics tracks parsing results
type Statistics struct {
	Files      int
	Records    int
	Frames     int
	Valid      int
	Invalid    int
	Identified map[string]int
	Functions  map[byte]int
	Lengths    map[int]int
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze-capture <jsonl-file-or-dir> [--dump]")
		fmt.Println("Example: go run tools/analyze-capture.go captures/capture-20260301-120000.jsonl")
		os.Exit(1)
	}
	dump := len(os.Args) > 2 && os.Args[2] == "--dump"

	files, err := captureFiles(os.Args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	stats := &Statistics{
		Identified: make(map[string]int),
		Functions:  make(map[byte]int),
		Lengths:    make(map[int]int),
	}

	fmt.Printf("=== ecoMAX360 Capture Analyzer ===\n\n")
	for _, file := range files {
		analyzeFile(file, stats, dump)
	}
	printStatistics(stats)
}

func captureFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	return filepath.Glob(filepath.Join(path, "*.jsonl"))
}

func analyzeFile(file string, stats *Statistics, dump bool) {
	records, err := capture.ReadFile(file)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", file, err)
		if len(records) == 0 {
			return
		}
	}
	stats.Files++
	fmt.Printf("File: %s (%d records)\n", file, len(records))

	// Received chunks are one stream; frames may span reads.
	var carry []byte
	for _, rec := range records {
		stats.Records++
		data, err := rec.Bytes()
		if err != nil {
			fmt.Printf("  #%d: bad hex: %v\n", rec.Seq, err)
			continue
		}
		if rec.Direction == capture.DirectionSent {
			fmt.Printf("  #%d %s -> %x\n", rec.Seq, rec.Timestamp.Format("15:04:05.000"), data)
			continue
		}

		var frames [][]byte
		frames, carry = protocol.SplitStream(append(carry, data...))
		for _, f := range frames {
			analyzeFrame(rec.Seq, f, stats, dump)
		}
	}
	fmt.Println()
}

func analyzeFrame(seq int, frame []byte, stats *Statistics, dump bool) {
	stats.Frames++
	f, err := protocol.ParseFrame(frame)
	if err != nil {
		stats.Invalid++
		return
	}
	stats.Valid++
	stats.Functions[f.Function]++
	stats.Lengths[len(frame)]++

	p, ok := params.Identify(frame)
	if !ok {
		fmt.Printf("  #%d %s %d bytes\n", seq, f, len(frame))
		if dump {
			floatScan(frame)
			hexDump(frame)
		}
		return
	}

	stats.Identified[p.Name]++
	reading, err := payload.Decode(frame, p.Schema)
	if err != nil {
		fmt.Printf("  #%d %s: %v\n", seq, p.Name, err)
		return
	}
	parts := make([]string, 0, len(reading))
	for _, k := range reading.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, reading[k]))
	}
	fmt.Printf("  #%d %s %s\n", seq, p.Name, strings.Join(parts, " "))
}

// floatScan prints every offset holding a plausible temperature as a
// little-endian float32. Undocumented fields are usually found this way.
func floatScan(frame []byte) {
	fmt.Println("    Plausible float32 values (offset: value):")
	for i := protocol.OffsetPayload; i+4 <= len(frame)-3; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(frame[i : i+4]))
		if v > -40 && v < 120 && math.Abs(float64(v)) > 0.5 && v == float32(math.Round(float64(v)*10)/10) {
			fmt.Printf("      [%03d] %.1f\n", i, v)
		}
	}
}

func hexDump(data []byte) {
	for i := 0; i < len(data); i += 16 {
		fmt.Printf("    %04x  ", i)
		for j := 0; j < 16; j++ {
			if i+j < len(data) {
				fmt.Printf("%02x ", data[i+j])
			} else {
				fmt.Print("   ")
			}
			if j == 7 {
				fmt.Print(" ")
			}
		}
		fmt.Print(" |")
		for j := 0; j < 16 && i+j < len(data); j++ {
			b := data[i+j]
			if b >= 32 && b <= 126 {
				fmt.Printf("%c", b)
			} else {
				fmt.Print(".")
			}
		}
		fmt.Println("|")
	}
}

func printStatistics(stats *Statistics) {
	fmt.Println("=== Summary ===")
	fmt.Printf("Files:   %d\n", stats.Files)
	fmt.Printf("Records: %d\n", stats.Records)
	fmt.Printf("Frames:  %d (%d valid, %d rejected)\n", stats.Frames, stats.Valid, stats.Invalid)

	fmt.Println("\nBy function:")
	for code, n := range stats.Functions {
		fmt.Printf("  %-16s %d\n", protocol.FunctionName(code), n)
	}
	fmt.Println("\nBy length:")
	for l, n := range stats.Lengths {
		fmt.Printf("  %4d bytes  %d\n", l, n)
	}
	fmt.Println("\nIdentified:")
	for name, n := range stats.Identified {
		fmt.Printf("  %-16s %d\n", name, n)
	}
}
