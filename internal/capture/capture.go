package capture

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ecomax360/internal/logging"
	"github.com/muurk/ecomax360/internal/protocol"
	"github.com/muurk/ecomax360/internal/transport"
)

// Traffic directions
const (
	DirectionSent     = "host->controller"
	DirectionReceived = "controller->host"
)

// Record is one captured chunk of traffic, stored as a JSON line
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Seq       int       `json:"seq"`
	Link      string    `json:"link"`
	Direction string    `json:"direction"`
	Length    int       `json:"length"`
	Hex       string    `json:"hex"`
	ASCII     string    `json:"ascii"`
	Frames    int       `json:"frames"`       // Candidates found by the splitter
	Valid     int       `json:"valid_frames"` // Candidates passing length and CRC checks
}

// Bytes decodes the record's hex data
func (r *Record) Bytes() ([]byte, error) {
	return hex.DecodeString(r.Hex)
}

// Recorder is a transport.Transport that appends all traffic of the
// transport it wraps to a JSONL file in dir. The file is created on the
// first record, named capture-<timestamp>.jsonl, and kept until Shutdown.
type Recorder struct {
	inner transport.Transport
	dir   string
	link  string

	mu   sync.Mutex
	file *os.File
	path string
	seq  int
	now  func() time.Time
}

var _ transport.Transport = (*Recorder)(nil)

// NewRecorder wraps inner. link names the connection in each record
// (usually the controller address).
func NewRecorder(inner transport.Transport, dir, link string) *Recorder {
	return &Recorder{
		inner: inner,
		dir:   dir,
		link:  link,
		now:   time.Now,
	}
}

// Path returns the capture file path, or "" before the first record
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

func (r *Recorder) Open(ctx context.Context) error {
	return r.inner.Open(ctx)
}

// Close closes the wrapped transport. The capture file stays open so
// that sessions reopened later append to the same file.
func (r *Recorder) Close() error {
	return r.inner.Close()
}

// Shutdown closes the wrapped transport and the capture file
func (r *Recorder) Shutdown() error {
	err := r.inner.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		r.file = nil
	}
	return err
}

func (r *Recorder) IsOpen() bool {
	return r.inner.IsOpen()
}

func (r *Recorder) Send(b []byte) error {
	if err := r.inner.Send(b); err != nil {
		return err
	}
	r.record(DirectionSent, b)
	return nil
}

func (r *Recorder) Receive(maxBytes int, wait time.Duration) ([]byte, error) {
	b, err := r.inner.Receive(maxBytes, wait)
	if len(b) > 0 {
		r.record(DirectionReceived, b)
	}
	return b, err
}

// record appends one line. Failures are logged and never reach the caller:
// a broken capture must not break the exchange being captured.
func (r *Recorder) record(direction string, b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			logging.Error("Failed to open capture file",
				zap.String("dir", r.dir),
				zap.Error(err),
			)
			return
		}
	}

	r.seq++
	rec := NewRecord(r.now(), r.seq, r.link, direction, b)

	data, err := json.Marshal(rec)
	if err != nil {
		logging.Error("Failed to marshal capture record", zap.Error(err))
		return
	}
	if _, err := r.file.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write capture record",
			zap.String("filename", r.path),
			zap.Error(err),
		)
		return
	}

	logging.Debug("Captured traffic",
		zap.String("filename", r.path),
		zap.Int("seq", rec.Seq),
		zap.String("direction", direction),
		zap.Int("bytes", len(b)),
	)
}

func (r *Recorder) openFile() error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(r.dir, fmt.Sprintf("capture-%s.jsonl", r.now().Format("20060102-150405")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	r.file = f
	r.path = path
	return nil
}

// NewRecord describes b. Frames and Valid count the frames the splitter
// finds in b on its own; frames spanning two reads are not counted.
func NewRecord(ts time.Time, seq int, link, direction string, b []byte) Record {
	candidates := protocol.SplitFrames(b)
	valid := 0
	for _, c := range candidates {
		if protocol.Verify(c) {
			valid++
		}
	}
	return Record{
		Timestamp: ts,
		Seq:       seq,
		Link:      link,
		Direction: direction,
		Length:    len(b),
		Hex:       hex.EncodeToString(b),
		ASCII:     toASCII(b),
		Frames:    len(candidates),
		Valid:     valid,
	}
}

// ReadFile loads all records of a capture file
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return records, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
