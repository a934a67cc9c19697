// Package capture appends the session's RECV/SEND lines to a plain text
// file, one line per packet, flushed as written. It can be enabled and
// disabled while the monitor is running.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"firestige.xyz/ttyscope/internal/sink"
)

const lineLayout = "2006-01-02 15:04:05.000"

// Sink is an append-only session log. The zero value is a disabled sink;
// call Enable to start writing.
type Sink struct {
	mu   sync.Mutex
	file *os.File
	path string
}

func New() *Sink {
	return &Sink{}
}

// DefaultPath returns a timestamped log filename in dir.
func DefaultPath(dir string) string {
	name := fmt.Sprintf("ttyscope_%s.log", time.Now().Format("20060102_150405"))
	return filepath.Join(dir, name)
}

// Enable opens path for appending and starts recording. Enabling while
// already recording switches to the new file.
func (s *Sink) Enable(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("capture: open %s: %w", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.file.Close()
	}
	s.file = f
	s.path = path
	return nil
}

// Disable stops recording and closes the file.
func (s *Sink) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}

// Enabled reports whether the sink is currently recording.
func (s *Sink) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file != nil
}

// Path returns the active log file path, or "" when disabled.
func (s *Sink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *Sink) writeLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}
	// Unbuffered writes: each line reaches the file before the next
	// event, so a crash loses at most the line being written.
	fmt.Fprintln(s.file, line)
}

// OnPacket implements sink.Sink. Frame summaries are console-only.
func (s *Sink) OnPacket(e sink.Event) {
	if e.Kind == sink.KindFrame {
		return
	}
	enc := e.Encoding
	if e.Hex {
		enc = "hex"
	}
	s.writeLine(fmt.Sprintf("%s - RECV(%s) - %s", e.Time.Format(lineLayout), enc, e.Text))
}

// OnSend implements sink.Sink.
func (s *Sink) OnSend(text string, t time.Time) {
	s.writeLine(fmt.Sprintf("%s - SEND - %s", t.Format(lineLayout), text))
}

// Close implements sink.Sink; safe to call more than once.
func (s *Sink) Close() error {
	s.Disable()
	return nil
}
