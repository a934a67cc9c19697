// Package console renders packets to the terminal: blue for decoded text,
// magenta for hex, cyan for frame summaries, green for sends.
package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mgutz/ansi"
	"go.uber.org/atomic"

	"firestige.xyz/ttyscope/internal/inspect"
	"firestige.xyz/ttyscope/internal/sink"
)

var (
	colorText  = ansi.ColorCode("blue")
	colorHex   = ansi.ColorCode("magenta")
	colorFrame = ansi.ColorCode("cyan")
	colorSend  = ansi.ColorCode("green")
)

const timestampLayout = "2006-01-02 15:04:05.000"

// Sink prints rendered packets to a terminal writer.
type Sink struct {
	out       io.Writer
	color     bool
	timestamp atomic.Bool
	keywords  *inspect.Table
}

// Options configures a console sink.
type Options struct {
	Writer    io.Writer // defaults to os.Stdout
	Color     bool
	Timestamp bool
	Keywords  *inspect.Table // may be nil; highlighting disabled then
}

func New(opts Options) *Sink {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	s := &Sink{out: w, color: opts.Color, keywords: opts.Keywords}
	s.timestamp.Store(opts.Timestamp)
	return s
}

// SetTimestamp toggles the timestamp prefix on printed lines.
func (s *Sink) SetTimestamp(on bool) {
	s.timestamp.Store(on)
}

// Timestamp reports whether the timestamp prefix is on.
func (s *Sink) Timestamp() bool {
	return s.timestamp.Load()
}

func (s *Sink) prefix(t time.Time) string {
	if !s.timestamp.Load() {
		return ""
	}
	return "[" + t.Format(timestampLayout) + "] "
}

func (s *Sink) println(color, line string) {
	if s.color && color != "" {
		fmt.Fprintln(s.out, color+line+ansi.Reset)
		return
	}
	fmt.Fprintln(s.out, line)
}

// OnPacket implements sink.Sink.
func (s *Sink) OnPacket(e sink.Event) {
	switch {
	case e.Kind == sink.KindFrame:
		s.println(colorFrame, s.prefix(e.Time)+e.Text)
	case e.Hex:
		s.println(colorHex, fmt.Sprintf("%sRX(hex): %s", s.prefix(e.Time), e.Text))
	default:
		text := e.Text
		if s.color && s.keywords != nil {
			// Keywords take their own colors; the rest of the line
			// returns to the base RX color.
			text = s.keywords.Highlight(text, colorText)
		}
		s.println(colorText, fmt.Sprintf("%sRX(%s): %s", s.prefix(e.Time), e.Encoding, text))
	}
}

// OnSend implements sink.Sink.
func (s *Sink) OnSend(text string, t time.Time) {
	s.println(colorSend, fmt.Sprintf("%sTX: %s", s.prefix(t), text))
}

// Close implements sink.Sink. Stdout is not ours to close.
func (s *Sink) Close() error {
	return nil
}
