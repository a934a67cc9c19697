// Package console implements the interactive command loop: thin glue that
// parses typed lines and calls into the monitor. Lines that do not start
// with a known command are sent to the device as-is.
package console

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"firestige.xyz/ttyscope/internal/decode"
	"firestige.xyz/ttyscope/internal/inspect"
	"firestige.xyz/ttyscope/internal/monitor"
	capturesink "firestige.xyz/ttyscope/internal/sink/capture"
	consolesink "firestige.xyz/ttyscope/internal/sink/console"
)

// Session is the slice of the monitor the command loop drives.
// *monitor.Monitor satisfies it.
type Session interface {
	Send(data []byte, display string) error
	SetBaudRate(rate int) error
	SetPacketTimeout(d time.Duration) error
	PacketTimeout() time.Duration
	SetEncoding(name string) error
	Encoding() string
	SetHexDisplay(on bool)
	HexDisplay() bool
	SetModbus(on bool)
	Modbus() bool
	Keywords() *inspect.Table
	Stats() monitor.Stats
}

// Console dispatches interactive commands against a running session.
type Console struct {
	session Session
	display *consolesink.Sink
	capture *capturesink.Sink
	out     io.Writer
	history *history
	hexSend bool
}

// Options wires the command loop's collaborators.
type Options struct {
	Session Session
	Display *consolesink.Sink
	Capture *capturesink.Sink
	Out     io.Writer
	// HistoryPath holds typed commands across sessions. Empty disables
	// persistence.
	HistoryPath string
}

func New(opts Options) *Console {
	return &Console{
		session: opts.Session,
		display: opts.Display,
		capture: opts.Capture,
		out:     opts.Out,
		history: newHistory(opts.HistoryPath),
	}
}

// Run reads commands until quit or EOF. History is persisted on return.
func (c *Console) Run(input io.Reader) error {
	c.history.load()
	defer c.history.save()

	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.history.append(line)
		if c.Dispatch(line) {
			return nil
		}
	}
	return scanner.Err()
}

// Dispatch executes one command line. It returns true when the user asked
// to quit.
func (c *Console) Dispatch(line string) bool {
	cmd, rest := splitCommand(line)
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		c.printHelp()
	case "send":
		c.send(rest)
	case "hex":
		c.session.SetHexDisplay(!c.session.HexDisplay())
		c.printToggle("hex display", c.session.HexDisplay())
	case "hexsend":
		c.hexSend = !c.hexSend
		c.printToggle("hex send", c.hexSend)
	case "timestamp":
		if c.display != nil {
			c.display.SetTimestamp(!c.display.Timestamp())
			c.printToggle("timestamp", c.display.Timestamp())
		}
	case "modbus":
		c.session.SetModbus(!c.session.Modbus())
		c.printToggle("modbus inspector", c.session.Modbus())
	case "timeout":
		c.setTimeout(rest)
	case "baud":
		c.setBaud(rest)
	case "encoding":
		c.setEncoding(rest)
	case "encodings":
		fmt.Fprintln(c.out, strings.Join(decode.Names(), ", "))
	case "filter":
		c.filter(rest)
	case "log":
		c.enableLog(rest)
	case "nolog":
		c.disableLog()
	case "stats":
		c.printStats()
	default:
		// Anything else is data for the device.
		c.send(line)
	}
	return false
}

func splitCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	cmd := strings.ToLower(parts[0])
	rest := ""
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}
	return cmd, rest
}

func (c *Console) send(text string) {
	if text == "" {
		return
	}
	var data []byte
	display := text
	if c.hexSend {
		parsed, err := parseHex(text)
		if err != nil {
			fmt.Fprintf(c.out, "invalid hex: %v\n", err)
			return
		}
		data = parsed
		display = inspect.HexString(parsed)
	} else {
		data = []byte(text + "\n")
	}
	if err := c.session.Send(data, display); err != nil {
		fmt.Fprintf(c.out, "send failed: %v\n", err)
	}
}

// parseHex accepts byte pairs with or without spaces ("01 A0 FF", "01a0ff").
func parseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, " ", "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits")
	}
	return hex.DecodeString(s)
}

func (c *Console) setTimeout(arg string) {
	secs, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		fmt.Fprintf(c.out, "usage: timeout <seconds>\n")
		return
	}
	if err := c.session.SetPacketTimeout(time.Duration(secs * float64(time.Second))); err != nil {
		fmt.Fprintf(c.out, "timeout rejected: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "packet timeout set to %s\n", c.session.PacketTimeout())
}

func (c *Console) setBaud(arg string) {
	rate, err := strconv.Atoi(arg)
	if err != nil || rate <= 0 {
		fmt.Fprintf(c.out, "usage: baud <rate>\n")
		return
	}
	if err := c.session.SetBaudRate(rate); err != nil {
		fmt.Fprintf(c.out, "baud change failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "baud rate set to %d\n", rate)
}

func (c *Console) setEncoding(arg string) {
	if arg == "" {
		fmt.Fprintf(c.out, "current encoding: %s\n", c.session.Encoding())
		return
	}
	if err := c.session.SetEncoding(arg); err != nil {
		fmt.Fprintf(c.out, "encoding rejected: %v (supported: %s)\n", err, strings.Join(decode.Names(), ", "))
		return
	}
	fmt.Fprintf(c.out, "encoding set to %s\n", c.session.Encoding())
}

func (c *Console) filter(rest string) {
	action, arg := splitCommand(rest)
	table := c.session.Keywords()
	switch action {
	case "add":
		idx, err := table.Add(arg)
		if err != nil {
			fmt.Fprintf(c.out, "filter add failed: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "added %q (%s)\n", arg, inspect.ColorNames[idx])
	case "remove":
		if !table.Remove(arg) {
			fmt.Fprintf(c.out, "no such keyword: %q\n", arg)
			return
		}
		fmt.Fprintf(c.out, "removed %q\n", arg)
	case "clear":
		table.Clear()
		fmt.Fprintln(c.out, "filters cleared")
	case "list":
		entries := table.List()
		if len(entries) == 0 {
			fmt.Fprintln(c.out, "no filters")
			return
		}
		for _, e := range entries {
			fmt.Fprintf(c.out, "%s (%s)\n", e.Text, inspect.ColorNames[e.ColorIndex])
		}
	default:
		fmt.Fprintln(c.out, "usage: filter add|remove|clear|list")
	}
}

func (c *Console) enableLog(path string) {
	if c.capture == nil {
		return
	}
	if path == "" {
		path = capturesink.DefaultPath(".")
	}
	if err := c.capture.Enable(path); err != nil {
		fmt.Fprintf(c.out, "log failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "logging to %s\n", c.capture.Path())
}

func (c *Console) disableLog() {
	if c.capture == nil {
		return
	}
	c.capture.Disable()
	fmt.Fprintln(c.out, "logging stopped")
}

func (c *Console) printStats() {
	s := c.session.Stats()
	uptime := s.Uptime
	secs := uptime.Seconds()
	var rxRate, txRate float64
	if secs > 0 {
		rxRate = float64(s.BytesReceived) / secs
		txRate = float64(s.BytesSent) / secs
	}
	fmt.Fprintf(c.out, "uptime:    %s\n", uptime.Round(time.Second))
	fmt.Fprintf(c.out, "received:  %d bytes (%.1f B/s)\n", s.BytesReceived, rxRate)
	fmt.Fprintf(c.out, "sent:      %d bytes (%.1f B/s)\n", s.BytesSent, txRate)
	fmt.Fprintf(c.out, "packets:   %d\n", s.Packets)
	fmt.Fprintf(c.out, "dropped:   %d\n", s.RelayDropped)
	fmt.Fprintf(c.out, "errors:    %d\n", s.Errors)
	fmt.Fprintf(c.out, "encoding:  %s\n", c.session.Encoding())
}

func (c *Console) printToggle(name string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	fmt.Fprintf(c.out, "%s %s\n", name, state)
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `commands:
  send <text>          send text (newline appended); bare lines send too
  hexsend              toggle hex send mode (input parsed as hex byte pairs)
  hex                  toggle hex display of received packets
  timestamp            toggle timestamps on received packets
  timeout <seconds>    set the packet silence timeout
  baud <rate>          change the baud rate live
  encoding [name]      show or set the character encoding
  encodings            list supported encodings
  filter add <kw>      highlight a keyword
  filter remove <kw>   stop highlighting a keyword
  filter clear         remove all keywords
  filter list          list keywords
  log [file]           start logging the session to a file
  nolog                stop session logging
  modbus               toggle the frame inspector
  stats                show counters
  quit                 exit
`)
}
