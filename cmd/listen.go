package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/ttyscope/internal/config"
	"firestige.xyz/ttyscope/internal/console"
	"firestige.xyz/ttyscope/internal/decode"
	"firestige.xyz/ttyscope/internal/inspect"
	"firestige.xyz/ttyscope/internal/log"
	"firestige.xyz/ttyscope/internal/metrics"
	"firestige.xyz/ttyscope/internal/monitor"
	"firestige.xyz/ttyscope/internal/serial"
	"firestige.xyz/ttyscope/internal/sink"
	capturesink "firestige.xyz/ttyscope/internal/sink/capture"
	consolesink "firestige.xyz/ttyscope/internal/sink/console"
)

var (
	listenPort      string
	listenBaud      int
	listenEncoding  string
	listenTimeout   time.Duration
	listenHex       bool
	listenTimestamp bool
	listenModbus    bool
	listenRetries   int
	listenDelay     time.Duration
	listenNoColor   bool
	listenCapture   string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Monitor a serial port",
	Long: `
Open a serial port and print every packet the silence-based framer assembles.
The terminal stays interactive: typed lines are sent to the device, and
commands adjust the session live (type 'help' inside the session).

Examples:
  ttyscope listen -p /dev/ttyUSB0                  # 115200 8N1, UTF-8
  ttyscope listen -p /dev/ttyUSB0 -b 9600 -e GBK   # 9600 baud, GBK decode
  ttyscope listen -p COM3 --hex --timestamp        # hex display with timestamps
  ttyscope listen -p /dev/ttyUSB0 --capture s.log  # log RECV/SEND lines
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		applyListenFlags(cmd, cfg)

		if err := log.Init(cfg.Log); err != nil {
			exitWithError("failed to init logging", err)
		}
		if cfg.Port == "" {
			exitWithError("no port given (use -p or set ttyscope.port)", nil)
		}
		if !decode.Supported(cfg.Encoding) {
			log.GetLogger().Warnf("unsupported encoding %q, falling back to %s", cfg.Encoding, decode.DefaultEncoding)
			cfg.Encoding = decode.DefaultEncoding
		}

		if err := runListen(cfg); err != nil {
			exitWithError("monitor failed", err)
		}
	},
}

// applyListenFlags overlays explicitly-set flags on the file/env config.
func applyListenFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Port = listenPort
	}
	if cmd.Flags().Changed("baud") {
		cfg.BaudRate = listenBaud
	}
	if cmd.Flags().Changed("encoding") {
		cfg.Encoding = listenEncoding
	}
	if cmd.Flags().Changed("timeout") {
		cfg.PacketTimeout = listenTimeout
	}
	if cmd.Flags().Changed("hex") {
		cfg.HexDisplay = listenHex
	}
	if cmd.Flags().Changed("timestamp") {
		cfg.ShowTimestamp = listenTimestamp
	}
	if cmd.Flags().Changed("modbus") {
		cfg.Modbus = listenModbus
	}
	if cmd.Flags().Changed("retries") {
		cfg.ConnectRetries = listenRetries
	}
	if cmd.Flags().Changed("retry-delay") {
		cfg.RetryDelay = listenDelay
	}
	if cmd.Flags().Changed("no-color") {
		cfg.Color = !listenNoColor
	}
	if cmd.Flags().Changed("capture") {
		cfg.Capture.Enabled = true
		cfg.Capture.Path = listenCapture
	}
}

func runListen(cfg *config.Config) error {
	logger := log.GetLogger()

	keywords := inspect.NewTable()
	for _, k := range cfg.Keywords {
		if _, err := keywords.Add(k); err != nil {
			logger.WithError(err).Warnf("skipping keyword %q", k)
		}
	}

	display := consolesink.New(consolesink.Options{
		Writer:    os.Stdout,
		Color:     cfg.Color,
		Timestamp: cfg.ShowTimestamp,
		Keywords:  keywords,
	})
	capture := capturesink.New()
	if cfg.Capture.Enabled {
		path := cfg.Capture.Path
		if path == "" {
			path = capturesink.DefaultPath(".")
		}
		if err := capture.Enable(path); err != nil {
			return fmt.Errorf("session log: %w", err)
		}
		logger.WithField("path", capture.Path()).Info("session logging enabled")
	}

	m, err := monitor.New(monitor.Options{
		Serial: serial.Options{
			Port:         cfg.Port,
			BaudRate:     cfg.BaudRate,
			DataBits:     cfg.DataBits,
			Parity:       cfg.Parity,
			StopBits:     cfg.StopBits,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		Encoding:       cfg.Encoding,
		PacketTimeout:  cfg.PacketTimeout,
		RelayCapacity:  cfg.RelayCapacity,
		MaxPacketBytes: cfg.MaxPacketBytes,
		ConnectRetries: cfg.ConnectRetries,
		RetryDelay:     cfg.RetryDelay,
		HexDisplay:     cfg.HexDisplay,
		Modbus:         cfg.Modbus,
		Keywords:       keywords,
		Sink:           sink.Multi{display, capture},
	})
	if err != nil {
		return err
	}
	if err := m.Start(); err != nil {
		return err
	}
	defer m.Close()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
	}

	term := console.New(console.Options{
		Session:     m,
		Display:     display,
		Capture:     capture,
		Out:         os.Stdout,
		HistoryPath: historyPath(),
	})
	consoleDone := make(chan error, 1)
	go func() {
		consoleDone <- term.Run(os.Stdin)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-consoleDone:
		return err
	case sig := <-sigCh:
		logger.Infof("received %s, shutting down", sig)
		return nil
	case err := <-m.Fatal():
		return err
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ttyscope_history")
}

func init() {
	listenCmd.Flags().StringVarP(&listenPort, "port", "p", "", "serial port to open (e.g. /dev/ttyUSB0, COM3)")
	listenCmd.Flags().IntVarP(&listenBaud, "baud", "b", 115200, "baud rate")
	listenCmd.Flags().StringVarP(&listenEncoding, "encoding", "e", decode.DefaultEncoding, "character encoding for decoded text")
	listenCmd.Flags().DurationVarP(&listenTimeout, "timeout", "t", 10*time.Millisecond, "packet silence timeout")
	listenCmd.Flags().BoolVar(&listenHex, "hex", false, "display packets as hex")
	listenCmd.Flags().BoolVar(&listenTimestamp, "timestamp", false, "prefix packets with a timestamp")
	listenCmd.Flags().BoolVar(&listenModbus, "modbus", false, "summarize Modbus RTU request frames")
	listenCmd.Flags().IntVar(&listenRetries, "retries", 3, "connection attempts before giving up")
	listenCmd.Flags().DurationVar(&listenDelay, "retry-delay", time.Second, "delay between connection attempts")
	listenCmd.Flags().BoolVar(&listenNoColor, "no-color", false, "disable colored output")
	listenCmd.Flags().StringVar(&listenCapture, "capture", "", "log RECV/SEND lines to this file (empty flag value picks a timestamped name)")
	rootCmd.AddCommand(listenCmd)
}
