package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/esptrace/internal/config"
	"github.com/muurk/esptrace/internal/logging"
	"github.com/muurk/esptrace/internal/monitor"
	"github.com/muurk/esptrace/internal/server"
	"github.com/muurk/esptrace/internal/ui"
	"github.com/muurk/esptrace/internal/urls"
)

// Monitor command flags
var (
	monitorPort  string
	monitorBaud  int
	monitorRaw   bool
	monitorServe string
	monitorEOL   string
	monitorQuiet bool
	serveCert    string
	serveKey     string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Open the serial console and decode exceptions",
	Long: `Open the serial console of the board and decode exceptions as they arrive.

The port and baud rate come from --port/--baud, then monitor_port and
monitor_speed in platformio.ini, then the last port used for this project.
A console behind a TCP serial bridge can be opened as socket://host:port.

Everything the board prints is shown unchanged. When an exception or a stack
dump is recognized, the decoded locations are printed after it. If the
firmware or addr2line cannot be found the monitor still runs, without
decoding.

Keystrokes are sent to the board when stdin is a terminal. Press Ctrl+] to
quit.`,
	Example: `  # Use monitor_port/monitor_speed from platformio.ini
  esptrace monitor

  # Explicit port and baud rate
  esptrace monitor --port /dev/ttyUSB0 --baud 74880

  # Network console, mirrored to browsers on port 8266
  esptrace monitor --port socket://esp-link.local:23 --serve :8266

  # Decode against a specific firmware image
  esptrace monitor --elf .pio/build/d1_mini/firmware.elf`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVarP(&monitorPort, "port", "p", "", "Serial port or socket://host:port")
	monitorCmd.Flags().IntVarP(&monitorBaud, "baud", "b", 0, "Baud rate (default: monitor_speed, then "+strconv.Itoa(config.DefaultBaudRate)+")")
	monitorCmd.Flags().BoolVar(&monitorRaw, "raw", false, "Do not decode exceptions")
	monitorCmd.Flags().StringVar(&monitorServe, "serve", "", "Mirror the console over WebSocket on [host]:port")
	monitorCmd.Flags().StringVar(&serveCert, "serve-cert", "", "TLS certificate for --serve")
	monitorCmd.Flags().StringVar(&serveKey, "serve-key", "", "TLS private key for --serve")
	monitorCmd.Flags().StringVar(&monitorEOL, "eol", monitor.EOLCRLF, "Line ending sent for Enter (CRLF, CR, LF)")
	monitorCmd.Flags().BoolVarP(&monitorQuiet, "quiet", "q", false, "Do not print the session header")
	addDecoderFlags(monitorCmd)

	rootCmd.AddCommand(monitorCmd)
}

// monitorSettings are the resolved console parameters.
type monitorSettings struct {
	Port string
	Baud int
}

// resolveMonitorSettings applies flag > platformio.ini > remembered >
// preference > target default.
func resolveMonitorSettings(s *session, flagPort string, flagBaud int) (monitorSettings, error) {
	var ms monitorSettings

	ms.Port = flagPort
	if ms.Port == "" && s.metadata != nil {
		ms.Port = s.metadata.MonitorPort
	}
	if ms.Port == "" {
		if p := s.registry.GetProject(s.dir); p != nil {
			ms.Port = p.LastPort
		}
	}
	if ms.Port == "" {
		return ms, errors.New("no port given: use --port, or set monitor_port in platformio.ini")
	}

	ms.Baud = flagBaud
	if ms.Baud == 0 && s.metadata != nil {
		ms.Baud = s.metadata.MonitorSpeed
	}
	if ms.Baud == 0 {
		ms.Baud = s.registry.Preferences.BaudRate
	}
	if ms.Baud == 0 {
		ms.Baud = s.target.DefaultBaud
	}
	return ms, nil
}

// parseServeAddr accepts "port", ":port" or "host:port".
func parseServeAddr(addr string) (*server.Config, error) {
	if _, err := strconv.Atoi(addr); err == nil {
		addr = ":" + addr
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid --serve address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid --serve port %q", portStr)
	}
	return &server.Config{Host: host, Port: port}, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	eolMode := strings.ToUpper(monitorEOL)
	switch eolMode {
	case monitor.EOLCRLF, monitor.EOLCR, monitor.EOLLF:
	default:
		return fmt.Errorf("invalid --eol %q (use CRLF, CR or LF)", monitorEOL)
	}
	var serveConfig *server.Config
	if monitorServe != "" {
		var err error
		if serveConfig, err = parseServeAddr(monitorServe); err != nil {
			return err
		}
		serveConfig.CertPath, serveConfig.KeyPath = serveCert, serveKey
	}
	cmd.SilenceUsage = true

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := logging.Named("monitor")

	s, err := newSession(ctx)
	if err != nil {
		return err
	}

	settings, err := resolveMonitorSettings(s, monitorPort, monitorBaud)
	if err != nil {
		ui.NewPrinter(os.Stderr).PrintError("No console selected", err, []string{
			"List serial ports: esptrace ports",
			"Find network boards: esptrace discover",
			"See " + urls.ProjectConfig,
		})
		return err
	}

	var filter monitor.Filter
	decoding := "off (--raw)"
	if !monitorRaw {
		f := s.newFilter(ctx, os.Stderr)
		filter = f
		decoding = "off (firmware or addr2line not found)"
		if f.Enabled() {
			decoding = f.Firmware()
		}
	}

	if !monitorQuiet {
		header := ui.NewHeader("Serial Monitor", "esptrace monitor",
			ui.Param{Key: "Port", Value: settings.Port},
		)
		if !monitor.IsSocket(settings.Port) {
			header.Add("Baud", strconv.Itoa(settings.Baud))
		}
		if s.env != "" {
			header.Add("Environment", s.env)
		}
		header.Add("Target", s.target.Name)
		header.Add("Decoding", decoding)
		fmt.Fprintln(os.Stderr, header.Render())
		fmt.Fprintln(os.Stderr, ui.StepNoteStyle.Render("--- Quit: Ctrl+] ---"))
	}

	conn, err := monitor.Open(ctx, monitor.PortConfig{
		Port:     settings.Port,
		BaudRate: settings.Baud,
	}, logger)
	if err != nil {
		return err
	}
	logging.LogPortOpened(settings.Port, settings.Baud)

	s.registry.UpdateProjectLastUsed(s.dir, s.env, settings.Port)
	saveRegistry(s.registry)

	var out io.Writer = os.Stdout
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to set terminal raw mode: %w", err)
		}
		defer term.Restore(int(os.Stdin.Fd()), oldState)
		// Raw mode disables output post-processing
		out = &monitor.CRLFWriter{W: os.Stdout}
	}

	m := monitor.New(conn, filter, out, logger)
	m.SetPort(settings.Port)

	if serveConfig != nil {
		srv := server.New(serveConfig, logging.Named("server"))
		if err := srv.Start(); err != nil {
			conn.Close()
			return err
		}
		defer func() {
			shutdownCtx, cancel := shortTimeout()
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		m.SetMirror(srv)
		fmt.Fprintf(out, "--- Mirroring to %s ---\n", srv.URL())
		if serveConfig.CertPath != "" {
			fmt.Fprintf(out, "--- %s ---\n", srv.TLSInfo())
		}
	}

	if interactive {
		go func() {
			err := monitor.ForwardInput(ctx, os.Stdin, m, monitor.EOLBytes(eolMode))
			if err != nil && !errors.Is(err, monitor.ErrExitRequested) {
				logger.Warn("keyboard input stopped", zap.Error(err))
			}
			cancel()
		}()
	}

	err = m.Run(ctx)
	if interactive {
		fmt.Fprint(out, "\n")
	}
	if err != nil {
		logging.Error("monitor session failed", zap.String("port", settings.Port), zap.Error(err))
		return err
	}
	fmt.Fprintln(os.Stderr, ui.StepNoteStyle.Render("--- exit ---"))
	return nil
}
