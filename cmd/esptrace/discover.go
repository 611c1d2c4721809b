package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/esptrace/internal/config"
	"github.com/muurk/esptrace/internal/discovery"
	"github.com/muurk/esptrace/internal/logging"
	"github.com/muurk/esptrace/internal/ui"
)

var (
	discoverTimeout  time.Duration
	discoverConsole  int
	discoverNickname string
)

var discoverCmd = &cobra.Command{
	Use:   "discover [name]",
	Short: "Find ESP8266 boards on the local network",
	Long: `Find ESP8266 boards advertising Arduino OTA over mDNS.

Found boards are remembered with their last address. With a name, discover
waits for that board only and prints its console address, ready for
esptrace monitor --port. The console column assumes a TCP serial bridge
such as esp-link on --console-port.`,
	Example: `  # List boards
  esptrace discover

  # Find one board and open its console
  esptrace monitor --port $(esptrace discover esp8266-1a2b3c)

  # Remember a nickname for a board
  esptrace discover esp8266-1a2b3c --nickname kitchen`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVarP(&discoverTimeout, "timeout", "t", 0, "Scan time (default: preference discover_timeout)")
	discoverCmd.Flags().IntVar(&discoverConsole, "console-port", discovery.DefaultConsolePort, "TCP port of the console bridge")
	discoverCmd.Flags().StringVar(&discoverNickname, "nickname", "", "Nickname to remember for the named board")

	rootCmd.AddCommand(discoverCmd)
}

// scanTimeout picks the flag, then the preference in seconds, then the
// scanner default.
func scanTimeout(flag time.Duration, prefs *config.Preferences) time.Duration {
	if flag > 0 {
		return flag
	}
	if prefs != nil && prefs.DiscoverTimeout > 0 {
		return time.Duration(prefs.DiscoverTimeout) * time.Second
	}
	return discovery.DefaultScanTimeout
}

// boardRows renders the devices as table rows, showing nicknames from reg.
func boardRows(devices []*discovery.Device, reg *config.Registry, consolePort int) [][]string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		name := d.Name
		if b := reg.GetBoard(d.Hostname); b != nil && b.Nickname != "" {
			name = fmt.Sprintf("%s (%s)", name, b.Nickname)
		}
		board := d.Board
		if board == "" {
			board = "-"
		}
		rows = append(rows, []string{name, d.IP, board, d.SocketURL(consolePort)})
	}
	return rows
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if discoverNickname != "" && len(args) == 0 {
		return fmt.Errorf("--nickname needs a board name")
	}
	cmd.SilenceUsage = true

	ctx, stop := signalContext()
	defer stop()

	reg := loadRegistry()
	timeout := scanTimeout(discoverTimeout, reg.Preferences)
	logger := logging.Named("discovery")

	if len(args) == 1 {
		scanner := discovery.NewScanner(logger)
		scanner.Timeout = timeout

		device, err := scanner.WaitForDevice(ctx, args[0])
		if err != nil {
			ui.NewPrinter(os.Stderr).PrintError("Board not found", err, []string{
				"Check that the board is powered and on the same network",
				"Increase the scan time with --timeout",
				"List all boards: esptrace discover",
			})
			return err
		}
		reg.UpdateBoardLastSeen(device.Hostname, device.IP, device.Board)
		if discoverNickname != "" {
			reg.SetBoardNickname(device.Hostname, discoverNickname)
		}
		saveRegistry(reg)

		fmt.Println(device.SocketURL(discoverConsole))
		return nil
	}

	fmt.Fprintln(os.Stderr, ui.StepNoteStyle.Render(fmt.Sprintf("Scanning for %s...", timeout)))
	devices, err := discovery.DiscoverDevices(ctx, timeout, logger)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		ui.NewPrinter(os.Stderr).PrintWarning("No boards found",
			ui.Param{Key: "Service", Value: discovery.ServiceType},
			ui.Param{Key: "Scan time", Value: timeout.String()},
		)
		return nil
	}

	for _, d := range devices {
		reg.UpdateBoardLastSeen(d.Hostname, d.IP, d.Board)
	}
	saveRegistry(reg)

	return ui.RenderOnce(os.Stdout, ui.RenderTable(
		[]string{"NAME", "IP", "BOARD", "CONSOLE"},
		boardRows(devices, reg, discoverConsole),
	))
}
