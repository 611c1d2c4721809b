package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/esptrace/internal/monitor"
	"github.com/muurk/esptrace/internal/ui"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports of this machine with their USB bridge, if known.

Boards with a CP210x or CH340 bridge are the usual ESP8266 development
boards.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		ports, err := monitor.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			ui.NewPrinter(os.Stderr).PrintWarning("No serial ports found")
			return nil
		}
		return ui.RenderOnce(os.Stdout, ui.RenderTable([]string{"PORT", "DESCRIPTION", "SERIAL"}, portRows(ports)))
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

// portRows renders ports as table rows.
func portRows(ports []monitor.PortInfo) [][]string {
	rows := make([][]string, 0, len(ports))
	for _, p := range ports {
		desc := p.Description()
		if desc == "" {
			desc = "-"
		}
		serial := p.SerialNumber
		if serial == "" {
			serial = "-"
		}
		rows = append(rows, []string{p.Name, desc, serial})
	}
	return rows
}
