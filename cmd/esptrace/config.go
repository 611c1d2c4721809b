package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/esptrace/internal/config"
	"github.com/muurk/esptrace/internal/target"
	"github.com/muurk/esptrace/internal/ui"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the esptrace configuration",
	Long: `Manage the user configuration file.

The file holds preferences (target, baud rate, decoder tuning) and what
esptrace remembers about projects and network boards. Its location can be
overridden with ` + config.ConfigPathEnvVar + `.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			ok := ui.Confirm(os.Stdin, os.Stderr, "Configuration exists", []string{
				"A configuration file already exists at " + path,
				"Remembered projects and boards will be lost",
			}, "overwrite")
			if !ok {
				return nil
			}
		}

		if _, err := config.CreateDefaultConfig(path); err != nil {
			return err
		}
		ui.NewPrinter(os.Stdout).PrintSuccess("Configuration written",
			ui.Param{Key: "Path", Value: path},
		)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		data, err := reg.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the supported chip targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		db, err := target.Load()
		if err != nil {
			return err
		}
		return ui.RenderOnce(os.Stdout, ui.RenderTable(
			[]string{"TARGET", "CODE WINDOW", "BAUD", "TOOLCHAIN"},
			targetRows(db),
		))
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite without asking")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(targetsCmd)
}

// targetRows renders the catalog as table rows, sorted by name.
func targetRows(db *target.DB) [][]string {
	names := db.Names()
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		t, _ := db.Get(name)
		rows = append(rows, []string{
			t.Name,
			t.CodeRange().String(),
			strconv.Itoa(t.DefaultBaud),
			t.ToolchainPrefix,
		})
	}
	return rows
}
