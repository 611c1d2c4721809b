// Esptrace is a serial monitor for ESP8266 boards that decodes exceptions
// and stack dumps as they arrive.
//
// When the firmware crashes, the Arduino core prints the exception cause,
// the register file and a raw stack dump. esptrace recognizes those blocks in
// the console stream and appends the function and source line of every code
// address, using the toolchain's addr2line against the project's firmware.elf.
//
// Usage:
//
//	esptrace monitor [flags]
//
// See 'esptrace --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/esptrace/internal/logging"
	"github.com/muurk/esptrace/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	projectDir  string
	environment string
	targetName  string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "esptrace",
	Short: "ESP8266 serial monitor with exception decoding",
	Long: `A serial monitor for ESP8266 boards that decodes exceptions and stack dumps.

Crash output from the Arduino core is annotated in place: the exception cause
is spelled out and every code address in the register dump and the stack dump
is followed by its function and source location.

Firmware and toolchain are found through the PlatformIO project in the
current directory. Use 'esptrace verify-setup' to check what will be used.`,
	Version: version.Version,
	Example: `  # Monitor the default environment of the project in this directory
  esptrace monitor

  # Monitor a board behind a TCP serial bridge
  esptrace monitor --port socket://192.168.4.16:23

  # Decode a saved log
  esptrace decode crash.log

  # Check firmware and toolchain
  esptrace verify-setup`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(logLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&projectDir, "project-dir", "d", ".", "PlatformIO project directory")
	rootCmd.PersistentFlags().StringVarP(&environment, "environment", "e", "", "Build environment (default: project default)")
	rootCmd.PersistentFlags().StringVar(&targetName, "target", "", "Target chip (esp8266, esp8285)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

// initLogging applies --log-level, falling back to the environment. The
// logger stays silent when neither is set.
func initLogging(level string) error {
	if level == "" {
		return logging.InitializeFromEnv()
	}
	return logging.Initialize(level)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "esptrace %s (commit: %s, %s)\n", version.Version, version.Commit, version.Platform())
	},
}
