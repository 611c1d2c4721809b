// Package ui provides terminal UI components for the esptrace CLI.
//
// This package uses Bubble Tea, Bubbles and Lipgloss to render the output of
// the non-streaming commands. The components follow a "run once and exit"
// pattern; the monitor stream itself is never styled.
//
// # Components
//
//   - Header: Command banner showing operation name and parameters
//   - Progress: Step list for multi-step checks
//   - TransferBar: Byte progress while decoding a capture file
//   - Result: Success/failure/warning boxes with details
//   - ToolOutput: Raw tool output box for verbose mode
//   - RenderTable: Bordered tables for port and device listings
//
// Runner orchestrates the header → progress → result flow:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Setup Check",
//	    Command:   "esptrace verify-setup",
//	    StepNames: []string{"Locate project", "Find firmware"},
//	})
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
//	    onStep(1, "", ui.StepComplete, "")
//	    ...
//	})
//
// # Logging Integration
//
// Logging is controlled via the ESPTRACE_LOG_LEVEL environment variable.
// When unset, zap logging is silent so the curated output stays clean.
package ui
