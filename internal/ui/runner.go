package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig holds configuration for a multi-step command
type RunnerConfig struct {
	Title           string    // Command title (e.g., "Setup Check")
	Command         string    // Full command (e.g., "esptrace verify-setup")
	Params          []Param   // Parameters to display in header
	StepNames       []string  // Names for each step
	Troubleshooting []string  // Tips shown when the operation fails
	Verbose         bool      // Whether to show tool output
	Output          io.Writer // Output writer (default: os.Stdout)
	Width           int       // Render width (default: terminal width)
}

// Runner orchestrates the header, progress and result flow for a command
// made of checks or steps.
type Runner struct {
	config     RunnerConfig
	header     *Header
	progress   *Progress
	output     io.Writer
	toolOutput []*ToolOutput
	width      int
}

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	width := config.Width
	if width == 0 {
		width = GetTerminalWidth()
	}

	header := NewHeader(config.Title, config.Command, config.Params...)
	header.SetWidth(width)

	var progress *Progress
	if len(config.StepNames) > 0 {
		progress = NewProgress("", len(config.StepNames))
		progress.SetWidth(width)
		progress.SetStepNames(config.StepNames)
	}

	return &Runner{
		config:   config,
		header:   header,
		progress: progress,
		output:   config.Output,
		width:    width,
	}
}

// Operation is the work performed by a Runner. It reports progress through
// onStep and returns details for the success box.
type Operation func(ctx context.Context, onStep StepCallback) ([]Param, error)

// Run prints the header, executes the operation and prints its result.
func (r *Runner) Run(ctx context.Context, operation Operation) error {
	start := time.Now()

	fmt.Fprintln(r.output, r.header.Render())
	fmt.Fprintln(r.output)

	details, err := operation(ctx, r.stepCallback())
	duration := time.Since(start).Round(time.Millisecond)

	fmt.Fprintln(r.output)
	if err != nil {
		result := NewFailureResult(r.config.Title+" failed", err, r.config.Troubleshooting)
		result.SetWidth(r.width)
		fmt.Fprintln(r.output, result.Render())
	} else {
		details = append(details, Param{Key: "Duration", Value: duration.String()})
		result := NewSuccessResult(r.config.Title+" complete", details...)
		result.SetWidth(r.width)
		fmt.Fprintln(r.output, result.Render())
	}

	if r.config.Verbose {
		for _, o := range r.toolOutput {
			fmt.Fprintln(r.output)
			fmt.Fprintln(r.output, o.SetWidth(r.width).Render())
		}
	}
	return err
}

// AddToolOutput stores raw tool output for verbose display
func (r *Runner) AddToolOutput(title, content string) {
	r.toolOutput = append(r.toolOutput, NewToolOutput(title, content))
}

// stepCallback prints each step as it changes state
func (r *Runner) stepCallback() StepCallback {
	return func(stepNumber int, name string, status StepStatus, message string) {
		if r.progress == nil || stepNumber < 1 || stepNumber > len(r.progress.Steps) {
			return
		}

		if name != "" {
			r.progress.Steps[stepNumber-1].Name = name
		}
		r.progress.UpdateStep(stepNumber, status, message)

		line := r.progress.renderStepLine(r.progress.Steps[stepNumber-1])
		switch status {
		case StepComplete, StepFailed, StepSkipped:
			fmt.Fprintln(r.output, line)
		case StepRunning:
			// Overwritten when the step finishes
			fmt.Fprint(r.output, line+"\r")
		}
	}
}
