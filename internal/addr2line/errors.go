package addr2line

import "fmt"

// ExecutionError represents a failure while running addr2line.
type ExecutionError struct {
	// Path is the addr2line binary
	Path string
	// Args are the arguments it was invoked with
	Args []string
	// ExitCode is the process exit code (-1 if it did not start)
	ExitCode int
	// Stderr is the addr2line stderr output
	Stderr string
	// Underlying error if any
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to call %s (exit code %d): %v\nstderr: %s",
			e.Path, e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("failed to call %s (exit code %d)\nstderr: %s",
		e.Path, e.ExitCode, e.Stderr)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// TimeoutError represents an addr2line call that exceeded Config.Timeout.
type TimeoutError struct {
	Path    string
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Path, e.Timeout)
}

// PrerequisiteError represents a missing prerequisite (addr2line binary, firmware).
type PrerequisiteError struct {
	// Prerequisite is the name of the missing prerequisite
	Prerequisite string
	// Details provides additional context
	Details string
	// Underlying error
	Err error
}

func (e *PrerequisiteError) Error() string {
	msg := fmt.Sprintf("missing prerequisite: %s", e.Prerequisite)
	if e.Details != "" {
		msg += "\n" + e.Details
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\nError: %v", e.Err)
	}
	return msg
}

func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}
