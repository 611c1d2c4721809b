package addr2line

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// PrerequisiteCheck represents the result of checking a single prerequisite.
type PrerequisiteCheck struct {
	// Name is the human-readable name of the prerequisite
	Name string
	// Available indicates whether the prerequisite is available
	Available bool
	// Optional checks do not affect PrerequisiteResult.AllAvailable
	Optional bool
	// Path is the resolved path (for file checks)
	Path string
	// Version is the detected version (if applicable)
	Version string
	// Message provides additional context (error message or success info)
	Message string
	// Error contains the underlying error if check failed
	Error error
}

// PrerequisiteResult contains the results of all prerequisite checks.
type PrerequisiteResult struct {
	// Checks contains individual check results
	Checks []PrerequisiteCheck
	// AllAvailable is true if all required prerequisites are available
	AllAvailable bool
}

// NewPrerequisiteResult returns an empty result.
func NewPrerequisiteResult() *PrerequisiteResult {
	return &PrerequisiteResult{
		Checks:       make([]PrerequisiteCheck, 0),
		AllAvailable: true,
	}
}

// Add appends a check and updates AllAvailable.
func (r *PrerequisiteResult) Add(check PrerequisiteCheck) {
	r.Checks = append(r.Checks, check)
	if !check.Available && !check.Optional {
		r.AllAvailable = false
	}
}

// ValidatePrerequisites checks the addr2line binary and the firmware image.
func ValidatePrerequisites(ctx context.Context, addr2linePath, firmware string) *PrerequisiteResult {
	result := NewPrerequisiteResult()
	result.Add(CheckAddr2line(ctx, addr2linePath))
	result.Add(CheckFirmware(firmware))
	return result
}

// CheckAddr2line verifies that path runs and identifies as GNU addr2line.
func CheckAddr2line(ctx context.Context, path string) PrerequisiteCheck {
	check := PrerequisiteCheck{
		Name: "addr2line",
		Path: path,
	}

	if err := ValidateAddr2linePath(ctx, path); err != nil {
		check.Error = err
		check.Message = "addr2line not usable\n" +
			"Install the toolchain by building the project once: pio run"
		return check
	}

	versionCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if output, err := exec.CommandContext(versionCtx, path, "--version").Output(); err == nil {
		lines := strings.Split(string(output), "\n")
		check.Version = strings.TrimSpace(lines[0])
	}

	check.Available = true
	check.Message = fmt.Sprintf("Found at %s", path)
	return check
}

// CheckFirmware verifies that path is an ELF file.
func CheckFirmware(path string) PrerequisiteCheck {
	check := PrerequisiteCheck{
		Name: "Firmware ELF",
		Path: path,
	}

	if err := ValidateFirmware(path); err != nil {
		check.Error = err
		check.Message = "Firmware image not found or not an ELF file\n" +
			"Rebuild the project: pio run"
		return check
	}

	check.Available = true
	check.Message = fmt.Sprintf("Found at %s", path)
	return check
}

// ValidateAddr2linePath checks if path is an executable GNU addr2line.
func ValidateAddr2linePath(ctx context.Context, path string) error {
	if path == "" {
		return &PrerequisiteError{
			Prerequisite: "addr2line",
			Details:      "addr2line path is empty",
		}
	}

	versionCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(versionCtx, path, "--version").Output()
	if err != nil {
		return &PrerequisiteError{
			Prerequisite: "addr2line",
			Details:      fmt.Sprintf("Failed to execute %s --version", path),
			Err:          err,
		}
	}

	if !strings.Contains(string(output), "addr2line") {
		return &PrerequisiteError{
			Prerequisite: "addr2line",
			Details:      fmt.Sprintf("%s does not appear to be GNU addr2line", path),
		}
	}

	return nil
}

// ValidateFirmware checks that path exists and starts with the ELF magic.
func ValidateFirmware(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &PrerequisiteError{
			Prerequisite: "firmware",
			Details:      fmt.Sprintf("Cannot open %s", path),
			Err:          err,
		}
	}
	defer f.Close()

	magic := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(f, magic); err != nil || !bytes.Equal(magic, elfMagic) {
		return &PrerequisiteError{
			Prerequisite: "firmware",
			Details:      fmt.Sprintf("%s is not an ELF file", path),
			Err:          err,
		}
	}
	return nil
}

// FormatPrerequisiteReport formats a PrerequisiteResult into a human-readable string.
func FormatPrerequisiteReport(result *PrerequisiteResult) string {
	var sb strings.Builder

	sb.WriteString("Exception Decoder Prerequisites:\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	for _, check := range result.Checks {
		if check.Available {
			sb.WriteString(fmt.Sprintf("✓ %s\n", check.Name))
			if check.Version != "" {
				sb.WriteString(fmt.Sprintf("  Version: %s\n", check.Version))
			}
			if check.Message != "" {
				sb.WriteString(fmt.Sprintf("  %s\n", check.Message))
			}
		} else {
			marker := "✗"
			if check.Optional {
				marker = "!"
			}
			sb.WriteString(fmt.Sprintf("%s %s\n", marker, check.Name))
			if check.Path != "" {
				sb.WriteString(fmt.Sprintf("  Path: %s\n", check.Path))
			}
			if check.Message != "" {
				sb.WriteString(fmt.Sprintf("  %s\n", check.Message))
			}
		}
		sb.WriteString("\n")
	}

	if result.AllAvailable {
		sb.WriteString("Exceptions will be decoded.\n")
	} else {
		sb.WriteString("The decoder will be disabled: raw output is shown unchanged.\n")
	}

	return sb.String()
}
