package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/muurk/esptrace/internal/addr2line"
	"github.com/muurk/esptrace/internal/project"
	"github.com/muurk/esptrace/internal/ui"
)

// withArtifactFlags sets --elf and --addr2line for the duration of the test.
func withArtifactFlags(t *testing.T, firmware, tool string) {
	t.Helper()
	oldElf, oldTool := elfPath, addr2linePath
	elfPath, addr2linePath = firmware, tool
	t.Cleanup(func() {
		elfPath, addr2linePath = oldElf, oldTool
	})
}

func fakeArtifacts(t *testing.T) (firmware, tool string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	dir := t.TempDir()
	firmware = filepath.Join(dir, "firmware.elf")
	if err := os.WriteFile(firmware, []byte("\x7fELF\x01\x01"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool = filepath.Join(dir, "xtensa-lx106-elf-addr2line")
	script := "#!/bin/sh\necho 'GNU addr2line (GNU Binutils) 2.32'\n"
	if err := os.WriteFile(tool, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return firmware, tool
}

func runVerify(t *testing.T, s *session) (string, error) {
	t.Helper()
	var out bytes.Buffer
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:     "Setup Check",
		Command:   "esptrace verify-setup",
		StepNames: []string{"a", "b", "c", "d"},
		Verbose:   true,
		Output:    &out,
		Width:     100,
	})
	err := runner.Run(context.Background(), func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
		return verifySetup(ctx, s, runner, onStep)
	})
	return out.String(), err
}

func TestVerifySetup(t *testing.T) {
	firmware, tool := fakeArtifacts(t)
	withArtifactFlags(t, firmware, tool)

	out, err := runVerify(t, testSession(t, &project.Metadata{Environment: "d1_mini", BuildType: "release"}))
	if err != nil {
		t.Fatalf("verifySetup() error = %v", err)
	}
	for _, want := range []string{"Exception Decoder Prerequisites", "GNU addr2line", "release", "Exceptions will be decoded."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVerifySetup_MissingFirmware(t *testing.T) {
	_, tool := fakeArtifacts(t)
	withArtifactFlags(t, filepath.Join(t.TempDir(), "none.elf"), tool)

	out, err := runVerify(t, testSession(t, nil))
	var preErr *addr2line.PrerequisiteError
	if !errors.As(err, &preErr) {
		t.Fatalf("expected *PrerequisiteError, got %T: %v", err, err)
	}
	if preErr.Prerequisite != "firmware" {
		t.Errorf("Prerequisite = %q, want firmware", preErr.Prerequisite)
	}
	// Both checks are reported even though the run stops at the firmware.
	for _, want := range []string{"✗ Firmware ELF", "✓ addr2line", "The decoder will be disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
