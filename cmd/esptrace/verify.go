package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/esptrace/internal/addr2line"
	"github.com/muurk/esptrace/internal/decoder"
	"github.com/muurk/esptrace/internal/project"
	"github.com/muurk/esptrace/internal/ui"
	"github.com/muurk/esptrace/internal/urls"
)

var verifyVerbose bool

var verifySetupCmd = &cobra.Command{
	Use:   "verify-setup",
	Short: "Check that exceptions can be decoded for this project",
	Long: `Check everything the exception decoder needs for this project:

  1. The build profile of the environment (via pio project metadata)
  2. The firmware ELF produced by the build
  3. The addr2line binary of the toolchain
  4. The build type (debug builds give the most accurate locations)

Use --verbose to see the raw prerequisite report.`,
	Example: `  esptrace verify-setup
  esptrace verify-setup -e d1_mini --verbose`,
	Args: cobra.NoArgs,
	RunE: runVerifySetup,
}

func init() {
	verifySetupCmd.Flags().BoolVarP(&verifyVerbose, "verbose", "v", false, "Show the prerequisite report")
	addDecoderFlags(verifySetupCmd)

	rootCmd.AddCommand(verifySetupCmd)
}

func runVerifySetup(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx, stop := signalContext()
	defer stop()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}

	params := []ui.Param{
		{Key: "Project", Value: s.dir},
		{Key: "Target", Value: s.target.Name},
	}
	if s.env != "" {
		params = append(params, ui.Param{Key: "Environment", Value: s.env})
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Setup Check",
		Command: "esptrace verify-setup",
		Params:  params,
		StepNames: []string{
			"Read build profile",
			"Find firmware",
			"Find addr2line",
			"Check build type",
		},
		Troubleshooting: []string{
			"Build the project once so the firmware and toolchain exist: pio run",
			"Make sure pio is on PATH, or pass --pio",
			"Override the files with --elf and --addr2line",
			"See " + urls.TroubleshootingGuide,
		},
		Verbose: verifyVerbose,
	})

	return runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
		return verifySetup(ctx, s, runner, onStep)
	})
}

// verifySetup runs the four checks. It stops at the first missing artifact,
// after recording the full prerequisite report for --verbose.
func verifySetup(ctx context.Context, s *session, runner *ui.Runner, onStep ui.StepCallback) ([]ui.Param, error) {
	firmware, tool := elfPath, addr2linePath
	buildType := ""

	onStep(1, "", ui.StepRunning, "")
	switch {
	case firmware != "" && tool != "":
		onStep(1, "", ui.StepSkipped, "--elf and --addr2line given")
	case s.metadataErr != nil:
		onStep(1, "", ui.StepFailed, "")
		return nil, s.metadataErr
	case s.metadata == nil:
		onStep(1, "", ui.StepFailed, "")
		return nil, &project.MetadataError{Dir: s.dir, Environment: s.env, Err: errors.New("no platformio.ini")}
	default:
		onStep(1, "", ui.StepComplete, s.metadata.Environment)
	}
	if s.metadata != nil {
		buildType = s.metadata.BuildType
		if firmware == "" {
			firmware = s.metadata.ProgPath
		}
		if tool == "" {
			tool, _ = project.Addr2linePath(s.metadata.CCPath)
		}
	}

	report := addr2line.ValidatePrerequisites(ctx, tool, firmware)
	runner.AddToolOutput("Prerequisites", addr2line.FormatPrerequisiteReport(report))
	toolCheck, fwCheck := report.Checks[0], report.Checks[1]

	onStep(2, "", ui.StepRunning, "")
	if !fwCheck.Available {
		onStep(2, "", ui.StepFailed, firmware)
		return nil, fwCheck.Error
	}
	onStep(2, "", ui.StepComplete, firmware)

	onStep(3, "", ui.StepRunning, "")
	if !toolCheck.Available {
		onStep(3, "", ui.StepFailed, tool)
		return nil, toolCheck.Error
	}
	onStep(3, "", ui.StepComplete, toolCheck.Version)

	onStep(4, "", ui.StepRunning, "")
	details := []ui.Param{
		{Key: "Firmware", Value: firmware},
		{Key: "addr2line", Value: tool},
	}
	switch buildType {
	case "":
		onStep(4, "", ui.StepSkipped, "unknown")
	case decoder.DebugBuildType:
		onStep(4, "", ui.StepComplete, buildType)
		details = append(details, ui.Param{Key: "Build type", Value: buildType})
	default:
		onStep(4, "", ui.StepComplete, fmt.Sprintf("%s %s build_type = debug gives exact locations", buildType, ui.WarningMarker))
		details = append(details,
			ui.Param{Key: "Build type", Value: buildType},
			ui.Param{Key: "Hint", Value: urls.BuildConfigurations},
		)
	}
	return details, nil
}
