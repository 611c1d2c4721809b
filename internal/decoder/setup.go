package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/esptrace/internal/addr2line"
	"github.com/muurk/esptrace/internal/project"
	"github.com/muurk/esptrace/internal/urls"
)

// DebugBuildType is the build_type that keeps full debug information.
const DebugBuildType = "debug"

// MetadataSource provides the build metadata of a project environment.
// *project.Locator implements it.
type MetadataSource interface {
	Metadata(ctx context.Context, dir, env string) (*project.Metadata, error)
}

// SetupOptions describes the build profile a Filter decodes against.
type SetupOptions struct {
	// ProjectDir and Environment select the build profile. ProjectDir is
	// also the root stripped from resolved paths unless Config.ProjectRoot
	// is set.
	ProjectDir  string
	Environment string

	// Firmware and Addr2line override the paths found through Metadata.
	// When both are set, Metadata only supplies the build type and its
	// failure is ignored.
	Firmware  string
	Addr2line string

	Metadata MetadataSource

	Config Config

	// ResolverTimeout bounds each addr2line call. Zero means no timeout.
	ResolverTimeout time.Duration

	// NewResolver builds the Resolver for an addr2line binary.
	// Default: addr2line.NewResolver
	NewResolver func(path string) Resolver

	// Diag receives the startup notices and resolver failures.
	Diag   io.Writer
	Logger *zap.Logger
}

// Setup resolves the firmware and addr2line paths of the build profile and
// returns a Filter decoding against them. When either artifact cannot be
// found the returned Filter is disabled and the reason is written to Diag
// once. Setup never fails.
func Setup(ctx context.Context, opts SetupOptions) *Filter {
	diag := opts.Diag
	if diag == nil {
		diag = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	artifacts, err := ResolveArtifacts(ctx, opts)
	if artifacts != nil && artifacts.BuildType != "" && artifacts.BuildType != DebugBuildType {
		fmt.Fprintf(diag,
			"Please build project in debug configuration to get more details about an exception.\nSee %s\n\n",
			urls.BuildConfigurations)
	}
	if err != nil {
		fmt.Fprintf(diag, "%s: disabling, %v\n", Name, err)
		logger.Info("exception decoder disabled", zap.Error(err))
		return Disabled()
	}

	newResolver := opts.NewResolver
	if newResolver == nil {
		newResolver = func(path string) Resolver {
			return addr2line.NewResolver(addr2line.Config{
				Path:    path,
				Timeout: opts.ResolverTimeout,
			}, logger)
		}
	}

	cfg := opts.Config
	if cfg.ProjectRoot == "" && opts.ProjectDir != "" {
		if abs, err := filepath.Abs(opts.ProjectDir); err == nil {
			cfg.ProjectRoot = abs
		}
	}

	logger.Info("exception decoder enabled",
		zap.String("firmware", artifacts.Firmware),
		zap.String("addr2line", artifacts.Addr2line),
		zap.String("build_type", artifacts.BuildType),
	)

	return New(cfg, artifacts.Firmware, newResolver(artifacts.Addr2line), diag, logger)
}

// ResolveArtifacts merges the explicit overrides with the project metadata
// and checks that both files exist. The returned Artifacts carry the build
// type even when err is set.
func ResolveArtifacts(ctx context.Context, opts SetupOptions) (*project.Artifacts, error) {
	artifacts := &project.Artifacts{
		Firmware:  opts.Firmware,
		Addr2line: opts.Addr2line,
	}
	needPaths := artifacts.Firmware == "" || artifacts.Addr2line == ""

	if opts.Metadata == nil {
		if needPaths {
			return artifacts, errors.New("no project metadata source")
		}
		return artifacts, project.CheckArtifacts(artifacts)
	}

	md, err := opts.Metadata.Metadata(ctx, opts.ProjectDir, opts.Environment)
	if err != nil {
		if needPaths {
			return artifacts, err
		}
		return artifacts, project.CheckArtifacts(artifacts)
	}

	artifacts.BuildType = md.BuildType
	if artifacts.Firmware == "" {
		artifacts.Firmware = md.ProgPath
	}
	if artifacts.Addr2line == "" {
		artifacts.Addr2line, _ = project.Addr2linePath(md.CCPath)
	}
	return artifacts, project.CheckArtifacts(artifacts)
}

// Firmware returns the firmware image the Filter resolves against.
func (f *Filter) Firmware() string {
	return f.firmware
}
