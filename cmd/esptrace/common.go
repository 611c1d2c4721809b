package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/esptrace/internal/config"
	"github.com/muurk/esptrace/internal/decoder"
	"github.com/muurk/esptrace/internal/logging"
	"github.com/muurk/esptrace/internal/project"
	"github.com/muurk/esptrace/internal/target"
)

// Decoder flags shared by monitor, decode and resolve
var (
	elfPath       string
	addr2linePath string
	pioPath       string
)

// session is the resolved context of one command: user config, target and
// the build profile of the project.
type session struct {
	registry *config.Registry
	target   *target.Target
	dir      string // Absolute project directory
	env      string // Requested environment, empty for the project default

	metadata    *project.Metadata
	metadataErr error
}

// loadRegistry returns the user configuration, or defaults when it cannot
// be read.
func loadRegistry() *config.Registry {
	reg, err := config.LoadRegistry()
	if err != nil {
		logging.Warn("Using default configuration", zap.Error(err))
		return config.NewRegistry()
	}
	return reg
}

// newSession resolves target and build profile. A project without
// platformio.ini is not an error here; callers decide whether they need the
// metadata.
func newSession(ctx context.Context) (*session, error) {
	reg := loadRegistry()

	name := targetName
	if name == "" {
		name = reg.Preferences.Target
	}
	tgt, err := target.Lookup(name)
	if err != nil {
		return nil, err
	}

	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("invalid project directory %s: %w", projectDir, err)
	}

	s := &session{
		registry: reg,
		target:   tgt,
		dir:      dir,
		env:      chooseEnvironment(dir, environment, reg.Preferences.Environment),
	}

	if elfPath == "" || addr2linePath == "" {
		locator := project.NewLocator(project.Config{
			PIOPath:          pioPath,
			ToolchainPackage: tgt.ToolchainPackage,
			ToolchainPrefix:  tgt.ToolchainPrefix,
			Timeout:          project.DefaultConfig().Timeout,
		}, logging.Named("project"))
		s.metadata, s.metadataErr = locator.Metadata(ctx, dir, s.env)
	} else if cfg, err := project.LoadProjectConfig(dir); err == nil {
		// Explicit artifacts; platformio.ini still supplies monitor options
		env := s.env
		if env == "" {
			env = cfg.DefaultEnvironment()
		}
		s.metadata = &project.Metadata{
			Dir:          dir,
			Environment:  env,
			BuildType:    cfg.BuildType(env),
			MonitorSpeed: cfg.MonitorSpeed(env),
			MonitorPort:  cfg.MonitorPort(env),
		}
	}

	if s.metadata != nil {
		s.env = s.metadata.Environment
	}
	return s, nil
}

// chooseEnvironment picks the flag value, then the preferred environment
// when the project defines it. Empty means the project default.
func chooseEnvironment(dir, flag, preferred string) string {
	if flag != "" {
		return flag
	}
	if preferred == "" {
		return ""
	}
	cfg, err := project.LoadProjectConfig(dir)
	if err != nil || !cfg.HasEnvironment(preferred) {
		return ""
	}
	return preferred
}

// Metadata implements decoder.MetadataSource with the already resolved
// build profile.
func (s *session) Metadata(ctx context.Context, dir, env string) (*project.Metadata, error) {
	if s.metadataErr != nil {
		return nil, s.metadataErr
	}
	if s.metadata == nil {
		return nil, &project.MetadataError{Dir: s.dir, Environment: s.env, Err: errors.New("project metadata not loaded")}
	}
	return s.metadata, nil
}

// decoderConfig returns the decoder settings for the target, tuned by the
// user preferences.
func (s *session) decoderConfig() decoder.Config {
	cfg := decoder.DefaultConfig()
	cfg.Code = s.target.CodeRange()
	cfg.ProjectRoot = s.dir
	s.registry.Preferences.Decoder.Apply(&cfg)
	return cfg
}

// setupOptions builds the decoder setup for this session.
func (s *session) setupOptions(diag io.Writer) decoder.SetupOptions {
	return decoder.SetupOptions{
		ProjectDir:      s.dir,
		Environment:     s.env,
		Firmware:        elfPath,
		Addr2line:       addr2linePath,
		Metadata:        s,
		Config:          s.decoderConfig(),
		ResolverTimeout: s.registry.Preferences.Decoder.ResolverTimeoutDuration(),
		Diag:            diag,
		Logger:          logging.Named("decoder"),
	}
}

// newFilter returns the exception decoder, disabled when the firmware or
// addr2line cannot be found.
func (s *session) newFilter(ctx context.Context, diag io.Writer) *decoder.Filter {
	return decoder.Setup(ctx, s.setupOptions(diag))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// saveRegistry persists the registry, logging instead of failing.
func saveRegistry(reg *config.Registry) {
	if err := reg.Save(); err != nil {
		logging.Warn("Failed to save configuration", zap.Error(err))
	}
}

// shortTimeout returns a context for quick cleanup work.
func shortTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// addDecoderFlags registers the artifact override flags.
func addDecoderFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&elfPath, "elf", "", "Firmware ELF (default: from the build environment)")
	flags.StringVar(&addr2linePath, "addr2line", "", "addr2line binary (default: from the toolchain)")
	flags.StringVar(&pioPath, "pio", "pio", "PlatformIO CLI used for build metadata (empty disables the query)")
}
