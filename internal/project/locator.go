package project

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	compilerSuffix  = "-gcc"
	addr2lineSuffix = "-addr2line"

	// ProgramName is the PROGNAME the ESP8266 builder assigns.
	ProgramName = "firmware.elf"
)

// Config holds the configuration for artifact lookup.
type Config struct {
	// PIOPath is the PlatformIO CLI used for metadata queries.
	// Empty disables the query and uses the conventional layout only.
	// Default: "pio" (searches PATH)
	PIOPath string

	// CoreDir is the PlatformIO core directory holding toolchain packages.
	// Default: $PLATFORMIO_CORE_DIR or ~/.platformio
	CoreDir string

	// ToolchainPackage is the package directory name of the toolchain.
	// Default: "toolchain-xtensa"
	ToolchainPackage string

	// ToolchainPrefix is the target triplet prefix of the tools.
	// Default: "xtensa-lx106-elf"
	ToolchainPrefix string

	// Timeout bounds the metadata query.
	// Default: 60 seconds
	Timeout time.Duration
}

// DefaultConfig returns a Config for ESP8266 projects.
func DefaultConfig() Config {
	return Config{
		PIOPath:          "pio",
		ToolchainPackage: "toolchain-xtensa",
		ToolchainPrefix:  "xtensa-lx106-elf",
		Timeout:          60 * time.Second,
	}
}

// Metadata describes one build environment of a project.
type Metadata struct {
	Dir         string
	Environment string
	// ProgPath is the compiled firmware ELF.
	ProgPath string
	// CCPath is the C compiler of the toolchain.
	CCPath    string
	BuildType string
	// MonitorSpeed and MonitorPort come from platformio.ini (zero when unset).
	MonitorSpeed int
	MonitorPort  string
}

// Artifacts are the files needed to decode exceptions.
type Artifacts struct {
	Firmware  string
	Addr2line string
	BuildType string
}

// Locator resolves project metadata and artifacts.
type Locator struct {
	config Config
	logger *zap.Logger
}

// NewLocator creates a Locator with the given configuration.
func NewLocator(config Config, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{
		config: config,
		logger: logger,
	}
}

// Addr2linePath derives the addr2line path from a compiler path by replacing
// its "-gcc" suffix. ok is false when ccPath is not a gcc driver.
func Addr2linePath(ccPath string) (string, bool) {
	if !strings.Contains(ccPath, compilerSuffix) {
		return "", false
	}
	return strings.Replace(ccPath, compilerSuffix, addr2lineSuffix, 1), true
}

// Metadata returns the build metadata of env in dir. An empty env selects the
// project's default environment.
func (l *Locator) Metadata(ctx context.Context, dir, env string) (*Metadata, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, &MetadataError{Dir: dir, Environment: env, Err: err}
	}

	cfg, err := LoadProjectConfig(dir)
	if err != nil {
		return nil, &MetadataError{Dir: dir, Environment: env, Err: err}
	}
	if env == "" {
		env = cfg.DefaultEnvironment()
		if env == "" {
			return nil, &MetadataError{Dir: dir, Err: errors.New("no environments defined")}
		}
	}
	if !cfg.HasEnvironment(env) {
		return nil, &MetadataError{
			Dir:         dir,
			Environment: env,
			Err:         fmt.Errorf("unknown environment (available: %s)", strings.Join(cfg.Environments(), ", ")),
		}
	}

	md := &Metadata{
		Dir:          dir,
		Environment:  env,
		BuildType:    cfg.BuildType(env),
		MonitorSpeed: cfg.MonitorSpeed(env),
		MonitorPort:  cfg.MonitorPort(env),
	}

	if l.config.PIOPath != "" {
		progPath, ccPath, err := l.queryPIO(ctx, dir, env)
		if err == nil {
			md.ProgPath, md.CCPath = progPath, ccPath
		} else {
			l.logger.Debug("pio metadata query failed, using conventional layout",
				zap.String("dir", dir),
				zap.String("env", env),
				zap.Error(err),
			)
		}
	}

	if md.ProgPath == "" {
		buildDir := cfg.BuildDir()
		if !filepath.IsAbs(buildDir) {
			buildDir = filepath.Join(dir, buildDir)
		}
		md.ProgPath = filepath.Join(buildDir, env, ProgramName)
	}
	if md.CCPath == "" {
		md.CCPath = l.defaultCompilerPath()
	}

	l.logger.Debug("resolved project metadata",
		zap.String("dir", md.Dir),
		zap.String("env", md.Environment),
		zap.String("prog_path", md.ProgPath),
		zap.String("cc_path", md.CCPath),
		zap.String("build_type", md.BuildType),
	)
	return md, nil
}

// CheckArtifacts verifies that the firmware and addr2line files exist.
func CheckArtifacts(a *Artifacts) error {
	if !isFile(a.Firmware) {
		return &ArtifactError{
			Artifact: "firmware",
			Path:     a.Firmware,
			Hint:     "rebuild the project?",
		}
	}
	if a.Addr2line == "" || !isFile(a.Addr2line) {
		return &ArtifactError{
			Artifact: "addr2line",
			Path:     a.Addr2line,
			Hint:     "is the toolchain installed?",
		}
	}
	return nil
}

// pioEnvMetadata is the subset of `pio project metadata` output we use.
type pioEnvMetadata struct {
	ProgPath string `json:"prog_path"`
	CCPath   string `json:"cc_path"`
}

// queryPIO runs `pio project metadata` for env.
func (l *Locator) queryPIO(ctx context.Context, dir, env string) (progPath, ccPath string, err error) {
	if l.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, l.config.PIOPath,
		"project", "metadata",
		"-d", dir,
		"-e", env,
		"--json-output",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("%s project metadata: %w (stderr: %s)",
			l.config.PIOPath, err, strings.TrimSpace(stderr.String()))
	}

	var all map[string]pioEnvMetadata
	if err := json.Unmarshal(stdout.Bytes(), &all); err != nil {
		return "", "", fmt.Errorf("failed to parse metadata: %w", err)
	}
	md, ok := all[env]
	if !ok {
		return "", "", fmt.Errorf("metadata has no entry for %q", env)
	}
	return md.ProgPath, md.CCPath, nil
}

func (l *Locator) defaultCompilerPath() string {
	coreDir := l.config.CoreDir
	if coreDir == "" {
		coreDir = os.Getenv("PLATFORMIO_CORE_DIR")
	}
	if coreDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		coreDir = filepath.Join(home, ".platformio")
	}

	name := l.config.ToolchainPrefix + compilerSuffix
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(coreDir, "packages", l.config.ToolchainPackage, "bin", name)
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
