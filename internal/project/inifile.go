package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// ConfigFileName is the PlatformIO project configuration file.
const ConfigFileName = "platformio.ini"

const (
	envSectionPrefix = "env:"
	commonEnvSection = "env"
	platformSection  = "platformio"

	defaultBuildDir  = ".pio/build"
	defaultBuildType = "release"
)

// ProjectConfig is a parsed platformio.ini.
type ProjectConfig struct {
	Path string
	file *ini.File
}

// LoadProjectConfig reads platformio.ini from dir.
func LoadProjectConfig(dir string) (*ProjectConfig, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s not found: %w", ConfigFileName, err)
	}

	file, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &ProjectConfig{Path: path, file: file}, nil
}

// Environments returns the environment names in declaration order.
func (c *ProjectConfig) Environments() []string {
	var envs []string
	for _, name := range c.file.SectionStrings() {
		if env, ok := strings.CutPrefix(name, envSectionPrefix); ok && env != "" {
			envs = append(envs, env)
		}
	}
	return envs
}

// HasEnvironment reports whether an [env:NAME] section exists.
func (c *ProjectConfig) HasEnvironment(env string) bool {
	_, err := c.file.GetSection(envSectionPrefix + env)
	return err == nil
}

// DefaultEnvironment returns the first of default_envs, or the first declared
// environment when default_envs is unset.
func (c *ProjectConfig) DefaultEnvironment() string {
	if sec, err := c.file.GetSection(platformSection); err == nil && sec.HasKey("default_envs") {
		if envs := splitList(sec.Key("default_envs").String()); len(envs) > 0 {
			return envs[0]
		}
	}
	if envs := c.Environments(); len(envs) > 0 {
		return envs[0]
	}
	return ""
}

// Get returns an option of env, falling back to the common [env] section.
func (c *ProjectConfig) Get(env, key string) string {
	for _, name := range []string{envSectionPrefix + env, commonEnvSection} {
		sec, err := c.file.GetSection(name)
		if err != nil || !sec.HasKey(key) {
			continue
		}
		return strings.TrimSpace(sec.Key(key).String())
	}
	return ""
}

// BuildType returns build_type of env ("release" when unset).
func (c *ProjectConfig) BuildType(env string) string {
	if v := c.Get(env, "build_type"); v != "" {
		return v
	}
	return defaultBuildType
}

// MonitorSpeed returns monitor_speed of env, or 0 when unset or invalid.
func (c *ProjectConfig) MonitorSpeed(env string) int {
	for _, name := range []string{envSectionPrefix + env, commonEnvSection} {
		sec, err := c.file.GetSection(name)
		if err != nil || !sec.HasKey("monitor_speed") {
			continue
		}
		return sec.Key("monitor_speed").MustInt(0)
	}
	return 0
}

// MonitorPort returns monitor_port of env.
func (c *ProjectConfig) MonitorPort(env string) string {
	return c.Get(env, "monitor_port")
}

// BuildDir returns the build directory relative to the project (or absolute).
// Values containing interpolation are ignored.
func (c *ProjectConfig) BuildDir() string {
	sec, err := c.file.GetSection(platformSection)
	if err != nil || !sec.HasKey("build_dir") {
		return defaultBuildDir
	}
	dir := strings.TrimSpace(sec.Key("build_dir").String())
	if dir == "" || strings.Contains(dir, "$") {
		return defaultBuildDir
	}
	return dir
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' ' || r == '\t'
	})
}
