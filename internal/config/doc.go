// Package config provides user configuration management for esptrace.
//
// This package manages a YAML-based configuration file holding application
// preferences (target, baud rate, decoder tuning) and what esptrace remembers
// between sessions: the environment and console last used for each project,
// and network boards found through mDNS. The configuration follows
// OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/esptrace/config.yaml or $HOME/.config/esptrace/config.yaml
//   - macOS: $HOME/.config/esptrace/config.yaml
//   - Windows: %LOCALAPPDATA%\esptrace\config.yaml
//
// ESPTRACE_CONFIG overrides the location.
//
// # Precedence
//
// Command line flags win over platformio.ini, which wins over this file,
// which wins over the built-in defaults.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//
//	cfg := decoder.DefaultConfig()
//	registry.Preferences.Decoder.Apply(&cfg)
//
//	registry.UpdateProjectLastUsed(projectDir, "d1_mini", "/dev/ttyUSB0")
//	if err := registry.Save(); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
