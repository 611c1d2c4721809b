package config

import (
	"path/filepath"
	"time"

	"github.com/muurk/esptrace/internal/decoder"
)

// CurrentVersion is the configuration file format version.
const CurrentVersion = 1

// Registry represents the entire user configuration file.
// It stores application preferences and what esptrace remembers about
// projects and network boards between sessions.
type Registry struct {
	Version     int                 `yaml:"version"`
	Preferences *Preferences        `yaml:"preferences,omitempty"`
	Projects    map[string]*Project `yaml:"projects,omitempty"` // Keyed by absolute project directory
	Boards      map[string]*Board   `yaml:"boards,omitempty"`   // Keyed by mDNS hostname
}

// Project represents the remembered settings of one PlatformIO project.
type Project struct {
	Environment string    `yaml:"environment,omitempty"` // Last used build environment
	LastPort    string    `yaml:"last_port,omitempty"`   // Last opened console (device path or socket:// URL)
	LastUsed    time.Time `yaml:"last_used,omitempty"`
}

// Board represents a network-attached board found through mDNS.
type Board struct {
	Nickname  string    `yaml:"nickname,omitempty"`
	BoardType string    `yaml:"board,omitempty"`   // Arduino board id from the TXT record (e.g. "d1_mini")
	LastIP    string    `yaml:"last_ip,omitempty"` // Last known IP address
	LastSeen  time.Time `yaml:"last_seen,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	Target          string        `yaml:"target"`                // Target name from the built-in catalog
	BaudRate        int           `yaml:"baud_rate"`             // Used when platformio.ini has no monitor_speed
	Environment     string        `yaml:"environment,omitempty"` // Used when the project has no default_envs
	DiscoverTimeout int           `yaml:"discover_timeout"`      // mDNS discovery timeout in seconds
	Decoder         *DecoderPrefs `yaml:"decoder,omitempty"`
}

// DecoderPrefs tunes the exception decoder. Zero values keep the defaults.
type DecoderPrefs struct {
	ResyncThreshold int `yaml:"resync_threshold,omitempty"`
	StackCap        int `yaml:"stack_cap,omitempty"`
	CarryCap        int `yaml:"carry_cap,omitempty"`
	ResolverTimeout int `yaml:"resolver_timeout,omitempty"` // Seconds per addr2line call, 0 waits forever
}

// DefaultBaudRate is the ESP8266 ROM and Arduino core default.
const DefaultBaudRate = 115200

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     CurrentVersion,
		Preferences: defaultPreferences(),
		Projects:    make(map[string]*Project),
		Boards:      make(map[string]*Board),
	}
}

func defaultPreferences() *Preferences {
	return &Preferences{
		Target:          "esp8266",
		BaudRate:        DefaultBaudRate,
		DiscoverTimeout: 5,
		Decoder: &DecoderPrefs{
			ResyncThreshold: decoder.DefaultResyncThreshold,
			StackCap:        decoder.DefaultStackCap,
			CarryCap:        decoder.DefaultCarryCap,
		},
	}
}

// Apply copies the non-zero tuning values into cfg.
func (p *DecoderPrefs) Apply(cfg *decoder.Config) {
	if p == nil {
		return
	}
	if p.ResyncThreshold > 0 {
		cfg.ResyncThreshold = p.ResyncThreshold
	}
	if p.StackCap > 0 {
		cfg.StackCap = p.StackCap
	}
	if p.CarryCap > 0 {
		cfg.CarryCap = p.CarryCap
	}
}

// ResolverTimeoutDuration returns the addr2line timeout.
func (p *DecoderPrefs) ResolverTimeoutDuration() time.Duration {
	if p == nil || p.ResolverTimeout <= 0 {
		return 0
	}
	return time.Duration(p.ResolverTimeout) * time.Second
}

// projectKey normalizes a project directory to its map key.
func projectKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// GetProject retrieves the remembered settings of a project directory.
// Returns nil if the project is unknown.
func (r *Registry) GetProject(dir string) *Project {
	return r.Projects[projectKey(dir)]
}

// EnsureProject ensures a project entry exists in the registry.
// Returns the entry (existing or newly created).
func (r *Registry) EnsureProject(dir string) *Project {
	if r.Projects == nil {
		r.Projects = make(map[string]*Project)
	}

	key := projectKey(dir)
	if project, exists := r.Projects[key]; exists {
		return project
	}

	project := &Project{}
	r.Projects[key] = project
	return project
}

// UpdateProjectLastUsed records the environment and console used for a
// project. Empty values leave the stored ones unchanged.
func (r *Registry) UpdateProjectLastUsed(dir, env, port string) {
	project := r.EnsureProject(dir)
	if env != "" {
		project.Environment = env
	}
	if port != "" {
		project.LastPort = port
	}
	project.LastUsed = time.Now()
}

// GetBoard retrieves board metadata by hostname.
// Returns nil if the board doesn't exist in the registry.
func (r *Registry) GetBoard(hostname string) *Board {
	return r.Boards[hostname]
}

// EnsureBoard ensures a board entry exists in the registry.
func (r *Registry) EnsureBoard(hostname string) *Board {
	if r.Boards == nil {
		r.Boards = make(map[string]*Board)
	}

	if board, exists := r.Boards[hostname]; exists {
		return board
	}

	board := &Board{}
	r.Boards[hostname] = board
	return board
}

// UpdateBoardLastSeen updates the last seen timestamp, IP and board type.
func (r *Registry) UpdateBoardLastSeen(hostname, ip, boardType string) {
	board := r.EnsureBoard(hostname)
	board.LastSeen = time.Now()
	board.LastIP = ip
	if boardType != "" {
		board.BoardType = boardType
	}
}

// SetBoardNickname sets a user-friendly nickname for a board.
func (r *Registry) SetBoardNickname(hostname, nickname string) {
	r.EnsureBoard(hostname).Nickname = nickname
}
