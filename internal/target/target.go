package target

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/esptrace/internal/decoder"
)

//go:embed targets.yaml
var targetsYAML []byte

// Default is the target used when none is configured.
const Default = "esp8266"

// Address is a memory address written as a hex string in YAML.
type Address uint64

// UnmarshalYAML accepts "0x..." strings and plain integers.
func (a *Address) UnmarshalYAML(node *yaml.Node) error {
	v, err := strconv.ParseUint(node.Value, 0, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid address %q: %w", node.Line, node.Value, err)
	}
	*a = Address(v)
	return nil
}

// Window is a half-open address range.
type Window struct {
	Min Address `yaml:"min"`
	Max Address `yaml:"max"`
}

// Region is a named part of the memory map.
type Region struct {
	Name  string  `yaml:"name"`
	Kind  string  `yaml:"kind"` // "code" or "data"
	Start Address `yaml:"start"`
	End   Address `yaml:"end"`
}

// Contains reports whether addr is inside the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= uint64(r.Start) && addr < uint64(r.End)
}

// Target describes one chip family.
type Target struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	ToolchainPackage string   `yaml:"toolchain_package"`
	ToolchainPrefix  string   `yaml:"toolchain_prefix"`
	DefaultBaud      int      `yaml:"default_baud"`
	Code             Window   `yaml:"code"`
	Regions          []Region `yaml:"regions"`
}

// CodeRange returns the executable window in decoder form.
func (t *Target) CodeRange() decoder.AddressRange {
	return decoder.AddressRange{Min: uint64(t.Code.Min), Max: uint64(t.Code.Max)}
}

// RegionOf returns the memory region containing addr.
func (t *Target) RegionOf(addr uint64) (Region, bool) {
	for _, r := range t.Regions {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}

// String returns a human-readable representation of the target.
func (t *Target) String() string {
	return fmt.Sprintf("%s - %s", t.Name, t.Description)
}

// DB holds all known targets.
type DB struct {
	Targets []*Target
	index   map[string]*Target
}

type dbContainer struct {
	Targets []*Target `yaml:"targets"`
}

var (
	globalDB   *DB
	globalOnce sync.Once
	globalErr  error
)

// Load parses the embedded catalog. The catalog is parsed only once.
func Load() (*DB, error) {
	globalOnce.Do(func() {
		globalDB, globalErr = parse(targetsYAML)
	})
	return globalDB, globalErr
}

func parse(data []byte) (*DB, error) {
	var container dbContainer
	if err := yaml.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("failed to parse targets.yaml: %w", err)
	}

	db := &DB{
		Targets: container.Targets,
		index:   make(map[string]*Target, len(container.Targets)),
	}
	for _, t := range db.Targets {
		if t.Code.Max <= t.Code.Min {
			return nil, fmt.Errorf("target %s: empty code window", t.Name)
		}
		db.index[t.Name] = t
	}
	return db, nil
}

// Get retrieves a target by name.
func (db *DB) Get(name string) (*Target, bool) {
	t, ok := db.index[name]
	return t, ok
}

// Names returns all target names, sorted.
func (db *DB) Names() []string {
	names := make([]string, 0, len(db.index))
	for name := range db.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named target or an error listing the known ones.
func Lookup(name string) (*Target, error) {
	db, err := Load()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = Default
	}
	t, ok := db.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown target %q (known: %v)", name, db.Names())
	}
	return t, nil
}
