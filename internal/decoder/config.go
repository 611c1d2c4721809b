package decoder

import "fmt"

// Name identifies the decoder in diagnostic messages.
const Name = "esp8266_exception_decoder"

// Default markers and limits.
const (
	DefaultExceptionMarker = "Exception ("
	DefaultStackStart      = ">>>stack>>>"
	DefaultStackEnd        = "<<<stack<<<"

	DefaultResyncThreshold = 4
	DefaultStackCap        = 128
	DefaultCarryCap        = 4096

	// ESP8266 instruction memory window (IRAM, ROM and mapped flash).
	DefaultCodeMin = 0x40000000
	DefaultCodeMax = 0x40300000
)

// AddressRange is a half-open address window [Min, Max).
type AddressRange struct {
	Min uint64
	Max uint64
}

// Contains reports whether addr lies inside the window.
func (r AddressRange) Contains(addr uint64) bool {
	return addr >= r.Min && addr < r.Max
}

func (r AddressRange) String() string {
	return fmt.Sprintf("[0x%08x, 0x%08x)", r.Min, r.Max)
}

// Config controls what the Filter recognizes and how much it retains.
type Config struct {
	// ProjectRoot is stripped from resolved paths so locations are shown
	// relative to the project. Empty disables stripping.
	ProjectRoot string

	// Code is the executable address window. Only words inside it are
	// passed to the resolver.
	Code AddressRange

	ExceptionMarker string
	StackStart      string
	StackEnd        string

	// ResyncThreshold is the number of consecutive non-matching lines
	// tolerated inside a stack block. The next miss leaves the block.
	ResyncThreshold int

	// StackCap bounds the pending stack entries per block.
	StackCap int

	// CarryCap bounds the unterminated fragment kept between Rx calls.
	CarryCap int
}

// DefaultConfig returns the ESP8266 configuration.
func DefaultConfig() Config {
	return Config{
		Code:            AddressRange{Min: DefaultCodeMin, Max: DefaultCodeMax},
		ExceptionMarker: DefaultExceptionMarker,
		StackStart:      DefaultStackStart,
		StackEnd:        DefaultStackEnd,
		ResyncThreshold: DefaultResyncThreshold,
		StackCap:        DefaultStackCap,
		CarryCap:        DefaultCarryCap,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Code.Max == 0 {
		c.Code = d.Code
	}
	if c.ExceptionMarker == "" {
		c.ExceptionMarker = d.ExceptionMarker
	}
	if c.StackStart == "" {
		c.StackStart = d.StackStart
	}
	if c.StackEnd == "" {
		c.StackEnd = d.StackEnd
	}
	if c.ResyncThreshold <= 0 {
		c.ResyncThreshold = d.ResyncThreshold
	}
	if c.StackCap <= 0 {
		c.StackCap = d.StackCap
	}
	if c.CarryCap <= 0 {
		c.CarryCap = d.CarryCap
	}
	return c
}
