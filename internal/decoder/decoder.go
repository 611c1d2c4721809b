package decoder

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// State is the state of the line state machine.
type State int

const (
	StateDefault State = iota
	StateInStack
)

func (s State) String() string {
	switch s {
	case StateDefault:
		return "default"
	case StateInStack:
		return "in_stack"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

var (
	// Applied to the exception line remainder joined with the register line.
	exceptionPattern = regexp.MustCompile(`^([0-9]{1,2})\):\n([a-z0-9]+=0x[0-9a-f]{8} ?)+$`)
	stackPattern     = regexp.MustCompile(`^[0-9a-f]{8}:\s+([0-9a-f]{8} ?)+ *$`)
)

// Resolver maps a code address inside a firmware image to a location string
// such as "loop at /home/me/proj/src/main.cpp:20". ok is false when the
// address has no known location.
type Resolver interface {
	Resolve(firmware string, addr uint64) (location string, ok bool, err error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(firmware string, addr uint64) (string, bool, error)

// Resolve implements Resolver.
func (fn ResolverFunc) Resolve(firmware string, addr uint64) (string, bool, error) {
	return fn(firmware, addr)
}

// Filter is the console stream annotator.
type Filter struct {
	cfg      Config
	firmware string
	resolver Resolver
	diag     io.Writer
	logger   *zap.Logger
	enabled  bool

	carry    string
	prevLine string
	state    State
	noMatch  int
	stack    []string
}

// New creates an enabled Filter resolving addresses in firmware through r.
// Resolver failures are reported to diag; a nil diag discards them.
func New(cfg Config, firmware string, r Resolver, diag io.Writer, logger *zap.Logger) *Filter {
	if diag == nil {
		diag = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{
		cfg:      cfg.withDefaults(),
		firmware: firmware,
		resolver: r,
		diag:     diag,
		logger:   logger,
		enabled:  r != nil,
	}
}

// Disabled returns a Filter that passes all input through unchanged.
func Disabled() *Filter {
	return &Filter{cfg: DefaultConfig(), diag: io.Discard, logger: zap.NewNop()}
}

// Enabled reports whether the Filter annotates its input.
func (f *Filter) Enabled() bool {
	return f.enabled
}

// State returns the current state machine state.
func (f *Filter) State() State {
	return f.state
}

// Buffered returns the number of bytes carried over from an unterminated line.
func (f *Filter) Buffered() int {
	return len(f.carry)
}

// Rx processes one chunk of console text and returns it with annotation
// blocks inserted after the lines that produced them. Chunks need not be
// line aligned; a trailing fragment is kept until its terminator arrives.
func (f *Filter) Rx(text string) string {
	if !f.enabled {
		return text
	}

	last := 0
	for {
		idx := strings.IndexByte(text[last:], '\n')
		if idx == -1 {
			f.keep(text[last:])
			break
		}
		idx += last

		line := text[last:idx]
		if f.carry != "" {
			line = f.carry + line
			f.carry = ""
		}
		last = idx + 1

		line = strings.TrimSuffix(line, "\r")

		extra := f.processLine(line)
		f.prevLine = line
		if extra != "" {
			text = text[:idx+1] + extra + text[idx+1:]
			last += len(extra)
		}
	}
	return text
}

// Flush ends the current stack block, if any, and returns its pending
// annotations. It is meant for the end of a session or input file.
func (f *Filter) Flush() string {
	if !f.enabled {
		return ""
	}
	f.state = StateDefault
	return f.takeStackLines()
}

// keep stores an unterminated fragment, dropping it together with any
// previous carry-over when the result would exceed CarryCap.
func (f *Filter) keep(fragment string) {
	if fragment == "" {
		return
	}
	if len(f.carry)+len(fragment) > f.cfg.CarryCap {
		f.logger.Debug("dropping oversized unterminated line",
			zap.Int("carried", len(f.carry)),
			zap.Int("fragment", len(fragment)),
		)
		f.carry = ""
		return
	}
	f.carry += fragment
}

func (f *Filter) processLine(line string) string {
	switch f.state {
	case StateDefault:
		var extra string
		if strings.HasPrefix(f.prevLine, f.cfg.ExceptionMarker) {
			twoLines := f.prevLine[len(f.cfg.ExceptionMarker):] + "\n" + line
			if match := exceptionPattern.FindStringSubmatch(twoLines); match != nil {
				extra = f.processException(match)
			}
		}
		if line == f.cfg.StackStart {
			f.enterStack()
		}
		return extra

	case StateInStack:
		if line == f.cfg.StackEnd {
			f.state = StateDefault
			f.logger.Debug("stack block complete", zap.Int("entries", len(f.stack)))
			return f.takeStackLines()
		}
		if stackPattern.MatchString(line) {
			f.noMatch = 0
			f.processStack(line)
			return ""
		}
	}

	f.noMatch++
	if f.noMatch <= f.cfg.ResyncThreshold {
		return ""
	}

	f.logger.Debug("resynchronizing after unmatched lines",
		zap.Stringer("state", f.state),
		zap.Int("misses", f.noMatch),
	)
	f.state = StateDefault
	var results []string
	if pending := f.takeStackLines(); pending != "" {
		results = append(results, pending)
	}
	if extra := f.processLine(line); extra != "" {
		results = append(results, extra)
	}
	return strings.Join(results, "\n")
}

func (f *Filter) enterStack() {
	f.state = StateInStack
	f.noMatch = 0
	f.logger.Debug("stack block started")
}

func (f *Filter) processException(match []string) string {
	var b strings.Builder
	b.WriteString("\n")

	if code, err := strconv.Atoi(match[1]); err == nil {
		if cause, ok := ExceptionCause(code); ok {
			b.WriteString(cause)
			b.WriteString("\n")
		}
	}

	header := match[0]
	registers := strings.Fields(header[strings.IndexByte(header, '\n')+1:])
	for _, reg := range registers {
		name, value, _ := strings.Cut(reg, "=")
		location, ok := f.lookup(value)
		if !ok {
			continue
		}
		// Inlined frames come back as extra lines.
		location = strings.ReplaceAll(location, "\n", "\n    ")
		fmt.Fprintf(&b, "  %s=%s in %s\n", name, value, location)
	}
	return b.String()
}

func (f *Filter) processStack(line string) {
	if len(f.stack) >= f.cfg.StackCap {
		return
	}
	words := strings.Fields(line[strings.IndexByte(line, ':')+1:])
	for _, word := range words {
		location, ok := f.lookup(word)
		if !ok {
			continue
		}
		location = strings.ReplaceAll(location, "\n", "\n    ")
		f.stack = append(f.stack, fmt.Sprintf("0x%s in %s", word, location))
		if len(f.stack) >= f.cfg.StackCap {
			return
		}
	}
}

func (f *Filter) takeStackLines() string {
	if len(f.stack) == 0 {
		return ""
	}
	res := "\n" + strings.Join(f.stack, "\n") + "\n\n"
	f.stack = nil
	return res
}

// lookup resolves a hex word if it falls inside the code window.
func (f *Filter) lookup(word string) (string, bool) {
	addr, err := strconv.ParseUint(strings.TrimPrefix(word, "0x"), 16, 64)
	if err != nil || !f.cfg.Code.Contains(addr) {
		return "", false
	}

	location, ok, err := f.resolver.Resolve(f.firmware, addr)
	if err != nil {
		fmt.Fprintf(f.diag, "%s: failed to resolve 0x%08x: %v\n", Name, addr, err)
		f.logger.Warn("address resolution failed",
			zap.String("address", fmt.Sprintf("0x%08x", addr)),
			zap.Error(err),
		)
		return "", false
	}
	if !ok {
		return "", false
	}
	return f.stripProjectRoot(location), true
}

func (f *Filter) stripProjectRoot(location string) string {
	root := strings.TrimRight(f.cfg.ProjectRoot, `/\`)
	if root == "" {
		return location
	}
	location = strings.ReplaceAll(location, root+"/", "")
	return strings.ReplaceAll(location, root+`\`, "")
}
