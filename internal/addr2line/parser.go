package addr2line

import (
	"strconv"
	"strings"
)

// Unknown is what addr2line prints for an address it cannot map.
const Unknown = "?? ??:0"

const inlinedPrefix = "(inlined by) "

// Frame is one source location for a PC. Inlined callers follow the frame
// they were inlined into, with Inline set.
type Frame struct {
	PC     uint64
	Func   string
	File   string
	Line   int
	Inline bool
}

// Location is the result of resolving one address.
type Location struct {
	Addr   uint64
	Frames []Frame
}

// Known reports whether addr2line could map the address.
func (l Location) Known() bool {
	return len(l.Frames) > 0
}

// IsUnknown reports whether pretty-printed output is the unknown sentinel.
func IsUnknown(output string) bool {
	return strings.TrimSpace(output) == Unknown
}

// parseFrameLine parses "func at file:line" or
// "(inlined by) func at file:line (discriminator 2)".
func parseFrameLine(line string) (Frame, bool) {
	var frame Frame
	if rest, ok := strings.CutPrefix(line, inlinedPrefix); ok {
		frame.Inline = true
		line = rest
	}
	if line == Unknown {
		return Frame{}, false
	}

	if idx := strings.Index(line, " (discriminator "); idx != -1 {
		line = line[:idx]
	}

	fn, fileLine, found := cutLast(line, " at ")
	if !found {
		return Frame{}, false
	}
	frame.Func = fn

	file, lineNo, found := cutLast(fileLine, ":")
	if !found {
		frame.File = fileLine
		return frame, true
	}
	frame.File = file
	if n, err := strconv.Atoi(lineNo); err == nil {
		frame.Line = n
	}
	if frame.Func == "??" && frame.File == "??" {
		return Frame{}, false
	}
	return frame, true
}

// parseBatch splits -afipC output for several addresses. Each block starts
// with "0xADDR: " followed by the first frame.
func parseBatch(output string) []Location {
	var locs []Location
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if addrStr, rest, ok := strings.Cut(trimmed, ": "); ok && strings.HasPrefix(addrStr, "0x") {
			if addr, err := strconv.ParseUint(addrStr[2:], 16, 64); err == nil {
				locs = append(locs, Location{Addr: addr})
				trimmed = rest
			}
		}
		if len(locs) == 0 {
			continue
		}
		cur := &locs[len(locs)-1]
		if frame, ok := parseFrameLine(trimmed); ok {
			frame.PC = cur.Addr
			cur.Frames = append(cur.Frames, frame)
		}
	}
	return locs
}

func cutLast(s, sep string) (before, after string, found bool) {
	idx := strings.LastIndex(s, sep)
	if idx == -1 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}
