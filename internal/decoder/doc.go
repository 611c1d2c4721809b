// Package decoder annotates ESP8266 serial console output with source locations.
//
// The Filter consumes console text in arbitrary chunks and returns the same text
// with annotation blocks spliced in after the lines that triggered them. Two kinds
// of fault output are recognized:
//
// Exception headers, printed by the SDK fault handler over two lines:
//
//	Exception (9):
//	epc1=0x40201234 epc2=0x00000000 epc3=0x00000000 excvaddr=0x00000000 depc=0x00000000
//
// Stack dumps, delimited by markers:
//
//	>>>stack>>>
//	3ffffdc0:  4024b26c 00000000 3ffe8190 40100a4c
//	<<<stack<<<
//
// Words that fall inside the instruction memory window are resolved through a
// Resolver (normally addr2line, see package addr2line). Everything else is
// ignored, since stack memory is mostly data.
//
// # State Machine
//
// The Filter is in one of two states:
//   - StateDefault: scanning for exception headers and the stack start marker
//   - StateInStack: collecting resolved stack words until the end marker
//
// A stack block that never ends is abandoned after Config.ResyncThreshold+1
// consecutive lines that do not look like a stack dump. Pending entries are
// flushed and the offending line is processed again as a default-state line.
//
// # Memory Bounds
//
// An unterminated line is carried between calls only up to Config.CarryCap bytes
// and at most Config.StackCap stack entries are kept per block.
//
// # Disabled Mode
//
// When the firmware image or addr2line cannot be found, Setup returns a disabled
// Filter whose Rx returns its input unchanged. The reason is written once to the
// diagnostics writer.
//
// # Concurrency
//
// A Filter is not safe for concurrent use. Each console session owns one.
package decoder
