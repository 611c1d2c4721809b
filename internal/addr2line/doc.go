// Package addr2line resolves firmware code addresses through the toolchain's
// addr2line utility.
//
// Each lookup runs addr2line as a subprocess:
//
//	xtensa-lx106-elf-addr2line -fipC -e firmware.elf 0x40201234
//
// with the flags:
//   - -f: print the function name
//   - -i: print inlined callers, one per line
//   - -p: pretty print on a single line per frame
//   - -C: demangle C++ names
//
// A Resolver implements the decoder.Resolver seam. Resolve returns the raw
// trimmed output and reports the "?? ??:0" sentinel as not found:
//
//	r := addr2line.NewResolver(addr2line.Config{Path: path}, logger)
//	loc, ok, err := r.Resolve("firmware.elf", 0x40201234)
//	// loc == "setup at /home/me/blink/src/main.cpp:12"
//
// Symbolize resolves several addresses in one invocation (-a) and parses the
// output into Frames, which the resolve command prints.
//
// # Error Handling
//
// Failures are returned as typed errors:
//   - ExecutionError: addr2line failed to run or exited non-zero
//   - TimeoutError: Config.Timeout elapsed
//   - PrerequisiteError: the binary or firmware is missing or unusable
package addr2line
