package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/esptrace/internal/addr2line"
	"github.com/muurk/esptrace/internal/decoder"
	"github.com/muurk/esptrace/internal/logging"
	"github.com/muurk/esptrace/internal/target"
	"github.com/muurk/esptrace/internal/ui"
	"github.com/muurk/esptrace/internal/urls"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <address>...",
	Short: "Resolve addresses to source locations",
	Long: `Resolve one or more addresses to function, file and line.

Addresses are hexadecimal, with or without the 0x prefix. Addresses outside
the code window of the target are reported with the memory region they
belong to instead of being passed to addr2line.`,
	Example: `  # Resolve the PC of an exception
  esptrace resolve 0x40201234

  # Several return addresses from a stack dump
  esptrace resolve 40201234 4020abcd 40100f00`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	addDecoderFlags(resolveCmd)

	rootCmd.AddCommand(resolveCmd)
}

// parseAddress parses a hexadecimal address with an optional 0x prefix.
func parseAddress(s string) (uint64, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if hex == "" {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	addr, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: expected 32-bit hex", s)
	}
	return addr, nil
}

// describeOutside explains an address that is not executable code.
func describeOutside(tgt *target.Target, addr uint64) string {
	if r, ok := tgt.RegionOf(addr); ok {
		return fmt.Sprintf("in %s (%s), not a code address", r.Name, r.Kind)
	}
	return "not in a known memory region"
}

// formatLocation renders the frames of a resolved address, innermost first.
func formatLocation(loc addr2line.Location) string {
	if !loc.Known() {
		return ui.StepNoteStyle.Render("?? (not found in firmware)")
	}
	var sb strings.Builder
	for i, f := range loc.Frames {
		if i > 0 {
			sb.WriteString("\n           ")
		}
		if f.Inline {
			sb.WriteString(ui.StepNoteStyle.Render("inlined by "))
		}
		sb.WriteString(ui.FunctionStyle.Render(f.Func))
		sb.WriteString(" at ")
		sb.WriteString(ui.LocationStyle.Render(fmt.Sprintf("%s:%d", f.File, f.Line)))
	}
	return sb.String()
}

func runResolve(cmd *cobra.Command, args []string) error {
	addrs := make([]uint64, 0, len(args))
	for _, arg := range args {
		addr, err := parseAddress(arg)
		if err != nil {
			return err
		}
		addrs = append(addrs, addr)
	}
	cmd.SilenceUsage = true

	ctx, stop := signalContext()
	defer stop()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}

	artifacts, err := decoder.ResolveArtifacts(ctx, s.setupOptions(nil))
	if err != nil {
		ui.NewPrinter(os.Stderr).PrintError("Cannot resolve addresses", err, []string{
			"Build the project first: pio run -e <environment>",
			"Or point at the files with --elf and --addr2line",
			"Run esptrace verify-setup for details",
			"See " + urls.TroubleshootingGuide,
		})
		return err
	}

	code := s.target.CodeRange()
	var inside []uint64
	for _, addr := range addrs {
		if code.Contains(addr) {
			inside = append(inside, addr)
		}
	}

	resolved := make(map[uint64]addr2line.Location, len(inside))
	if len(inside) > 0 {
		resolver := addr2line.NewResolver(addr2line.Config{
			Path:    artifacts.Addr2line,
			Timeout: s.registry.Preferences.Decoder.ResolverTimeoutDuration(),
		}, logging.Named("addr2line"))
		locs, err := resolver.Symbolize(ctx, artifacts.Firmware, inside...)
		if err != nil {
			return err
		}
		for _, loc := range locs {
			resolved[loc.Addr] = loc
		}
	}

	for _, addr := range addrs {
		label := ui.HeaderParamKeyStyle.Render(fmt.Sprintf("0x%08x", addr))
		if loc, ok := resolved[addr]; ok {
			fmt.Printf("%s: %s\n", label, formatLocation(loc))
		} else {
			fmt.Printf("%s: %s\n", label, ui.StepNoteStyle.Render(describeOutside(s.target, addr)))
		}
	}
	return nil
}
