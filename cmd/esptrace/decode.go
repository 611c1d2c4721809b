package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/esptrace/internal/monitor"
	"github.com/muurk/esptrace/internal/ui"
)

// decodeChunkSize matches a typical serial read so captured logs are fed
// to the decoder the way a live console would be.
const decodeChunkSize = 4096

var decodeNoProgress bool

var decodeCmd = &cobra.Command{
	Use:   "decode [file|-]",
	Short: "Decode exceptions in a captured console log",
	Long: `Decode exceptions in a captured console log.

The log is read from the file, or from stdin when the argument is "-" or
missing, and written to stdout with the decoded locations added after each
exception and stack dump. When the firmware or addr2line cannot be found the
log is copied unchanged.

The firmware must be the exact image that produced the log.`,
	Example: `  # Decode a saved log
  esptrace decode crash.log

  # Decode from a pipe
  cat crash.log | esptrace decode -e d1_mini`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeNoProgress, "no-progress", false, "Do not show the progress bar")
	addDecoderFlags(decodeCmd)

	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	var (
		in    io.Reader = os.Stdin
		size  int64
		label = "stdin"
	)
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open log: %w", err)
		}
		defer f.Close()
		if st, err := f.Stat(); err == nil && st.Mode().IsRegular() {
			size = st.Size()
		}
		in, label = f, args[0]
	}
	cmd.SilenceUsage = true

	ctx, stop := signalContext()
	defer stop()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	filter := s.newFilter(ctx, os.Stderr)

	var progress func(int64)
	if size > 0 && !decodeNoProgress && ui.IsTerminal(os.Stderr) {
		bar := ui.NewTransferBar(label, size, ui.GetTerminalWidth())
		progress = func(done int64) {
			fmt.Fprint(os.Stderr, "\r"+bar.Render(done))
		}
		defer fmt.Fprintln(os.Stderr)
	}

	return decodeStream(in, os.Stdout, filter, progress)
}

// decodeStream feeds r through filter to w, flushing at end of input.
// progress, when set, is called with the number of bytes read so far.
func decodeStream(r io.Reader, w io.Writer, filter monitor.Filter, progress func(int64)) error {
	buf := make([]byte, decodeChunkSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if _, werr := io.WriteString(w, filter.Rx(string(buf[:n]))); werr != nil {
				return werr
			}
			if progress != nil {
				progress(total)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read log: %w", err)
		}
	}
	_, err := io.WriteString(w, filter.Flush())
	return err
}
