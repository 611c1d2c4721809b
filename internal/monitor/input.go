package monitor

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// ExitKey is Ctrl+], the exit key of miniterm and telnet.
const ExitKey byte = 0x1d

// EOL modes for keystrokes sent to the device.
const (
	EOLCRLF = "CRLF"
	EOLCR   = "CR"
	EOLLF   = "LF"
)

// EOLBytes returns the line ending for mode. Unknown modes map to CRLF.
func EOLBytes(mode string) []byte {
	switch mode {
	case EOLCR:
		return []byte{'\r'}
	case EOLLF:
		return []byte{'\n'}
	default:
		return []byte{'\r', '\n'}
	}
}

// ForwardInput copies keystrokes from in to the device. Enter (CR in a raw
// terminal) is sent as eol. It returns ErrExitRequested when ExitKey is read,
// nil at end of input, or the first read or write error.
func ForwardInput(ctx context.Context, in io.Reader, device io.Writer, eol []byte) error {
	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := in.Read(buf)
		if n > 0 {
			data := buf[:n]
			exit := false
			if idx := bytes.IndexByte(data, ExitKey); idx != -1 {
				data = data[:idx]
				exit = true
			}
			data = bytes.ReplaceAll(data, []byte{'\r'}, eol)
			if len(data) > 0 {
				if _, werr := device.Write(data); werr != nil {
					return werr
				}
			}
			if exit {
				return ErrExitRequested
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// CRLFWriter writes to a terminal in raw mode, where a bare LF moves down
// without returning to column zero. Every LF not preceded by CR is written
// as CRLF.
type CRLFWriter struct {
	W    io.Writer
	last byte
}

// Write implements io.Writer. It reports len(p) on success.
func (w *CRLFWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	out := make([]byte, 0, len(p)+8)
	prev := w.last
	for _, b := range p {
		if b == '\n' && prev != '\r' {
			out = append(out, '\r')
		}
		out = append(out, b)
		prev = b
	}

	if _, err := w.W.Write(out); err != nil {
		return 0, err
	}
	w.last = prev
	return len(p), nil
}
