package monitor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestForwardInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		eol     string
		want    string
		wantErr error
	}{
		{"crlf", "help\r", EOLCRLF, "help\r\n", nil},
		{"cr", "help\r", EOLCR, "help\r", nil},
		{"lf", "help\r", EOLLF, "help\n", nil},
		{"exit key", "ab\rc\x1dignored", EOLCRLF, "ab\r\nc", ErrExitRequested},
		{"exit key first", "\x1d", EOLCRLF, "", ErrExitRequested},
		{"end of input", "abc", EOLCRLF, "abc", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var device bytes.Buffer
			err := ForwardInput(context.Background(), strings.NewReader(tt.input), &device, EOLBytes(tt.eol))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ForwardInput() error = %v, want %v", err, tt.wantErr)
			}
			if device.String() != tt.want {
				t.Errorf("device received %q, want %q", device.String(), tt.want)
			}
		})
	}
}

func TestForwardInput_WriteError(t *testing.T) {
	err := ForwardInput(context.Background(), strings.NewReader("x"), failingWriter{}, EOLBytes(EOLCRLF))
	if err == nil {
		t.Error("ForwardInput() should return the write error")
	}
}

func TestCRLFWriter(t *testing.T) {
	var out bytes.Buffer
	w := &CRLFWriter{W: &out}

	// A CR at the end of one write pairs with the LF starting the next.
	for _, chunk := range []string{"a\nb\r", "\nc\n\n", "\r\n"} {
		n, err := w.Write([]byte(chunk))
		if err != nil {
			t.Fatal(err)
		}
		if n != len(chunk) {
			t.Errorf("Write(%q) = %d, want %d", chunk, n, len(chunk))
		}
	}

	want := "a\r\nb\r\nc\r\n\r\n\r\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}
