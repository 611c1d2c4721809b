package monitor

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/esptrace/internal/logging"
)

// DefaultReadBufferSize is the size of a single console read.
const DefaultReadBufferSize = 4096

// Filter transforms console text. *decoder.Filter implements it.
type Filter interface {
	Rx(text string) string
	Flush() string
}

type passThrough struct{}

func (passThrough) Rx(text string) string { return text }
func (passThrough) Flush() string         { return "" }

// Monitor pumps console output through a Filter.
type Monitor struct {
	conn   io.ReadWriteCloser
	port   string
	filter Filter
	out    io.Writer
	logger *zap.Logger

	mu     sync.Mutex
	mirror io.Writer

	bufSize int
}

// New creates a Monitor reading from conn. A nil filter passes text through.
func New(conn io.ReadWriteCloser, filter Filter, out io.Writer, logger *zap.Logger) *Monitor {
	if filter == nil {
		filter = passThrough{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		conn:    conn,
		filter:  filter,
		out:     out,
		logger:  logger,
		bufSize: DefaultReadBufferSize,
	}
}

// SetPort sets the console name used in errors.
func (m *Monitor) SetPort(port string) {
	m.port = port
}

// SetMirror sets a second destination for the annotated stream. Mirror
// write failures are logged and otherwise ignored.
func (m *Monitor) SetMirror(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirror = w
}

// Run copies the console to the output until the console closes or ctx is
// cancelled. Pending annotations are flushed on the way out. A console that
// closes, or a cancelled ctx, is a normal end and returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go m.readLoop(chunks, readErr, stop)

	done := ctx.Done()
	for {
		select {
		case <-done:
			// Closing unblocks the reader, which then reports on readErr.
			m.conn.Close()
			done = nil

		case chunk := <-chunks:
			if err := m.emit(m.filter.Rx(string(chunk))); err != nil {
				m.conn.Close()
				return err
			}

		case err := <-readErr:
			flushErr := m.emit(m.filter.Flush())
			if err != nil && !isClosed(err) && ctx.Err() == nil {
				return &TransportError{Port: m.port, Op: "read", Err: err}
			}
			m.logger.Debug("console closed", zap.Error(err))
			return flushErr
		}
	}
}

func (m *Monitor) readLoop(chunks chan<- []byte, readErr chan<- error, stop <-chan struct{}) {
	buf := make([]byte, m.bufSize)
	for {
		n, err := m.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			logging.LogRawBytes("console rx", chunk)
			select {
			case chunks <- chunk:
			case <-stop:
				return
			}
		}
		if err != nil {
			readErr <- err
			return
		}
	}
}

func (m *Monitor) emit(text string) error {
	if text == "" {
		return nil
	}
	if _, err := io.WriteString(m.out, text); err != nil {
		return err
	}

	m.mu.Lock()
	mirror := m.mirror
	m.mu.Unlock()
	if mirror != nil {
		if _, err := io.WriteString(mirror, text); err != nil {
			m.logger.Warn("mirror write failed", zap.Error(err))
		}
	}
	return nil
}

// Write sends data to the device.
func (m *Monitor) Write(p []byte) (int, error) {
	n, err := m.conn.Write(p)
	if err != nil {
		return n, &TransportError{Port: m.port, Op: "write", Err: err}
	}
	return n, nil
}
