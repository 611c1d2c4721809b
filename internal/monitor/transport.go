package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// SocketScheme prefixes TCP console addresses.
const SocketScheme = "socket://"

// PortConfig describes the console to open.
type PortConfig struct {
	// Port is a serial device ("/dev/ttyUSB0", "COM3") or "socket://host:port".
	Port string

	// BaudRate applies to serial ports only.
	// Default: 115200
	BaudRate int

	// DialTimeout bounds the TCP connect of socket:// consoles.
	// Default: 10 seconds
	DialTimeout time.Duration
}

// IsSocket reports whether port is a socket:// address.
func IsSocket(port string) bool {
	return strings.HasPrefix(port, SocketScheme)
}

// SocketAddress returns the host:port of a socket:// URL.
func SocketAddress(port string) (string, error) {
	addr := strings.TrimPrefix(port, SocketScheme)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", fmt.Errorf("invalid socket address %q: %w", port, err)
	}
	return addr, nil
}

// Open opens the console described by cfg.
func Open(ctx context.Context, cfg PortConfig, logger *zap.Logger) (io.ReadWriteCloser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Port == "" {
		return nil, &TransportError{Op: "open", Err: errors.New("no port specified")}
	}

	if IsSocket(cfg.Port) {
		return openSocket(ctx, cfg, logger)
	}
	return openSerial(cfg, logger)
}

func openSocket(ctx context.Context, cfg PortConfig, logger *zap.Logger) (io.ReadWriteCloser, error) {
	addr, err := SocketAddress(cfg.Port)
	if err != nil {
		return nil, &TransportError{Port: cfg.Port, Op: "open", Err: err}
	}

	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Port: cfg.Port, Op: "open", Err: err}
	}

	logger.Info("socket console connected",
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)
	return conn, nil
}

func openSerial(cfg PortConfig, logger *zap.Logger) (io.ReadWriteCloser, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = 115200
	}

	// DTR and RTS low keep auto-reset circuits (NodeMCU, Wemos) out of
	// reset and bootloader mode.
	mode := &serial.Mode{
		BaudRate:          baud,
		DataBits:          8,
		Parity:            serial.NoParity,
		StopBits:          serial.OneStopBit,
		InitialStatusBits: &serial.ModemOutputBits{RTS: false, DTR: false},
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, &TransportError{Port: cfg.Port, Op: "open", Err: err}
	}

	logger.Info("serial console opened",
		zap.String("port", cfg.Port),
		zap.Int("baud", baud),
	)
	return port, nil
}

// PortInfo describes a local serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Description returns a short label for the port's USB bridge.
func (p PortInfo) Description() string {
	if !p.IsUSB {
		return ""
	}
	if bridge, ok := knownBridges[strings.ToUpper(p.VID+":"+p.PID)]; ok {
		return bridge
	}
	return p.Product
}

// USB-UART bridges found on ESP8266 development boards.
var knownBridges = map[string]string{
	"10C4:EA60": "CP210x (NodeMCU, Wemos D1)",
	"1A86:7523": "CH340 (NodeMCU v3, Wemos D1 mini)",
	"1A86:55D4": "CH9102",
	"0403:6001": "FT232R",
	"0403:6015": "FT231X",
}

// ListPorts returns the serial ports of this machine, sorted by name. USB
// details are filled in where the platform supports it.
func ListPorts() ([]PortInfo, error) {
	var ports []PortInfo

	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		for _, d := range details {
			ports = append(ports, PortInfo{
				Name:         d.Name,
				IsUSB:        d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
	} else {
		names, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", err)
		}
		for _, name := range names {
			ports = append(ports, PortInfo{Name: name})
		}
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

// isClosed reports whether err means the console went away: end of stream,
// a closed socket or a closed (or unplugged) serial port.
func isClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}
