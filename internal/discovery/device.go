package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Device represents an ESP8266 board advertising Arduino OTA on the network
type Device struct {
	// Name is the mDNS instance name (e.g., "esp8266-1a2b3c")
	Name string

	// Hostname is the mDNS hostname (e.g., "esp8266-1a2b3c.local")
	Hostname string

	// IP is the device address, IPv4 preferred (e.g., "192.168.4.16")
	IP string

	// Port is the OTA upload port (typically 8266)
	Port int

	// Board is the Arduino board identifier from the "board" TXT record
	// (e.g., "ESP8266_WEMOS_D1MINI")
	Board string

	// AuthUpload reports whether OTA uploads require a password
	AuthUpload bool

	// Metadata contains all mDNS TXT record data
	// Common fields: "tcp_check=no", "ssh_upload=no", "auth_upload=no"
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	board := d.Board
	if board == "" {
		board = "unknown board"
	}
	return fmt.Sprintf("%s (%s, %s) at %s:%d", d.Name, d.Hostname, board, d.IP, d.Port)
}

// SocketURL returns the monitor port string for a TCP console bridge
// running on the device (e.g., "socket://192.168.4.16:23").
func (d *Device) SocketURL(port int) string {
	if port <= 0 {
		port = DefaultConsolePort
	}
	return "socket://" + net.JoinHostPort(d.IP, strconv.Itoa(port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

// Matches reports whether name identifies the device by instance name,
// hostname, or hostname without the ".local" suffix.
func (d *Device) Matches(name string) bool {
	name = strings.TrimSuffix(name, ".")
	host := strings.TrimSuffix(d.Hostname, ".")
	return name != "" && (name == d.Name || name == host || name+".local" == host || name == d.IP)
}
