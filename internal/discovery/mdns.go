package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type announced by ArduinoOTA
	ServiceType = "_arduino._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the ArduinoOTA port on ESP8266
	DefaultPort = 8266

	// DefaultConsolePort is the usual telnet port of a serial bridge
	DefaultConsolePort = 23
)

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration

	logger *zap.Logger
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner(logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		Timeout: DefaultScanTimeout,
		logger:  logger,
	}
}

// ScanForDevices discovers all OTA-enabled boards on the local network.
// Devices are sorted by name.
func (s *Scanner) ScanForDevices(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries, err := s.browse(ctx)
	if err != nil {
		return nil, err
	}

	devices := s.collect(entries, nil)
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

// WaitForDevice waits for the device whose instance name or hostname
// matches name.
func (s *Scanner) WaitForDevice(ctx context.Context, name string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries, err := s.browse(ctx)
	if err != nil {
		return nil, err
	}

	found := s.collect(entries, func(d *Device) bool {
		if d.Matches(name) {
			cancel()
			return true
		}
		return false
	})
	for _, d := range found {
		if d.Matches(name) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %s not found within %s", name, s.Timeout)
}

func (s *Scanner) browse(ctx context.Context) (<-chan *zeroconf.ServiceEntry, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	s.logger.Debug("browsing for OTA boards", zap.String("service", ServiceType))
	return entries, nil
}

// collect drains entries until the channel is closed, deduplicating by
// instance name. stop, if set, is called for each new device.
func (s *Scanner) collect(entries <-chan *zeroconf.ServiceEntry, stop func(*Device) bool) []*Device {
	seen := make(map[string]bool)
	var devices []*Device
	stopped := false

	for entry := range entries {
		if stopped {
			continue
		}
		device := s.parseServiceEntry(entry)
		if device == nil || seen[device.Name] {
			continue
		}
		seen[device.Name] = true
		devices = append(devices, device)
		s.logger.Debug("found OTA board",
			zap.String("name", device.Name),
			zap.String("ip", device.IP),
			zap.String("board", device.Board),
		)
		if stop != nil && stop(device) {
			stopped = true
		}
	}
	return devices
}

// parseServiceEntry converts a zeroconf service entry to a Device
// Returns nil if the entry has no usable address
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	if entry == nil {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}

	// Fallback to IPv6 if no IPv4
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}

	if ip == "" || net.ParseIP(ip) == nil {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// Parse TXT records into metadata
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		if key != "" {
			metadata[key] = value
		}
	}

	name := entry.Instance
	hostname := strings.TrimSuffix(entry.HostName, ".")
	if name == "" {
		name = strings.TrimSuffix(hostname, ".local")
	}
	if name == "" {
		name = ip
	}

	return &Device{
		Name:         name,
		Hostname:     hostname,
		IP:           ip,
		Port:         port,
		Board:        metadata["board"],
		AuthUpload:   metadata["auth_upload"] == "yes",
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// DiscoverDevices is a convenience function to scan with a specific timeout
func DiscoverDevices(ctx context.Context, timeout time.Duration, logger *zap.Logger) ([]*Device, error) {
	scanner := NewScanner(logger)
	if timeout > 0 {
		scanner.Timeout = timeout
	}
	return scanner.ScanForDevices(ctx)
}
