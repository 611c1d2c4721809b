package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

func otaEntry(instance, host, ip string, port int, txt ...string) *zeroconf.ServiceEntry {
	entry := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	entry.HostName = host
	entry.Port = port
	entry.Text = txt
	if parsed := net.ParseIP(ip); parsed != nil {
		if parsed.To4() != nil {
			entry.AddrIPv4 = []net.IP{parsed}
		} else {
			entry.AddrIPv6 = []net.IP{parsed}
		}
	}
	return entry
}

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner(nil)

	tests := []struct {
		name      string
		entry     *zeroconf.ServiceEntry
		wantNil   bool
		wantName  string
		wantIP    string
		wantPort  int
		wantBoard string
		wantAuth  bool
	}{
		{
			name: "arduino ota board",
			entry: otaEntry("esp8266-1a2b3c", "esp8266-1a2b3c.local.", "192.168.4.16", 8266,
				"tcp_check=no", "ssh_upload=no", "board=ESP8266_WEMOS_D1MINI", "auth_upload=no"),
			wantName:  "esp8266-1a2b3c",
			wantIP:    "192.168.4.16",
			wantPort:  8266,
			wantBoard: "ESP8266_WEMOS_D1MINI",
		},
		{
			name:      "password protected upload",
			entry:     otaEntry("garage", "garage.local.", "10.0.0.5", 8266, "board=ESP8266_NODEMCU", "auth_upload=yes"),
			wantName:  "garage",
			wantIP:    "10.0.0.5",
			wantPort:  8266,
			wantBoard: "ESP8266_NODEMCU",
			wantAuth:  true,
		},
		{
			name:     "missing port defaults to ota port",
			entry:    otaEntry("esp8266-000001", "esp8266-000001.local.", "172.16.0.1", 0),
			wantName: "esp8266-000001",
			wantIP:   "172.16.0.1",
			wantPort: DefaultPort,
		},
		{
			name:     "name from hostname",
			entry:    otaEntry("", "esp8266-000002.local.", "172.16.0.2", 8266),
			wantName: "esp8266-000002",
			wantIP:   "172.16.0.2",
			wantPort: 8266,
		},
		{
			name:     "ipv6 only",
			entry:    otaEntry("esp8266-v6", "esp8266-v6.local.", "fe80::1", 8266),
			wantName: "esp8266-v6",
			wantIP:   "fe80::1",
			wantPort: 8266,
		},
		{
			name:    "no address",
			entry:   otaEntry("esp8266-none", "esp8266-none.local.", "", 8266),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if device != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", device)
				}
				return
			}
			if device == nil {
				t.Fatal("parseServiceEntry() = nil, want non-nil device")
			}
			if device.Name != tt.wantName {
				t.Errorf("device.Name = %v, want %v", device.Name, tt.wantName)
			}
			if device.IP != tt.wantIP {
				t.Errorf("device.IP = %v, want %v", device.IP, tt.wantIP)
			}
			if device.Port != tt.wantPort {
				t.Errorf("device.Port = %v, want %v", device.Port, tt.wantPort)
			}
			if device.Board != tt.wantBoard {
				t.Errorf("device.Board = %v, want %v", device.Board, tt.wantBoard)
			}
			if device.AuthUpload != tt.wantAuth {
				t.Errorf("device.AuthUpload = %v, want %v", device.AuthUpload, tt.wantAuth)
			}
			if device.DiscoveredAt.IsZero() {
				t.Error("device.DiscoveredAt not set")
			}
		})
	}
}

func TestScanner_parseServiceEntry_IPv4Preferred(t *testing.T) {
	entry := otaEntry("dual", "dual.local.", "192.168.1.50", 8266)
	entry.AddrIPv6 = []net.IP{net.ParseIP("fe80::2")}

	device := NewScanner(nil).parseServiceEntry(entry)
	if device == nil || device.IP != "192.168.1.50" {
		t.Errorf("parseServiceEntry() = %v, want IPv4 address", device)
	}
}

func TestScanner_collect(t *testing.T) {
	scanner := NewScanner(zap.NewNop())

	entries := make(chan *zeroconf.ServiceEntry, 4)
	entries <- otaEntry("b-board", "b-board.local.", "10.0.0.2", 8266)
	entries <- otaEntry("a-board", "a-board.local.", "10.0.0.1", 8266)
	entries <- otaEntry("a-board", "a-board.local.", "10.0.0.1", 8266)
	entries <- otaEntry("broken", "broken.local.", "", 8266)
	close(entries)

	devices := scanner.collect(entries, nil)
	if len(devices) != 2 {
		t.Fatalf("collect() returned %d devices, want 2", len(devices))
	}
	if devices[0].Name != "b-board" || devices[1].Name != "a-board" {
		t.Errorf("collect() = %v, %v", devices[0].Name, devices[1].Name)
	}
}

func TestScanner_collectStops(t *testing.T) {
	scanner := NewScanner(nil)

	entries := make(chan *zeroconf.ServiceEntry, 3)
	entries <- otaEntry("first", "first.local.", "10.0.0.1", 8266)
	entries <- otaEntry("target", "target.local.", "10.0.0.2", 8266)
	entries <- otaEntry("after", "after.local.", "10.0.0.3", 8266)
	close(entries)

	devices := scanner.collect(entries, func(d *Device) bool { return d.Matches("target") })
	if len(devices) != 2 {
		t.Fatalf("collect() returned %d devices, want 2", len(devices))
	}
	if devices[1].Name != "target" {
		t.Errorf("last device = %s, want target", devices[1].Name)
	}
}
