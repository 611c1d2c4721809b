package discovery

import "testing"

func TestDevice_String(t *testing.T) {
	device := &Device{
		Name:     "esp8266-1a2b3c",
		Hostname: "esp8266-1a2b3c.local",
		IP:       "192.168.4.16",
		Port:     8266,
		Board:    "ESP8266_WEMOS_D1MINI",
	}

	expected := "esp8266-1a2b3c (esp8266-1a2b3c.local, ESP8266_WEMOS_D1MINI) at 192.168.4.16:8266"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}

	device.Board = ""
	expected = "esp8266-1a2b3c (esp8266-1a2b3c.local, unknown board) at 192.168.4.16:8266"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}
}

func TestDevice_SocketURL(t *testing.T) {
	tests := []struct {
		name     string
		device   *Device
		port     int
		expected string
	}{
		{
			name:     "default console port",
			device:   &Device{IP: "192.168.4.16"},
			expected: "socket://192.168.4.16:23",
		},
		{
			name:     "custom port",
			device:   &Device{IP: "10.0.0.5"},
			port:     2323,
			expected: "socket://10.0.0.5:2323",
		},
		{
			name:     "ipv6",
			device:   &Device{IP: "fe80::1"},
			port:     23,
			expected: "socket://[fe80::1]:23",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.SocketURL(tt.port); got != tt.expected {
				t.Errorf("Device.SocketURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDevice_Matches(t *testing.T) {
	device := &Device{Name: "esp8266-1a2b3c", Hostname: "esp8266-1a2b3c.local", IP: "192.168.4.16"}

	tests := []struct {
		name string
		want bool
	}{
		{"esp8266-1a2b3c", true},
		{"esp8266-1a2b3c.local", true},
		{"esp8266-1a2b3c.local.", true},
		{"192.168.4.16", true},
		{"esp8266-ffffff", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := device.Matches(tt.name); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDevice_GetMetadata(t *testing.T) {
	device := &Device{
		Metadata: map[string]string{
			"board":       "ESP8266_GENERIC",
			"auth_upload": "no",
		},
	}

	if got := device.GetMetadata("board"); got != "ESP8266_GENERIC" {
		t.Errorf("GetMetadata(board) = %q", got)
	}
	if got := device.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q", got)
	}
	if got := (&Device{}).GetMetadata("anything"); got != "" {
		t.Errorf("GetMetadata() with nil map = %q", got)
	}
}
