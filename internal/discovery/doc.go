// Package discovery finds ESP8266 boards on the local network via mDNS.
//
// Firmware built with the ArduinoOTA library advertises the "_arduino._tcp"
// service. The advertisement carries the board identifier and whether
// uploads need a password. Boards that also run a TCP console bridge can
// then be monitored with a socket:// port (see Device.SocketURL).
//
// # Usage Example
//
//	devices, err := discovery.DiscoverDevices(ctx, 5*time.Second, logger)
//	if err != nil {
//	    return err
//	}
//	for _, device := range devices {
//	    fmt.Println(device, device.SocketURL(23))
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
