// Package monitor connects a device console to the exception decoder.
//
// A console is either a local serial port or a TCP socket bridged to the
// board's UART (for example by ESP-Link or ser2net), addressed as
// "socket://host:port":
//
//	conn, err := monitor.Open(ctx, monitor.PortConfig{
//	    Port:     "/dev/ttyUSB0",
//	    BaudRate: 115200,
//	}, logger)
//
// Monitor reads chunks from the console on a dedicated goroutine and hands
// them to the filter on the goroutine that called Run, so the filter never
// sees concurrent calls. Annotated text goes to the output writer and, when
// set, to a mirror such as the websocket hub.
//
//	m := monitor.New(conn, filter, os.Stdout, logger)
//	m.SetMirror(hub)
//	err := m.Run(ctx)
//
// ForwardInput sends keystrokes from the terminal to the device until the
// exit key (Ctrl+]) is pressed.
package monitor
