// Package server mirrors the annotated console stream to WebSocket clients.
//
// While a monitor session runs, every chunk written to the Server is sent as
// a text message to each connected client. A small page served at "/"
// connects to the stream, so a crash can be watched from a browser on
// another machine:
//
//	srv := server.New(&server.Config{Host: "0.0.0.0", Port: 8266}, logger)
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(context.Background())
//
//	m := monitor.New(conn, filter, os.Stdout, logger)
//	m.SetMirror(srv)
//
// # Slow Clients
//
// Each client has a bounded send queue. A client whose queue is full is
// disconnected rather than slowing down the console.
//
// # TLS
//
// When CertPath and KeyPath are set the server listens with TLS (wss://).
//
// # Graceful Shutdown
//
// Shutdown stops accepting connections, sends a close frame to every client
// and waits for their goroutines to finish.
//
// # Thread Safety
//
// Write, Start, Shutdown and GetActiveConnections are safe for concurrent use.
package server
