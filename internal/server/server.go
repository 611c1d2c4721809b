package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/esptrace/internal/logging"
)

// DefaultPort is the default listen port of the mirror.
const DefaultPort = 8266

// Config holds the server configuration
type Config struct {
	Host     string
	Port     int
	CertPath string // Path to certificate file (optional, enables TLS with KeyPath)
	KeyPath  string // Path to private key file

	// SendQueue is the number of messages buffered per client.
	// Default: 256
	SendQueue int
}

// Server broadcasts the annotated stream over WebSocket.
type Server struct {
	config     *Config
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	tlsConfig  *tls.Config

	wg      sync.WaitGroup
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// New creates a new Server instance
func New(config *Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SendQueue <= 0 {
		config.SendQueue = 256
	}
	return &Server{
		config: config,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The mirror is read-only; any page may watch it.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler serving the page and the stream.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.config.CertPath != "" || s.config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(s.config.CertPath, s.config.KeyPath)
		if err != nil {
			listener.Close()
			return err
		}
		s.tlsConfig = tlsConfig
		listener = tls.NewListener(listener, tlsConfig)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Stream mirror listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("mirror server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the page URL once started.
func (s *Server) URL() string {
	scheme := "http"
	if s.tlsConfig != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/", scheme, s.Addr())
}

// TLSInfo describes the certificate served, once started.
func (s *Server) TLSInfo() string {
	return GetTLSInfo(s.tlsConfig)
}

// Write broadcasts p to every connected client. It never blocks on a client
// and always reports success.
func (s *Server) Write(p []byte) (int, error) {
	msg := make([]byte, len(p))
	copy(msg, p)

	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.logger.Warn("dropping slow mirror client", zap.String("remote_addr", c.remoteAddr))
			s.removeLocked(c)
		}
	}
	return len(p), nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		s.removeLocked(c)
	}
	s.mu.Unlock()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("all mirror connections closed")
	case <-ctx.Done():
		s.logger.Warn("shutdown timeout, forcing close")
	}
	return err
}

// GetActiveConnections returns the number of connected clients
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) register(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(c)
}

// removeLocked unregisters c and closes its queue, which ends its writer.
func (s *Server) removeLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}
