package server

import (
	"crypto/tls"
	"fmt"
)

// NewTLSConfig loads a certificate and key pair for wss:// serving.
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	if certPath == "" || keyPath == "" {
		return nil, fmt.Errorf("both certificate and key are required for TLS")
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate %s: %w", certPath, err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// GetTLSInfo returns human-readable information about a TLS config
func GetTLSInfo(config *tls.Config) string {
	if config == nil {
		return "TLS not configured"
	}
	if len(config.Certificates) == 0 {
		return "TLS enabled (no certificates)"
	}
	cert := config.Certificates[0]
	if cert.Leaf == nil {
		return "TLS enabled (certificate loaded)"
	}
	return fmt.Sprintf("TLS enabled (subject=%s, expires=%s)",
		cert.Leaf.Subject.CommonName,
		cert.Leaf.NotAfter.Format("2006-01-02"))
}
