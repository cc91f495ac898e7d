// internal/transport/tls.go - TLS settings for proxied connections
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig tunes TLS for connections made through proxies. The zero
// value gives certificate verification with TLS 1.2 as the floor.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification. Testing only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty"`
	// ServerName overrides SNI and the name used for verification.
	ServerName string `yaml:"server_name,omitempty" json:"server_name,omitempty"`
	// RootCAs are PEM files appended to the trusted root set.
	RootCAs []string `yaml:"root_cas,omitempty" json:"root_cas,omitempty"`
	// ClientCert and ClientKey enable mutual TLS. Both or neither.
	ClientCert string `yaml:"client_cert,omitempty" json:"client_cert,omitempty"`
	ClientKey  string `yaml:"client_key,omitempty" json:"client_key,omitempty"`
}

// Validate checks the file-based fields before they are loaded.
func (c *TLSConfig) Validate() error {
	if c == nil {
		return nil
	}
	if (c.ClientCert != "") != (c.ClientKey != "") {
		return fmt.Errorf("client_cert and client_key must be set together")
	}
	for _, path := range append([]string{}, c.RootCAs...) {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("root CA file %s: %w", path, err)
		}
	}
	if c.ClientCert != "" {
		if _, err := os.Stat(c.ClientCert); err != nil {
			return fmt.Errorf("client certificate %s: %w", c.ClientCert, err)
		}
		if _, err := os.Stat(c.ClientKey); err != nil {
			return fmt.Errorf("client key %s: %w", c.ClientKey, err)
		}
	}
	return nil
}

// defaultTLSConfig returns the verification defaults used when no TLS
// tuning is configured.
func defaultTLSConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

// buildTLSConfig materializes a tls.Config. A nil receiver gives the
// secure defaults.
func (c *TLSConfig) buildTLSConfig() (*tls.Config, error) {
	if c == nil {
		return defaultTLSConfig(), nil
	}
	out := defaultTLSConfig()

	out.InsecureSkipVerify = c.InsecureSkipVerify
	out.ServerName = c.ServerName
	if c.InsecureSkipVerify {
		transportLogger.Warn("TLS certificate verification is disabled; connections are open to interception")
	}

	if len(c.RootCAs) > 0 {
		pool := x509.NewCertPool()
		for _, path := range c.RootCAs {
			pem, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read root CA %s: %w", path, err)
			}
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("no certificates found in %s", path)
			}
		}
		out.RootCAs = pool
	}

	if c.ClientCert != "" && c.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}

	return out, nil
}
