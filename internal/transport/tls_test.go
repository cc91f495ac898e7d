// internal/transport/tls_test.go
package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestCA writes a freshly generated self-signed certificate and
// returns its path.
func writeTestCA(t *testing.T, dir string) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}

	path := filepath.Join(dir, "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestTLSConfigValidate(t *testing.T) {
	dir := t.TempDir()
	caPath := writeTestCA(t, dir)

	tests := []struct {
		name    string
		config  *TLSConfig
		wantErr bool
	}{
		{"nil config", nil, false},
		{"zero config", &TLSConfig{}, false},
		{"existing root CA", &TLSConfig{RootCAs: []string{caPath}}, false},
		{"missing root CA", &TLSConfig{RootCAs: []string{filepath.Join(dir, "absent.pem")}}, true},
		{"cert without key", &TLSConfig{ClientCert: caPath}, true},
		{"key without cert", &TLSConfig{ClientKey: caPath}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewHTTPTransportInvalidTLSFallsBack(t *testing.T) {
	tr := NewHTTPTransport(Config{
		TLS: &TLSConfig{RootCAs: []string{filepath.Join(t.TempDir(), "missing.pem")}},
	})

	if tr.tlsConfig == nil {
		t.Fatal("transport has no TLS config after fallback")
	}
	if tr.tlsConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("fallback MinVersion = %x, want TLS 1.2", tr.tlsConfig.MinVersion)
	}
	if tr.tlsConfig.InsecureSkipVerify {
		t.Error("fallback config skips verification")
	}
	if tr.tlsConfig.RootCAs != nil {
		t.Error("fallback config kept a root pool from the invalid configuration")
	}
}

func TestBuildTLSConfigDefaults(t *testing.T) {
	built, err := (*TLSConfig)(nil).buildTLSConfig()
	if err != nil {
		t.Fatalf("buildTLSConfig() returned error: %v", err)
	}
	if built.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", built.MinVersion)
	}
	if built.InsecureSkipVerify {
		t.Error("default config skips verification")
	}
}

func TestBuildTLSConfigRootCAs(t *testing.T) {
	dir := t.TempDir()
	caPath := writeTestCA(t, dir)

	built, err := (&TLSConfig{RootCAs: []string{caPath}}).buildTLSConfig()
	if err != nil {
		t.Fatalf("buildTLSConfig() returned error: %v", err)
	}
	if built.RootCAs == nil {
		t.Error("RootCAs pool not built")
	}

	bad := filepath.Join(dir, "bad.pem")
	if err := os.WriteFile(bad, []byte("not a certificate"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := (&TLSConfig{RootCAs: []string{bad}}).buildTLSConfig(); err == nil {
		t.Error("buildTLSConfig() accepted a file without certificates")
	}

	if _, err := (&TLSConfig{RootCAs: []string{filepath.Join(dir, "absent.pem")}}).buildTLSConfig(); err == nil {
		t.Error("buildTLSConfig() accepted a missing file")
	}
}

func TestBuildTLSConfigInsecure(t *testing.T) {
	built, err := (&TLSConfig{InsecureSkipVerify: true, ServerName: "internal.test"}).buildTLSConfig()
	if err != nil {
		t.Fatalf("buildTLSConfig() returned error: %v", err)
	}
	if !built.InsecureSkipVerify {
		t.Error("InsecureSkipVerify not carried over")
	}
	if built.ServerName != "internal.test" {
		t.Errorf("ServerName = %q, want internal.test", built.ServerName)
	}
}
