// Package certs manages the lifecycle of the proxy's embedded
// development TLS certificate: writing it to a temporary directory at
// startup and removing that directory on shutdown. Generating the
// certificate material itself is out of scope — the PEM literals below
// are a fixed, throwaway development pair, not generated at runtime.
package certs

import (
	"crypto/tls"
	"os"
	"path/filepath"
)

// Material is a filesystem-backed TLS certificate/key pair, written
// under a temporary directory for the lifetime of the process.
type Material struct {
	dir      string
	certPath string
	keyPath  string
}

// Write creates a temp directory, writes the embedded cert/key PEM
// literals into it, and returns a handle to the written files.
func Write() (*Material, error) {
	dir, err := os.MkdirTemp("", "bs-proxy-tls-*")
	if err != nil {
		return nil, err
	}

	certPath := filepath.Join(dir, "dev-cert.pem")
	keyPath := filepath.Join(dir, "dev-key.pem")

	if err := os.WriteFile(certPath, []byte(embeddedCertPEM), 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	if err := os.WriteFile(keyPath, []byte(embeddedKeyPEM), 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	return &Material{dir: dir, certPath: certPath, keyPath: keyPath}, nil
}

// CertPath returns the written certificate file's path.
func (m *Material) CertPath() string { return m.certPath }

// KeyPath returns the written private key file's path.
func (m *Material) KeyPath() string { return m.keyPath }

// LoadKeyPair loads the written cert/key pair as a tls.Certificate.
func (m *Material) LoadKeyPair() (tls.Certificate, error) {
	return tls.LoadX509KeyPair(m.certPath, m.keyPath)
}

// Remove deletes the temporary directory and everything in it.
func (m *Material) Remove() error {
	return os.RemoveAll(m.dir)
}
