package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	standardtls "crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	t.Parallel()

	cert, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	if leaf.Subject.CommonName != "localhost" {
		t.Errorf("CN: got %q, want %q", leaf.Subject.CommonName, "localhost")
	}
	if len(leaf.DNSNames) != 1 || leaf.DNSNames[0] != "localhost" {
		t.Errorf("DNS SANs: got %v", leaf.DNSNames)
	}
	if len(leaf.IPAddresses) != 1 || leaf.IPAddresses[0].String() != "127.0.0.1" {
		t.Errorf("IP SANs: got %v", leaf.IPAddresses)
	}

	validity := leaf.NotAfter.Sub(leaf.NotBefore)
	if validity < certValidity-time.Hour || validity > certValidity+time.Hour {
		t.Errorf("validity: got %v, want about %v", validity, certValidity)
	}

	key, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		t.Fatal("public key is not ECDSA")
	}
	if key.Curve != elliptic.P256() {
		t.Errorf("curve: got %v, want P-256", key.Curve.Params().Name)
	}
}

func TestLoadOrGenerateTLS_SelfSigned(t *testing.T) {
	t.Parallel()

	cfg, err := LoadOrGenerateTLS("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("Certificates: got %d, want 1", len(cfg.Certificates))
	}
	if cfg.MinVersion != standardtls.VersionTLS12 {
		t.Errorf("MinVersion: got %d, want %d", cfg.MinVersion, standardtls.VersionTLS12)
	}
}

func TestLoadOrGenerateTLS_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		certFile string
		keyFile  string
	}{
		{name: "missing files", certFile: "/nonexistent/cert.pem", keyFile: "/nonexistent/key.pem"},
		{name: "cert without key", certFile: "/nonexistent/cert.pem"},
		{name: "key without cert", keyFile: "/nonexistent/key.pem"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := LoadOrGenerateTLS(tt.certFile, tt.keyFile); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadOrGenerateTLS_InvalidPEM(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certPath, []byte("not a cert"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadOrGenerateTLS(certPath, keyPath); err == nil {
		t.Error("expected error for invalid PEM, got nil")
	}
}

func TestCertPool_VerifiesGeneratedCert(t *testing.T) {
	t.Parallel()

	cert, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pool, err := CertPool(cert)
	if err != nil {
		t.Fatalf("CertPool: %v", err)
	}

	_, err = cert.Leaf.Verify(x509.VerifyOptions{
		Roots:     pool,
		DNSName:   "localhost",
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		t.Errorf("verification against pool failed: %v", err)
	}
}

func TestCertPool_Empty(t *testing.T) {
	t.Parallel()

	if _, err := CertPool(nil); err == nil {
		t.Error("expected error for nil certificate")
	}
	if _, err := CertPool(&standardtls.Certificate{}); err == nil {
		t.Error("expected error for empty certificate")
	}
}

func TestClientConfig(t *testing.T) {
	t.Parallel()

	cfg, err := ClientConfig("")
	if err != nil || cfg != nil {
		t.Errorf("empty path: got (%v, %v), want (nil, nil)", cfg, err)
	}

	cert, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dir := t.TempDir()
	caPath := filepath.Join(dir, "ca.pem")
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	if err := os.WriteFile(caPath, block, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err = ClientConfig(caPath)
	if err != nil {
		t.Fatalf("ClientConfig: %v", err)
	}
	if _, err := cert.Leaf.Verify(x509.VerifyOptions{Roots: cfg.RootCAs, DNSName: "localhost"}); err != nil {
		t.Errorf("verification against CA file failed: %v", err)
	}

	junk := filepath.Join(dir, "junk.pem")
	if err := os.WriteFile(junk, []byte("not a cert"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ClientConfig(junk); err == nil {
		t.Error("expected error for file without certificates")
	}
	if _, err := ClientConfig(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("expected error for missing file")
	}
}
