package certgen

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeCA generates a CA and writes it under a temp dir, returning the paths
// and the parsed objects for verification.
func writeCA(t *testing.T) (certPath, keyPath string, caCert *x509.Certificate, caKey *ecdsa.PrivateKey) {
	t.Helper()

	certPEM, keyPEM, caCert, caKey, err := GenerateCA("Test CA", 24*time.Hour)
	if err != nil {
		t.Fatalf("GenerateCA: %v", err)
	}
	dir := t.TempDir()
	if err := WritePair(dir, "ca", certPEM, keyPEM); err != nil {
		t.Fatalf("WritePair: %v", err)
	}
	return filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"), caCert, caKey
}

func TestGenerateCA(t *testing.T) {
	_, _, caCert, _ := writeCA(t)

	if !caCert.IsCA || !caCert.BasicConstraintsValid {
		t.Error("CA certificate should have IsCA and BasicConstraintsValid set")
	}
	if caCert.KeyUsage&x509.KeyUsageCertSign == 0 {
		t.Errorf("CA KeyUsage = %v; want CertSign", caCert.KeyUsage)
	}
	if caCert.Subject.CommonName != "Test CA" {
		t.Errorf("CommonName = %q", caCert.Subject.CommonName)
	}
}

func TestWritePair_KeyPermissions(t *testing.T) {
	_, keyPath, _, _ := writeCA(t)
	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key permissions = %o; want 600", perm)
	}
}

func TestLoadCACredentials_Success(t *testing.T) {
	certPath, keyPath, wantCert, wantKey := writeCA(t)

	certOut, keyOut, err := LoadCACredentials(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadCACredentials error: %v", err)
	}
	if certOut.Subject.CommonName != wantCert.Subject.CommonName {
		t.Errorf("CommonName = %q; want %q", certOut.Subject.CommonName, wantCert.Subject.CommonName)
	}
	parsedKey, ok := keyOut.(*ecdsa.PrivateKey)
	if !ok {
		t.Fatalf("key type = %T; want *ecdsa.PrivateKey", keyOut)
	}
	if !parsedKey.PublicKey.Equal(&wantKey.PublicKey) {
		t.Error("public key mismatch")
	}
}

func TestLoadCACredentials_MissingCert(t *testing.T) {
	_, _, err := LoadCACredentials("/no/such/file.pem", "ignored")
	if err == nil || !strings.Contains(err.Error(), "read ca cert") {
		t.Errorf("got %v; want error about reading ca cert", err)
	}
}

func TestLoadCACredentials_MissingKey(t *testing.T) {
	certPath, _, _, _ := writeCA(t)

	_, _, err := LoadCACredentials(certPath, "/no/such/key.pem")
	if err == nil || !strings.Contains(err.Error(), "read ca key") {
		t.Errorf("got %v; want error about reading ca key", err)
	}
}

func TestLoadCACredentials_BadPEM(t *testing.T) {
	certPath, keyPath, _, _ := writeCA(t)
	bad := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(bad, []byte("not a pem"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadCACredentials(bad, keyPath); err == nil || !strings.Contains(err.Error(), "invalid CA cert PEM") {
		t.Errorf("got %v; want invalid CA cert PEM error", err)
	}
	if _, _, err := LoadCACredentials(certPath, bad); err == nil || !strings.Contains(err.Error(), "invalid CA key PEM") {
		t.Errorf("got %v; want invalid CA key PEM error", err)
	}
}

func TestGenerateServerCertificate(t *testing.T) {
	_, _, caCert, caKey := writeCA(t)

	certPEM, keyPEM, err := GenerateServerCertificate([]string{"localhost", "127.0.0.1"}, caCert, caKey)
	if err != nil {
		t.Fatalf("GenerateServerCertificate error: %v", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("cert PEM invalid")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse server cert: %v", err)
	}
	if cert.Subject.CommonName != "localhost" {
		t.Errorf("CommonName = %q; want localhost", cert.Subject.CommonName)
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames = %v", cert.DNSNames)
	}
	if len(cert.IPAddresses) != 1 || !cert.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")) {
		t.Errorf("IPAddresses = %v", cert.IPAddresses)
	}

	pool := x509.NewCertPool()
	pool.AddCert(caCert)
	_, err = cert.Verify(x509.VerifyOptions{
		DNSName:   "localhost",
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		t.Errorf("server cert does not verify against the CA: %v", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil || keyBlock.Type != "EC PRIVATE KEY" {
		t.Fatalf("key PEM invalid")
	}
	if _, err := x509.ParseECPrivateKey(keyBlock.Bytes); err != nil {
		t.Errorf("parse private key failed: %v", err)
	}
}

func TestGenerateServerCertificate_NoHosts(t *testing.T) {
	_, _, caCert, caKey := writeCA(t)
	if _, _, err := GenerateServerCertificate(nil, caCert, caKey); err == nil {
		t.Error("expected error for empty host list")
	}
}
