// Package main generates the development Certificate Authority (CA) and a
// TLS server certificate for the Beitak API, writing them under -dir.
//
// An existing CA in -dir is reused so that clients which already trust it
// keep working after the server certificate is reissued.
package main

import (
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beitak/beitak/internal/certgen"
)

const caValidity = 10 * 365 * 24 * time.Hour

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := flags.String("dir", "certs", "output directory")
	hosts := flags.String("hosts", "localhost,127.0.0.1", "comma separated server host names and IPs")
	if err := flags.Parse(args); err != nil {
		return err
	}

	caCert, caKey, err := loadOrCreateCA(*dir)
	if err != nil {
		return err
	}
	certPEM, keyPEM, err := certgen.GenerateServerCertificate(splitHosts(*hosts), caCert, caKey)
	if err != nil {
		return err
	}
	if err := certgen.WritePair(*dir, "server", certPEM, keyPEM); err != nil {
		return err
	}
	fmt.Fprintf(out, "certificates written to %s\n", *dir)
	return nil
}

func loadOrCreateCA(dir string) (cert *x509.Certificate, key any, err error) {
	certPath, keyPath := filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key")
	cert, key, err = certgen.LoadCACredentials(certPath, keyPath)
	if err == nil {
		return cert, key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}
	certPEM, keyPEM, cert, ecKey, err := certgen.GenerateCA("Beitak Development CA", caValidity)
	if err != nil {
		return nil, nil, err
	}
	if err := certgen.WritePair(dir, "ca", certPEM, keyPEM); err != nil {
		return nil, nil, err
	}
	return cert, ecKey, nil
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
