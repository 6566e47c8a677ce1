package util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// EnsureCertificate makes sure certFile and keyFile exist, generating a
// self-signed pair for the given hosts when either one is missing.
func EnsureCertificate(certFile, keyFile string, hosts []string) error {
	if FileExists(certFile) && FileExists(keyFile) {
		return nil
	}
	return GenerateSelfSignedCert(certFile, keyFile, hosts)
}

// GenerateSelfSignedCert writes a one-year ECDSA P-256 certificate and key
// for the inspector API. Hosts may be names or IP addresses.
func GenerateSelfSignedCert(certFile, keyFile string, hosts []string) error {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"eolink workbench"},
			CommonName:   "eolink-local",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if h != "" {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := writePEM(certFile, 0644, "CERTIFICATE", certDER); err != nil {
		return err
	}
	if err := writePEM(keyFile, 0600, "EC PRIVATE KEY", keyDER); err != nil {
		return err
	}

	log.Info().
		Str("cert", certFile).
		Str("key", keyFile).
		Strs("hosts", hosts).
		Msg("self-signed TLS certificate generated")
	return nil
}

func writePEM(path string, mode os.FileMode, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}
