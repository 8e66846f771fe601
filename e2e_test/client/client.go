// Package client provides a stub browser which follows the authorization request
// until the redirect to the custom scheme.
package client

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"os"
)

// Browser sends an authorization request.
type Browser struct {
	// Trusted CAs. Default to the system pool.
	RootCAs *x509.CertPool
}

// LoadCertPool returns a pool of the certificate in the PEM file.
func LoadCertPool(name string) (*x509.CertPool, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("could not read the certificate: %w", err)
	}
	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("could not append certificate data")
	}
	return certPool, nil
}

// WriteCert writes the certificate to the PEM file.
func WriteCert(name string, cert *x509.Certificate) error {
	b := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if err := os.WriteFile(name, b, 0600); err != nil {
		return fmt.Errorf("could not write the certificate: %w", err)
	}
	return nil
}

// GetRedirect sends the authorization request and returns the URL of the redirect.
// The redirect is not followed, as a browser hands a custom scheme to the OS.
func (b *Browser) GetRedirect(authURL string) (string, error) {
	client := http.Client{
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: b.RootCAs}},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(authURL)
	if err != nil {
		return "", fmt.Errorf("could not send a request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		return "", fmt.Errorf("status wants 302 but was %d", resp.StatusCode)
	}
	location := resp.Header.Get("Location")
	if _, err := url.Parse(location); err != nil {
		return "", fmt.Errorf("invalid Location header: %w", err)
	}
	return location, nil
}
