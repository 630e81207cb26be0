// Copyright 2025 Certen Protocol

package confidentialspace

import (
	_ "embed"
	"crypto/x509"
	"fmt"
)

//go:embed data/confidential_space_root.pem
var rootCertPEM []byte

// DefaultRootCertificate is the Confidential Space Root Certificate
// compiled into this package. Policies built by New and NewUnendorsed verify
// against the root certificate passed to them and do not fall back to this
// one when none is given.
var DefaultRootCertificate *x509.Certificate

func init() {
	root, err := parsePEMCertificate(rootCertPEM)
	if err != nil {
		panic(fmt.Sprintf("confidentialspace: embedded root certificate is invalid: %v", err))
	}
	DefaultRootCertificate = root
}

func parsePEMCertificate(data []byte) (*x509.Certificate, error) {
	return parseFirstCertificate(data)
}
