// Copyright 2025 Certen Protocol
//
// X.509 chain verification for the certificates carried in a Confidential
// Space attestation JWT's x5c header, terminating at the compiled-in (or
// overridden) Confidential Space Root Certificate.

package confidentialspace

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"
)

func parseFirstCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		// data may already be raw DER.
		return x509.ParseCertificate(data)
	}
	return x509.ParseCertificate(block.Bytes)
}

// verifyIssuerChain checks that leafAndIntermediates (leaf first, as
// carried in a JWT's x5c header) chains to root at verificationTime.
func verifyIssuerChain(leafAndIntermediates []*x509.Certificate, root *x509.Certificate, verificationTime time.Time) error {
	if len(leafAndIntermediates) == 0 {
		return fmt.Errorf("x5c header carries no certificates")
	}

	roots := x509.NewCertPool()
	roots.AddCert(root)

	intermediates := x509.NewCertPool()
	for _, cert := range leafAndIntermediates[1:] {
		intermediates.AddCert(cert)
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   verificationTime,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if _, err := leafAndIntermediates[0].Verify(opts); err != nil {
		return fmt.Errorf("chain does not terminate at trusted root: %w", err)
	}
	return nil
}
