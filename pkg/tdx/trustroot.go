// Copyright 2025 Certen Protocol

package tdx

import (
	_ "embed"
	"crypto/x509"
	"fmt"
)

//go:embed data/intel_sgx_pck_root.pem
var pckRootPEM []byte

// DefaultPckRoot is the Intel SGX Provisioning Certification Root CA
// certificate compiled into this package. TdxChainVerifier substitutes this
// certificate for whatever root a quote's PCK chain presents, rather than
// trusting the wire-provided root.
var DefaultPckRoot *x509.Certificate

func init() {
	root, err := parsePEMCertificate(pckRootPEM)
	if err != nil {
		panic(fmt.Sprintf("tdx: embedded PCK root certificate is invalid: %v", err))
	}
	DefaultPckRoot = root
}
