// Copyright 2025 Certen Protocol

package tdx

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"
)

func mustECDSAKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating ECDSA key: %v", err)
	}
	return key
}

func selfSignedCA(t *testing.T, key *ecdsa.PrivateKey, cn string, serial int64) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Unix(1700000000, 0),
		NotAfter:              time.Unix(2200000000, 0),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating CA cert %s: %v", cn, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsing CA cert %s: %v", cn, err)
	}
	return cert
}

func signedCert(t *testing.T, parent *x509.Certificate, parentKey *ecdsa.PrivateKey, key *ecdsa.PrivateKey, cn string, serial int64, isCA bool) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Unix(1700000000, 0),
		NotAfter:              time.Unix(2200000000, 0),
		IsCA:                  isCA,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, parentKey)
	if err != nil {
		t.Fatalf("creating cert %s: %v", cn, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsing cert %s: %v", cn, err)
	}
	return cert
}

func pemEncode(certs ...*x509.Certificate) []byte {
	var buf bytes.Buffer
	for _, c := range certs {
		pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})
	}
	return buf.Bytes()
}

// fixture bundles a full valid TDX quote and the keys/certs used to build
// it, so individual tests can mutate one field at a time.
type fixture struct {
	rootKey  *ecdsa.PrivateKey
	rootCert *x509.Certificate

	interKey  *ecdsa.PrivateKey
	interCert *x509.Certificate

	leafKey  *ecdsa.PrivateKey
	leafCert *x509.Certificate

	attestKey    *ecdsa.PrivateKey
	attestRaw    []byte // 64-byte untagged SEC1 point
	authData     []byte
	quoteBody    []byte
	reportBody   []byte
	qeSignature  []byte
	quoteSigData QuoteSignatureData
	quote        *Quote
}

func buildFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}

	f.rootKey = mustECDSAKey(t)
	f.rootCert = selfSignedCA(t, f.rootKey, "Test PCK Root", 1)

	f.interKey = mustECDSAKey(t)
	f.interCert = signedCert(t, f.rootCert, f.rootKey, f.interKey, "Test PCK Platform CA", 2, true)

	f.leafKey = mustECDSAKey(t)
	f.leafCert = signedCert(t, f.interCert, f.interKey, f.leafKey, "Test PCK Leaf", 3, false)

	f.attestKey = mustECDSAKey(t)
	f.attestRaw = append(f.attestKey.PublicKey.X.FillBytes(make([]byte, 32)), f.attestKey.PublicKey.Y.FillBytes(make([]byte, 32))...)
	f.authData = []byte("qe-auth-data")

	boundDigest := sha256.Sum256(append(append([]byte{}, f.attestRaw...), f.authData...))
	reportBody := make([]byte, 64)
	copy(reportBody[:32], boundDigest[:])
	f.reportBody = reportBody

	sig, err := ecdsa.SignASN1(rand.Reader, f.leafKey, hashSHA256(f.reportBody))
	if err != nil {
		t.Fatalf("signing QE report body: %v", err)
	}
	f.qeSignature = sig

	f.quoteBody = []byte("tdx-quote-header-and-td-report-bytes")
	quoteSig, err := ecdsa.SignASN1(rand.Reader, f.attestKey, hashSHA256(f.quoteBody))
	if err != nil {
		t.Fatalf("signing quote body: %v", err)
	}

	// Wire-provided "root": a forged root the chain carries but that
	// must be replaced before validation, per step 2 of the algorithm.
	forgedRootKey := mustECDSAKey(t)
	forgedRoot := selfSignedCA(t, forgedRootKey, "Forged Root", 99)

	qeReport := &QeReportCertificationData{
		CertificationData: CertificationData{
			Kind:        CertificationDataPckCertChain,
			PckChainPEM: pemEncode(f.leafCert, f.interCert, forgedRoot),
		},
		ReportBody:         f.reportBody,
		Signature:          f.qeSignature,
		AuthenticationData: f.authData,
	}

	f.quoteSigData = QuoteSignatureData{
		QuoteSignature:      quoteSig,
		ECDSAAttestationKey: f.attestRaw,
		CertificationData: CertificationData{
			Kind:     CertificationDataQeReport,
			QeReport: qeReport,
		},
	}
	f.quote = &Quote{Body: f.quoteBody, SignatureData: f.quoteSigData}
	return f
}

func TestTdxChainVerifier_ValidQuote(t *testing.T) {
	f := buildFixture(t)
	v := NewTdxChainVerifier().WithTrustedRoot(f.rootCert)
	_, err := v.Verify(f.quote)
	if err != nil {
		t.Fatalf("expected valid quote to verify, got: %v", err)
	}
}

// Invariant 6: substituting a forged wire-provided root still succeeds as
// long as the trusted root actually signed the intermediate; replacing the
// intermediate fails.
func TestTdxChainVerifier_ForgedWireRootSubstituted(t *testing.T) {
	f := buildFixture(t) // already carries a forged wire root by construction
	v := NewTdxChainVerifier().WithTrustedRoot(f.rootCert)
	_, err := v.Verify(f.quote)
	if err != nil {
		t.Fatalf("expected wire-root substitution to still verify, got: %v", err)
	}
}

func TestTdxChainVerifier_TamperedIntermediateFails(t *testing.T) {
	f := buildFixture(t)

	otherKey := mustECDSAKey(t)
	otherRootCert := selfSignedCA(t, otherKey, "Unrelated Root", 42)
	unrelatedInterKey := mustECDSAKey(t)
	unrelatedInter := signedCert(t, otherRootCert, otherKey, unrelatedInterKey, "Unrelated CA", 43, true)

	forgedRootKey := mustECDSAKey(t)
	forgedRoot := selfSignedCA(t, forgedRootKey, "Forged Root", 99)

	f.quote.SignatureData.CertificationData.QeReport.CertificationData.PckChainPEM =
		pemEncode(f.leafCert, unrelatedInter, forgedRoot)

	v := NewTdxChainVerifier().WithTrustedRoot(f.rootCert)
	_, err := v.Verify(f.quote)
	if err == nil {
		t.Fatal("expected tampered intermediate to fail chain verification")
	}
}

// Invariant 7: mutating a single bit of the attestation key or the
// authentication data breaks the SHA-256 binding check.
func TestTdxChainVerifier_AttestationKeyBindingMismatch(t *testing.T) {
	f := buildFixture(t)
	tampered := append([]byte{}, f.quoteSigData.ECDSAAttestationKey...)
	tampered[0] ^= 0x01
	f.quote.SignatureData.ECDSAAttestationKey = tampered

	v := NewTdxChainVerifier().WithTrustedRoot(f.rootCert)
	_, err := v.Verify(f.quote)
	if err == nil || !strings.Contains(err.Error(), "not bound to quoting enclave report") {
		t.Fatalf("expected binding mismatch error, got: %v", err)
	}
}

func TestTdxChainVerifier_AuthDataMismatch(t *testing.T) {
	f := buildFixture(t)
	tampered := append([]byte{}, f.authData...)
	tampered[0] ^= 0x01
	f.quote.SignatureData.CertificationData.QeReport.AuthenticationData = tampered

	v := NewTdxChainVerifier().WithTrustedRoot(f.rootCert)
	_, err := v.Verify(f.quote)
	if err == nil || !strings.Contains(err.Error(), "not bound to quoting enclave report") {
		t.Fatalf("expected binding mismatch error, got: %v", err)
	}
}

// Scenario S3: a certificate in the chain signed with RSA-SHA256 instead of
// ECDSA-P256/SHA-256 is rejected by verifyECDSACertSignature with an
// "unsupported signature algorithm" error.
func TestVerifyECDSACertSignature_RejectsRSA(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	rootKey := mustECDSAKey(t)
	rootCert := selfSignedCA(t, rootKey, "RSA Test Root", 1)

	tmpl := &x509.Certificate{
		SerialNumber:       big.NewInt(2),
		Subject:            pkix.Name{CommonName: "RSA Signed Leaf"},
		NotBefore:          time.Unix(1700000000, 0),
		NotAfter:           time.Unix(2200000000, 0),
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &rsaKey.PublicKey, rsaKey)
	if err != nil {
		t.Fatalf("creating RSA-signed cert: %v", err)
	}
	rsaSignedCert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsing RSA-signed cert: %v", err)
	}

	err = verifyECDSACertSignature(rootCert, rsaSignedCert)
	if err == nil || !strings.Contains(err.Error(), "unsupported signature algorithm") {
		t.Fatalf("expected unsupported signature algorithm error, got: %v", err)
	}
}

func TestTdxChainVerifier_WrongCertificationDataKind(t *testing.T) {
	f := buildFixture(t)
	f.quote.SignatureData.CertificationData.Kind = CertificationDataPckCertChain
	f.quote.SignatureData.CertificationData.QeReport = nil

	v := NewTdxChainVerifier().WithTrustedRoot(f.rootCert)
	_, err := v.Verify(f.quote)
	if err == nil || !strings.Contains(err.Error(), "wrong type of certification data") {
		t.Fatalf("expected certification-data-kind error, got: %v", err)
	}
}
