// Copyright 2025 Certen Protocol
//
// TdxChainVerifier validates an Intel TDX attestation quote's PCK
// certificate chain, the Quoting Enclave report it certifies, the binding
// between that report and the quote's ephemeral attestation key, and
// finally the quote signature itself. It is stateless and deterministic:
// the same quote and trusted root always produce the same result.

package tdx

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
)

// StepResult is the outcome of one step of TdxChainVerifier.Verify.
type StepResult struct {
	Passed bool
	Reason string
}

func passed() StepResult              { return StepResult{Passed: true} }
func failed(reason string) StepResult { return StepResult{Passed: false, Reason: reason} }

// VerificationReport is the structured outcome of TdxChainVerifier.Verify,
// one field per step of the algorithm, following the same layered-report
// idiom as confidentialspace.ConfidentialSpacePolicy.Verify: every step that ran gets a
// result, so a caller can render a full diagnostic even though a quote
// failure is fatal to the overall verdict.
type VerificationReport struct {
	CertificationDataKind StepResult
	ChainVerification     StepResult
	QeReportSignature     StepResult
	AttestationKeyBinding StepResult
	QuoteSignature        StepResult
}

// Passed reports whether every step in the report succeeded.
func (r *VerificationReport) Passed() bool {
	return r.CertificationDataKind.Passed && r.ChainVerification.Passed &&
		r.QeReportSignature.Passed && r.AttestationKeyBinding.Passed && r.QuoteSignature.Passed
}

// TdxChainVerifier verifies TDX quotes against a trusted PCK root.
type TdxChainVerifier struct {
	trustedRoot *x509.Certificate
}

// NewTdxChainVerifier returns a verifier that substitutes DefaultPckRoot for
// the wire-provided chain root.
func NewTdxChainVerifier() *TdxChainVerifier {
	return &TdxChainVerifier{trustedRoot: DefaultPckRoot}
}

// WithTrustedRoot overrides the trusted PCK root, for tests that need to
// verify a chain signed by a locally generated root rather than the
// compiled-in Intel one.
func (v *TdxChainVerifier) WithTrustedRoot(root *x509.Certificate) *TdxChainVerifier {
	return &TdxChainVerifier{trustedRoot: root}
}

// Verify runs the five-step PCK chain and quote-signature validation
// algorithm against quote. It always returns a *VerificationReport
// recording every step that ran; err is non-nil, with a descriptive
// reason, iff the report did not fully pass. A step after the first
// failure is left at its zero value (not attempted).
func (v *TdxChainVerifier) Verify(quote *Quote) (*VerificationReport, error) {
	report := &VerificationReport{}
	sigData := quote.SignatureData

	// Step 1: signature data must carry a QE report certification.
	reportCert := sigData.CertificationData.QeReport
	if sigData.CertificationData.Kind != CertificationDataQeReport || reportCert == nil {
		report.CertificationDataKind = failed("signature data contains the wrong type of certification data")
		return report, fmt.Errorf("tdx: %s", report.CertificationDataKind.Reason)
	}
	report.CertificationDataKind = passed()

	// Step 2: validate the PCK chain, trusted-root substituted, and
	// extract the leaf certificate.
	pckLeaf, err := v.verifyQuoteCertChainAndExtractLeaf(reportCert.CertificationData)
	if err != nil {
		report.ChainVerification = failed(err.Error())
		return report, fmt.Errorf("tdx: verifying quote cert chain: %w", err)
	}
	report.ChainVerification = passed()

	// Step 3: the QE report must be signed by the PCK leaf.
	pckKey, err := extractECDSAVerifyingKey(pckLeaf)
	if err == nil && !ecdsa.VerifyASN1(pckKey, hashSHA256(reportCert.ReportBody), reportCert.Signature) {
		err = fmt.Errorf("QE report signature verification failed")
	}
	if err != nil {
		report.QeReportSignature = failed(err.Error())
		return report, fmt.Errorf("tdx: %w", err)
	}
	report.QeReportSignature = passed()

	// Step 4: the attestation key must be bound to the QE report.
	qeReport, err := parseEnclaveReportBody(reportCert.ReportBody)
	if err != nil {
		report.AttestationKeyBinding = failed(err.Error())
		return report, fmt.Errorf("tdx: parsing enclave report body: %w", err)
	}
	keyBindingData := append(append([]byte{}, sigData.ECDSAAttestationKey...), reportCert.AuthenticationData...)
	wantDigest := hashSHA256(keyBindingData)
	var zero [32]byte
	switch {
	case !bytes.Equal(wantDigest, qeReport.ReportData[:32]):
		report.AttestationKeyBinding = failed("attestation key is not bound to quoting enclave report")
		return report, fmt.Errorf("tdx: %s", report.AttestationKeyBinding.Reason)
	case !bytes.Equal(qeReport.ReportData[32:], zero[:]):
		report.AttestationKeyBinding = failed("unexpected data in quoting enclave report data")
		return report, fmt.Errorf("tdx: %s", report.AttestationKeyBinding.Reason)
	}
	report.AttestationKeyBinding = passed()

	// Step 5: the quote body must be signed by the attestation key.
	attestationKey, err := decodeUntaggedECDSAPoint(sigData.ECDSAAttestationKey)
	if err == nil && !ecdsa.VerifyASN1(attestationKey, hashSHA256(quote.QuoteDataBytes()), sigData.QuoteSignature) {
		err = fmt.Errorf("quote signature verification failed")
	}
	if err != nil {
		report.QuoteSignature = failed(err.Error())
		return report, fmt.Errorf("tdx: %w", err)
	}
	report.QuoteSignature = passed()

	return report, nil
}

// verifyQuoteCertChainAndExtractLeaf parses a PEM-encoded PCK chain, strips
// the wire-provided root and substitutes the trusted one, verifies each
// certificate is signed by its successor, and returns the leaf.
func (v *TdxChainVerifier) verifyQuoteCertChainAndExtractLeaf(data CertificationData) (*x509.Certificate, error) {
	if data.Kind != CertificationDataPckCertChain {
		return nil, fmt.Errorf("certification data is not a PCK certificate chain")
	}
	certs, err := parsePEMChain(data.PckChainPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate chain: %w", err)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("certificate chain is empty")
	}
	// Replace the wire-provided root certificate with the trusted one.
	certs = certs[:len(certs)-1]
	if v.trustedRoot == nil {
		return nil, fmt.Errorf("no trusted PCK root configured")
	}
	certs = append(certs, v.trustedRoot)

	if len(certs) == 0 {
		return nil, fmt.Errorf("certificate chain is empty")
	}
	leaf := certs[0]
	signee := certs[0]
	for _, signer := range certs[1:] {
		if err := verifyECDSACertSignature(signer, signee); err != nil {
			return nil, fmt.Errorf("verifying cert signature: %w", err)
		}
		signee = signer
	}
	return leaf, nil
}

// verifyECDSACertSignature checks that signee is signed by signer using
// ECDSA-P256 with SHA-256. Any other signature algorithm is rejected.
func verifyECDSACertSignature(signer, signee *x509.Certificate) error {
	if signee.SignatureAlgorithm != x509.ECDSAWithSHA256 {
		return fmt.Errorf("unsupported signature algorithm: %v", signee.SignatureAlgorithm)
	}
	key, err := extractECDSAVerifyingKey(signer)
	if err != nil {
		return err
	}
	if !ecdsa.VerifyASN1(key, hashSHA256(signee.RawTBSCertificate), signee.Signature) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// extractECDSAVerifyingKey returns cert's public key as an ECDSA P-256
// verifying key, failing if the certificate does not carry one.
func extractECDSAVerifyingKey(cert *x509.Certificate) (*ecdsa.PublicKey, error) {
	key, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("could not parse ECDSA P256 public key")
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("could not parse ECDSA P256 public key")
	}
	return key, nil
}

// decodeUntaggedECDSAPoint builds an ECDSA P-256 public key from a raw,
// untagged SEC1 point: 32-byte X followed by 32-byte Y, with no leading
// 0x04 byte.
func decodeUntaggedECDSAPoint(raw []byte) (*ecdsa.PublicKey, error) {
	if len(raw) != 64 {
		return nil, fmt.Errorf("expected 64-byte uncompressed point, got %d bytes", len(raw))
	}
	x := new(big.Int).SetBytes(raw[:32])
	y := new(big.Int).SetBytes(raw[32:])
	curve := elliptic.P256()
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("point is not on curve P-256")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// parseEnclaveReportBody extracts the report_data field from a raw QE
// report body. The last 64 bytes of an SGX-format report body are
// report_data; this package does not need any other field.
func parseEnclaveReportBody(reportBody []byte) (*EnclaveReportBody, error) {
	if len(reportBody) < 64 {
		return nil, fmt.Errorf("report body too short: %d bytes", len(reportBody))
	}
	var out EnclaveReportBody
	copy(out.ReportData[:], reportBody[len(reportBody)-64:])
	return &out, nil
}

func hashSHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func parsePEMCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

// parsePEMChain parses a sequence of concatenated PEM certificate blocks,
// leaf first, in the order they appear.
func parsePEMChain(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates found in PEM data")
	}
	return certs, nil
}
