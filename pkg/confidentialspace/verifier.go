// Copyright 2025 Certen Protocol
//
// ConfidentialSpacePolicy wraps immutable reference values — a trusted root
// certificate and optional cosign endorsement requirements — behind a
// single Verify entry point, following the layered-policy naming idiom
// (reference values in, a structured multi-field result out) used
// throughout the original attestation-verification policies this package
// is grounded on.

package confidentialspace

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/certen/attestation-core/pkg/attestation"
)

func base64StdEncode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// ErrUnsupportedReferenceKind is returned when a policy is constructed from
// a ContainerImageReference: resolving an image reference into concrete
// cosign reference values (e.g. by querying a registry) is not implemented.
var ErrUnsupportedReferenceKind = errors.New("confidentialspace: container image reference is not yet supported")

// ErrNoRootCertificate is returned when New/NewUnendorsed is given empty
// root certificate PEM.
var ErrNoRootCertificate = errors.New("confidentialspace: root certificate is required")

// Presentation is the evidence payload a Confidential Space Attester
// produces: the attestation JWT plus the session-binding public key it
// claims to bind, packaged together because the handshake core's Verifier
// contract does not otherwise expose the peer's assertions to a verifier.
type Presentation struct {
	Token     string `json:"token"`
	PublicKey []byte `json:"public_key"`
}

// ConfidentialSpacePolicy verifies a Confidential Space attestation token
// (and, if configured, a cosign workload endorsement) against fixed
// reference values.
type ConfidentialSpacePolicy struct {
	rootCertificate *x509.Certificate
	cosign          *CosignReferenceValues // nil: unendorsed policy
	clock           func() time.Time
}

// New returns a policy that requires both a valid Confidential Space token
// and a cosign workload endorsement satisfying cosignRef.
func New(rootCertificatePEM []byte, cosignRef CosignReferenceValues) (*ConfidentialSpacePolicy, error) {
	root, err := parseRootCertificateOrDefault(rootCertificatePEM)
	if err != nil {
		return nil, err
	}
	return &ConfidentialSpacePolicy{rootCertificate: root, cosign: &cosignRef, clock: time.Now}, nil
}

// NewUnendorsed returns a policy that verifies only the attestation token,
// reporting WorkloadEndorsement as nil (not attempted).
func NewUnendorsed(rootCertificatePEM []byte) (*ConfidentialSpacePolicy, error) {
	root, err := parseRootCertificateOrDefault(rootCertificatePEM)
	if err != nil {
		return nil, err
	}
	return &ConfidentialSpacePolicy{rootCertificate: root, clock: time.Now}, nil
}

// NewFromContainerImageReference always fails: resolving an image
// reference into reference values is out of scope.
func NewFromContainerImageReference(rootCertificatePEM []byte, ref ContainerImageReference) (*ConfidentialSpacePolicy, error) {
	return nil, ErrUnsupportedReferenceKind
}

func parseRootCertificateOrDefault(pemBytes []byte) (*x509.Certificate, error) {
	if len(pemBytes) == 0 {
		return nil, ErrNoRootCertificate
	}
	cert, err := parseFirstCertificate(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("confidentialspace: parsing root certificate: %w", err)
	}
	return cert, nil
}

// Verify runs the full Confidential Space verification algorithm:
// public-key binding, token validity/signature/issuer-chain, and (if this
// policy is endorsed) the workload endorsement.
func (p *ConfidentialSpacePolicy) Verify(presentation Presentation, endorsement *SignedStatement, verificationTime time.Time) (*VerificationReport, error) {
	report := &VerificationReport{}

	parsed, err := parseToken(presentation.Token, jwt.WithTimeFunc(func() time.Time { return verificationTime }))
	if err != nil {
		report.PublicKeyVerification = failed("could not parse attestation token")
		report.TokenReport.Verification = failed(err.Error())
		return report, fmt.Errorf("confidentialspace: %w", err)
	}

	report.PublicKeyVerification = verifyPublicKeyBinding(parsed.claims.EATNonce, presentation.PublicKey)
	report.TokenReport = buildTokenReport(parsed, p.rootCertificate, verificationTime)

	if p.cosign == nil {
		report.WorkloadEndorsement = nil
	} else {
		report.WorkloadEndorsement = verifyWorkloadEndorsement(endorsement, parsed.claims.ImageDigest, p.cosign)
	}

	if !report.Passed() {
		return report, fmt.Errorf("confidentialspace: attestation did not pass verification")
	}
	return report, nil
}

// verifyPublicKeyBinding checks that the token's EAT nonce claim equals the
// base64-standard encoding of the offered public key.
func verifyPublicKeyBinding(eatNonce string, publicKey []byte) StepResult {
	want := base64StdEncode(publicKey)
	if eatNonce == "" {
		return failed("token carries no binding nonce")
	}
	if eatNonce != want {
		return failed("token binding nonce does not match offered public key")
	}
	return passed()
}

func buildTokenReport(parsed *parsedToken, root *x509.Certificate, verificationTime time.Time) TokenReport {
	var report TokenReport

	if parsed.claims.DebugStatus == productionDebugStatus {
		report.ProductionImage = passed()
	} else {
		report.ProductionImage = failed(fmt.Sprintf("image is not production: dbgstat=%q", parsed.claims.DebugStatus))
	}

	report.Validity = passed() // parseToken already rejected expired/not-yet-valid tokens.

	report.Verification = passed() // parseToken already verified the signature against the x5c leaf.

	if err := verifyIssuerChain(parsed.chain, root, verificationTime); err != nil {
		report.IssuerReport = failed(err.Error())
	} else {
		report.IssuerReport = passed()
	}

	return report
}

// sessionBindingVerifier verifies a handshake transcript signature against
// the ECDSA P-256 public key a successful Confidential Space attestation
// bound.
type sessionBindingVerifier struct {
	publicKey *ecdsa.PublicKey
}

func (v *sessionBindingVerifier) VerifyBinding(transcript, signature []byte) error {
	digest := sha256.Sum256(transcript)
	if !ecdsa.VerifyASN1(v.publicKey, digest[:], signature) {
		return fmt.Errorf("confidentialspace: transcript binding signature verification failed")
	}
	return nil
}

// provider is the attestation.SessionBindingVerifierProvider for
// Confidential Space results: it decodes the public key carried in the
// successful VerifierResult's evidence.
type provider struct{}

// NewSessionBindingVerifierProvider returns the provider consulted after a
// successful Confidential Space verification to build the capability that
// checks the eventual transcript-binding signature.
func NewSessionBindingVerifierProvider() attestation.SessionBindingVerifierProvider {
	return provider{}
}

func (provider) Create(result attestation.VerifierResult) (attestation.SessionBindingVerifier, error) {
	if result.Evidence == nil {
		return nil, fmt.Errorf("confidentialspace: successful result carries no evidence")
	}
	var presentation Presentation
	if err := json.Unmarshal(result.Evidence.Content, &presentation); err != nil {
		return nil, fmt.Errorf("confidentialspace: decoding presentation: %w", err)
	}
	pub, err := decodeUncompressedECDSAPoint(presentation.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("confidentialspace: decoding session-binding public key: %w", err)
	}
	return &sessionBindingVerifier{publicKey: pub}, nil
}

// verifier adapts ConfidentialSpacePolicy into an attestation.Verifier: it
// decodes the Presentation evidence payload and the optional
// SignedStatement endorsement, then delegates to Policy.Verify.
type verifier struct {
	policy *ConfidentialSpacePolicy
}

// NewVerifier adapts policy into the handshake core's Verifier contract.
func NewVerifier(policy *ConfidentialSpacePolicy) attestation.Verifier {
	return &verifier{policy: policy}
}

func (v *verifier) Verify(_ context.Context, evidence *attestation.Evidence, endorsements *attestation.Endorsements) (attestation.AttestationResults, error) {
	if evidence == nil {
		return attestation.AttestationResults{Status: attestation.StatusGenericFailure, Reason: "no evidence presented"}, nil
	}
	var presentation Presentation
	if err := json.Unmarshal(evidence.Content, &presentation); err != nil {
		return attestation.AttestationResults{Status: attestation.StatusGenericFailure, Reason: fmt.Sprintf("decoding presentation: %v", err)}, nil
	}

	var stmt *SignedStatement
	if endorsements != nil && len(endorsements.Content) > 0 {
		stmt = &SignedStatement{}
		if err := json.Unmarshal(endorsements.Content, stmt); err != nil {
			return attestation.AttestationResults{Status: attestation.StatusGenericFailure, Reason: fmt.Sprintf("decoding endorsement: %v", err)}, nil
		}
	}

	report, err := v.policy.Verify(presentation, stmt, v.policy.clock())
	if err != nil {
		return attestation.AttestationResults{Status: attestation.StatusGenericFailure, Reason: err.Error()}, nil
	}
	return attestation.AttestationResults{Status: attestation.StatusSuccess, Reason: "ok"}, nil
}

func decodeUncompressedECDSAPoint(raw []byte) (*ecdsa.PublicKey, error) {
	if len(raw) != 65 || raw[0] != 0x04 {
		return nil, fmt.Errorf("expected 65-byte uncompressed SEC1 point")
	}
	x := new(big.Int).SetBytes(raw[1:33])
	y := new(big.Int).SetBytes(raw[33:65])
	curve := elliptic.P256()
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("point is not on curve P-256")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
