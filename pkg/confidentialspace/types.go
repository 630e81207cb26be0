// Copyright 2025 Certen Protocol
//
// Types for Confidential Space attestation verification: a GCP-issued JWT
// naming a running confidential VM's workload, verified against an x5c
// certificate chain, plus an optional cosign/in-toto workload endorsement
// binding the image digest to a developer's signature.

package confidentialspace

import (
	"crypto/ecdsa"
	"time"
)

// ConfidentialSpaceAttestationID is the well-known attestation ID this
// verifier is registered under in a VerifierRegistry.
const ConfidentialSpaceAttestationID = "c0bbb3a6-2256-4390-a342-507b6aecb7e1"

// CosignReferenceValues names the developer key (and, optionally, a Rekor
// transparency-log requirement) a workload's cosign endorsement must
// satisfy.
type CosignReferenceValues struct {
	// DeveloperPublicKey verifies the DSSE envelope signature over the
	// in-toto provenance statement.
	DeveloperPublicKey *ecdsa.PublicKey

	// RequireRekor requires the endorsement to carry a Rekor bundle (a
	// non-empty log ID and SET). The bundle's presence is checked; the SET
	// itself is not verified.
	RequireRekor bool
}

// ContainerImageReferenceKind discriminates ContainerImageReference. A
// policy cannot be built from a reference of any kind:
// NewFromContainerImageReference rejects it with ErrUnsupportedReferenceKind.
type ContainerImageReferenceKind int

const (
	ContainerImageReferenceUnspecified ContainerImageReferenceKind = iota
	ContainerImageReferenceDigest
)

// ContainerImageReference names a container image by registry reference
// rather than by embedding cosign reference values directly. Resolving a
// reference into reference values (e.g. by querying a registry for its
// cosign signature) is out of scope; policies constructed with one fail
// with ErrUnsupportedReferenceKind, mirroring the original implementation's
// explicit "not yet supported" branch.
type ContainerImageReference struct {
	Kind  ContainerImageReferenceKind
	Value string
}

// ReferenceValues groups the optional endorsement reference values of a
// policy. It carries no root certificate, and New/NewUnendorsed do not take
// it: they receive the root certificate PEM and CosignReferenceValues as
// separate arguments.
type ReferenceValues struct {
	// Cosign is nil for an unendorsed policy (ConfidentialSpacePolicy
	// built via NewUnendorsed).
	Cosign *CosignReferenceValues

	// ContainerImage, if set, is resolved via ContainerImageReference
	// instead of Cosign. Currently always rejected.
	ContainerImage *ContainerImageReference
}

// StepResult is the outcome of one independent verification step.
type StepResult struct {
	Passed bool
	Reason string
}

func passed() StepResult              { return StepResult{Passed: true} }
func failed(reason string) StepResult { return StepResult{Passed: false, Reason: reason} }

// TokenReport is the sub-report for the presented JWT: production-image
// status, validity window, signature verification, and the X.509 issuer
// chain.
type TokenReport struct {
	ProductionImage StepResult
	Validity        StepResult
	Verification    StepResult
	IssuerReport    StepResult
}

func (r *TokenReport) Passed() bool {
	return r.ProductionImage.Passed && r.Validity.Passed && r.Verification.Passed && r.IssuerReport.Passed
}

// WorkloadEndorsementReport is the sub-report for the optional cosign
// endorsement. Nil when the policy is unendorsed.
type WorkloadEndorsementReport struct {
	StatementValidation StepResult
	RekorVerification   *StepResult // nil when not required by policy
}

func (r *WorkloadEndorsementReport) Passed() bool {
	if r == nil {
		return true
	}
	if !r.StatementValidation.Passed {
		return false
	}
	if r.RekorVerification != nil && !r.RekorVerification.Passed {
		return false
	}
	return true
}

// VerificationReport is the full structured outcome of
// ConfidentialSpacePolicy.Verify.
type VerificationReport struct {
	PublicKeyVerification StepResult
	TokenReport           TokenReport
	WorkloadEndorsement   *WorkloadEndorsementReport // nil when the policy is unendorsed or the token could not be parsed
}

// Passed reports whether every sub-report that ran passed.
func (r *VerificationReport) Passed() bool {
	return r.PublicKeyVerification.Passed && r.TokenReport.Passed() && r.WorkloadEndorsement.Passed()
}

// PresentedAttestation is the evidence+endorsement pair a peer offers for
// Confidential Space verification.
type PresentedAttestation struct {
	// PublicKey is the session-binding public key the peer claims; it
	// must appear in the token's binding claim.
	PublicKey []byte

	// Token is the raw, compact-serialized Confidential Space attestation
	// JWT.
	Token string

	// Endorsement is the optional cosign-signed provenance statement. Nil
	// when the peer presents no endorsement.
	Endorsement *SignedStatement

	// VerificationTime is the time to evaluate the token's validity
	// window and the X.509 chain against. Callers pass the current time
	// in production and a fixed time in tests.
	VerificationTime time.Time
}
