// Copyright 2025 Certen Protocol

package attestation

import "errors"

// Sentinel protocol errors. These are structural failures of the handshake
// contract, distinct from verification failures (which are recorded inside
// a VerifierResult/PeerAttestationVerdict rather than returned as errors).
var (
	// ErrAlreadyIngested is returned by PutIncomingMessage once a verdict
	// has already been computed. The spec leaves open whether the source's
	// re-ingest path is reachable in practice; this implementation rejects
	// it outright rather than silently appending to the transcript a second
	// time, since two peers must agree on the binding token bit-for-bit.
	ErrAlreadyIngested = errors.New("attestation: duplicate ingress after verdict already computed")

	// ErrNotComplete is returned by TakeAttestationState when no verdict
	// has been computed yet.
	ErrNotComplete = errors.New("attestation is not complete")

	// ErrAlreadyFinalized is returned by TakeAttestationState on any call
	// after the first.
	ErrAlreadyFinalized = errors.New("attestation: handler already finalized")

	// ErrIDMismatch is returned, wrapped, by NewClientHandler and
	// NewServerHandler when an assertion generator returns an assertion
	// whose ID differs from the generator's own ID().
	ErrIDMismatch = errors.New("attestation: component reported an ID different from its registration")
)
