// Copyright 2025 Certen Protocol
//
// VerifierRegistry holds, per attestation ID, the verifier and the
// session-binding-verifier provider invoked once that verifier succeeds.

package attestation

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Attester produces self-evidence for one attestation type. Pure; any I/O
// it performs is expected to stay local to the host's TEE.
type Attester interface {
	ID() string
	Quote(ctx context.Context) (*Evidence, error)
}

// Endorser may consult the just-generated evidence to select a matching
// endorsement chain. A handler configured with no endorser for an ID still
// sends the evidence, with Endorsements left nil.
type Endorser interface {
	ID() string
	Endorse(ctx context.Context, evidence *Evidence) (*Endorsements, error)
}

// AssertionGenerator returns a bindable assertion: a serializable payload
// plus a sealed capability to sign the session transcript later.
type AssertionGenerator interface {
	ID() string
	Generate(ctx context.Context) (*BindableAssertion, error)
}

// Verifier checks one (evidence, endorsements) pair against the reference
// values it was constructed with.
type Verifier interface {
	Verify(ctx context.Context, evidence *Evidence, endorsements *Endorsements) (AttestationResults, error)
}

// SessionBindingVerifier is the capability, derived from a successful
// attestation, that later verifies a signature tying the handshake
// transcript to the attested identity.
type SessionBindingVerifier interface {
	VerifyBinding(transcript, signature []byte) error
}

// SessionBindingVerifierProvider builds a SessionBindingVerifier from a
// successful VerifierResult. Consumed only for Success results.
type SessionBindingVerifierProvider interface {
	Create(result VerifierResult) (SessionBindingVerifier, error)
}

// VerifierRegistry is the peer-verification side of a handshake
// configuration: for each attestation ID it may verify, it holds the
// Verifier and (for IDs where verification can succeed) the
// SessionBindingVerifierProvider consulted afterwards.
//
// The registry itself is read-mostly after construction; the mutex guards
// against a caller registering IDs while a handshake is mid-flight, which
// the spec does not forbid outright but which this implementation treats
// as unsafe without serialization.
type VerifierRegistry struct {
	mu        sync.RWMutex
	verifiers map[string]Verifier
	providers map[string]SessionBindingVerifierProvider
}

// NewVerifierRegistry returns an empty registry.
func NewVerifierRegistry() *VerifierRegistry {
	return &VerifierRegistry{
		verifiers: make(map[string]Verifier),
		providers: make(map[string]SessionBindingVerifierProvider),
	}
}

// Register adds a verifier (and optionally a binding-verifier provider) for
// an attestation ID. Registering the same ID twice overwrites the prior
// entry.
func (r *VerifierRegistry) Register(id string, verifier Verifier, provider SessionBindingVerifierProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers[id] = verifier
	if provider != nil {
		r.providers[id] = provider
	}
}

// Verifier returns the verifier configured for id, if any.
func (r *VerifierRegistry) Verifier(id string) (Verifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.verifiers[id]
	return v, ok
}

// Provider returns the binding-verifier provider configured for id, if any.
func (r *VerifierRegistry) Provider(id string) (SessionBindingVerifierProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns the registered verifier IDs in ascending sorted order.
func (r *VerifierRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.verifiers))
	for id := range r.verifiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MergeJoin performs the sorted merge-join described in the spec's §4.3:
// for every ID in the union of the registry's configured verifiers and the
// received endorsed-evidence map, it produces exactly one VerifierResult.
// IDs are visited in ascending sorted order; the result is a map, so callers
// that need a deterministic order must sort its keys themselves.
func (r *VerifierRegistry) MergeJoin(ctx context.Context, received map[string]EndorsedEvidence) (map[string]VerifierResult, error) {
	r.mu.RLock()
	verifierIDs := make(map[string]struct{}, len(r.verifiers))
	for id := range r.verifiers {
		verifierIDs[id] = struct{}{}
	}
	r.mu.RUnlock()

	union := make(map[string]struct{}, len(verifierIDs)+len(received))
	for id := range verifierIDs {
		union[id] = struct{}{}
	}
	for id := range received {
		union[id] = struct{}{}
	}
	ids := make([]string, 0, len(union))
	for id := range union {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make(map[string]VerifierResult, len(ids))
	for _, id := range ids {
		ee, haveEvidence := received[id]
		verifier, haveVerifier := r.Verifier(id)

		switch {
		case haveVerifier && haveEvidence && ee.Complete():
			res, err := verifier.Verify(ctx, ee.Evidence, ee.Endorsements)
			if err != nil {
				results[id] = NewVerifierFailure(ee.Evidence, AttestationResults{
					Status: StatusGenericFailure,
					Reason: fmt.Sprintf("verifier error: %v", err),
				})
				continue
			}
			if res.Status == StatusSuccess {
				results[id] = NewVerifierSuccess(ee.Evidence, res)
			} else {
				results[id] = NewVerifierFailure(ee.Evidence, res)
			}
		case haveVerifier && haveEvidence && !ee.Complete():
			results[id] = NewVerifierFailure(ee.Evidence, AttestationResults{
				Status: StatusGenericFailure,
				Reason: "both evidence and endorsements need to be provided",
			})
		case haveVerifier && !haveEvidence:
			results[id] = NewVerifierMissing()
		case !haveVerifier && haveEvidence:
			results[id] = NewVerifierUnverified(ee.Evidence)
		}
	}
	return results, nil
}
