// Copyright 2025 Certen Protocol
//
// Ed25519AssertionGenerator is the one shipped AssertionGenerator/Attester:
// it signs a self-assertion and, later, the session transcript with the
// same Ed25519 key. It implements exactly the surface the handshake core
// calls — ID, Generate, Quote, SignTranscript — rather than a pluggable
// multi-scheme strategy layer with signature aggregation and validator
// consensus, since nothing in this package needs either.

package attestation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// ed25519AssertionDomain separates a bare self-assertion signature from
	// a transcript-binding one, so a signature produced for one purpose
	// cannot be replayed as the other.
	ed25519AssertionDomain = "ATTESTATION_ASSERTION_V1"
	ed25519BindingDomain   = "ATTESTATION_BINDING_V1"
)

// ed25519Message is the canonical payload an Ed25519AssertionGenerator
// signs, domain-separated and hashed before signing.
type ed25519Message struct {
	AssertionID    string `json:"assertion_id"`
	SessionContext []byte `json:"session_context,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

// Ed25519Assertion is the wire content of a self-assertion or evidence
// payload: the signer's public key, the signature, and the message signed.
type Ed25519Assertion struct {
	PublicKey []byte         `json:"public_key"`
	Signature []byte         `json:"signature"`
	Message   ed25519Message `json:"message"`
}

// Ed25519AssertionGenerator signs self-assertions and session transcripts
// with a single Ed25519 key.
type Ed25519AssertionGenerator struct {
	id         string
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewEd25519AssertionGenerator generates a fresh Ed25519 key pair and
// returns a generator backing attestation ID id.
func NewEd25519AssertionGenerator(id string) (*Ed25519AssertionGenerator, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ed25519 assertion generator %s: generate key: %w", id, err)
	}
	return &Ed25519AssertionGenerator{id: id, privateKey: priv, publicKey: pub}, nil
}

// ID implements AssertionGenerator and Attester.
func (g *Ed25519AssertionGenerator) ID() string { return g.id }

// Generate implements AssertionGenerator: it signs a bare self-assertion,
// with no session context yet, and returns it with this generator as the
// BindingSigner that re-signs the eventual transcript.
func (g *Ed25519AssertionGenerator) Generate(_ context.Context) (*BindableAssertion, error) {
	content, err := g.signAssertion(nil)
	if err != nil {
		return nil, fmt.Errorf("ed25519 assertion generator %s: %w", g.id, err)
	}
	return &BindableAssertion{
		Assertion: Assertion{ID: g.id, Content: content},
		Signer:    g,
	}, nil
}

// Quote implements Attester: the same self-signed assertion doubles as
// evidence, for a handler that wants a uniform self-attested identity for
// both evidence and assertions.
func (g *Ed25519AssertionGenerator) Quote(_ context.Context) (*Evidence, error) {
	content, err := g.signAssertion(nil)
	if err != nil {
		return nil, fmt.Errorf("ed25519 attester %s: %w", g.id, err)
	}
	return &Evidence{ID: g.id, Content: content}, nil
}

// SignTranscript implements BindingSigner: it signs the session transcript
// under the binding domain, distinct from the assertion domain.
func (g *Ed25519AssertionGenerator) SignTranscript(transcript []byte) ([]byte, error) {
	domainMsg, _, err := g.domainMessage(transcript, ed25519BindingDomain)
	if err != nil {
		return nil, fmt.Errorf("ed25519 sign transcript for %s: %w", g.id, err)
	}
	return ed25519.Sign(g.privateKey, domainMsg), nil
}

// VerifyAssertion checks a self-assertion's signature against its own
// embedded public key and message.
func VerifyAssertion(content []byte) (*Ed25519Assertion, error) {
	var assertion Ed25519Assertion
	if err := json.Unmarshal(content, &assertion); err != nil {
		return nil, fmt.Errorf("decoding ed25519 assertion: %w", err)
	}
	domainMsg, err := hashAndSeparate(assertion.Message, ed25519AssertionDomain)
	if err != nil {
		return nil, fmt.Errorf("hashing ed25519 assertion message: %w", err)
	}
	if len(assertion.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key size: %d", len(assertion.PublicKey))
	}
	if !ed25519.Verify(assertion.PublicKey, domainMsg, assertion.Signature) {
		return nil, fmt.Errorf("ed25519 assertion signature verification failed")
	}
	return &assertion, nil
}

func (g *Ed25519AssertionGenerator) signAssertion(sessionContext []byte) ([]byte, error) {
	domainMsg, msg, err := g.domainMessage(sessionContext, ed25519AssertionDomain)
	if err != nil {
		return nil, err
	}
	signature := ed25519.Sign(g.privateKey, domainMsg)
	assertion := Ed25519Assertion{PublicKey: []byte(g.publicKey), Signature: signature, Message: msg}
	return json.Marshal(assertion)
}

func (g *Ed25519AssertionGenerator) domainMessage(sessionContext []byte, domain string) ([]byte, ed25519Message, error) {
	msg := ed25519Message{
		AssertionID:    g.id,
		SessionContext: sessionContext,
		Timestamp:      time.Now().UTC().Unix(),
	}
	domainMsg, err := hashAndSeparate(msg, domain)
	return domainMsg, msg, err
}

func hashAndSeparate(msg ed25519Message, domain string) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	messageHash := sha256.Sum256(data)
	buf := make([]byte, 0, len(domain)+len(messageHash))
	buf = append(buf, domain...)
	buf = append(buf, messageHash[:]...)
	domainHash := sha256.Sum256(buf)
	return domainHash[:], nil
}
