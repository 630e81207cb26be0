// Copyright 2025 Certen Protocol
//
// GCEAttester fetches a Confidential Space attestation token from the GCE
// instance metadata server, for use as the local side's Attester when a
// handshake handler is running on a Confidential Space VM.

package confidentialspace

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/url"

	"cloud.google.com/go/compute/metadata"

	"github.com/certen/attestation-core/pkg/attestation"
)

// metadataIdentityPath is the instance-metadata endpoint that returns a
// signed Confidential Space attestation token for the given audience and
// format.
const metadataIdentityPath = "instance/service-accounts/default/identity"

// GCEAttester produces Confidential Space evidence by requesting an
// attestation token from the local instance metadata server, bound to a
// locally held session public key.
type GCEAttester struct {
	id        string
	audience  string
	publicKey *ecdsa.PublicKey
	client    *metadata.Client
}

// NewGCEAttester returns an Attester registered under id (typically
// ConfidentialSpaceAttestationID) that requests a token for audience,
// binding sessionPublicKey into the nonce claim.
func NewGCEAttester(id, audience string, sessionPublicKey *ecdsa.PublicKey) *GCEAttester {
	return &GCEAttester{id: id, audience: audience, publicKey: sessionPublicKey, client: metadata.NewClient(nil)}
}

func (a *GCEAttester) ID() string { return a.id }

// Quote fetches a full-format identity token from the metadata server and
// packages it with the session public key as Presentation evidence.
func (a *GCEAttester) Quote(ctx context.Context) (*attestation.Evidence, error) {
	nonce := base64StdEncode(encodeUncompressedECDSAPoint(a.publicKey))
	suffix := fmt.Sprintf("%s?audience=%s&format=full&nonce=%s",
		metadataIdentityPath, url.QueryEscape(a.audience), url.QueryEscape(nonce))

	token, err := a.client.GetWithContext(ctx, suffix)
	if err != nil {
		return nil, fmt.Errorf("confidentialspace: fetching identity token: %w", err)
	}

	presentation := Presentation{Token: token, PublicKey: encodeUncompressedECDSAPoint(a.publicKey)}
	content, err := json.Marshal(presentation)
	if err != nil {
		return nil, fmt.Errorf("confidentialspace: encoding presentation: %w", err)
	}
	return &attestation.Evidence{ID: a.id, Content: content}, nil
}

func encodeUncompressedECDSAPoint(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, 65)
	out[0] = 0x04
	pub.X.FillBytes(out[1:33])
	pub.Y.FillBytes(out[33:65])
	return out
}
