// Copyright 2025 Certen Protocol
//
// Parses and validates the Confidential Space attestation JWT: the x5c
// header names the signing certificate chain, and the EAT-shaped claims
// name the debug status and session-binding nonce.

package confidentialspace

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// claims is the subset of a Confidential Space EAT-format JWT this
// verifier inspects.
type claims struct {
	jwt.RegisteredClaims

	// EATNonce carries the caller-supplied session-binding material — the
	// offered public key, base64-encoded, per the EAT nonce convention.
	EATNonce string `json:"eat_nonce"`

	// DebugStatus is "disabled-since-boot" for a production image and
	// some other value (e.g. "enabled") for a debug image.
	DebugStatus string `json:"dbgstat"`

	// ImageDigest is the sha256 digest of the running container image,
	// used to correlate against a workload endorsement's subject.
	ImageDigest string `json:"image_digest"`
}

const productionDebugStatus = "disabled-since-boot"

// parsedToken is the result of parseToken: validated claims plus the x5c
// certificate chain the token was signed with.
type parsedToken struct {
	claims claims
	chain  []*x509.Certificate
}

// parseToken parses and signature-verifies tokenString against the public
// key in its own x5c header leaf certificate. ParseWithClaims also rejects
// expired and not-yet-valid tokens, judged by the current time unless a
// WithTimeFunc option is passed via opts.
func parseToken(tokenString string, opts ...jwt.ParserOption) (*parsedToken, error) {
	var chain []*x509.Certificate

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		raw, ok := token.Header["x5c"].([]interface{})
		if !ok || len(raw) == 0 {
			return nil, fmt.Errorf("token header carries no x5c certificate chain")
		}
		for _, entry := range raw {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("x5c entry is not a string")
			}
			der, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("decoding x5c entry: %w", err)
			}
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return nil, fmt.Errorf("parsing x5c certificate: %w", err)
			}
			chain = append(chain, cert)
		}
		return chain[0].PublicKey, nil
	}

	parser := jwt.NewParser(append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256", "PS256"}),
	}, opts...)...)

	parsedClaims := &claims{}
	_, err := parser.ParseWithClaims(tokenString, parsedClaims, keyFunc)
	if err != nil {
		return nil, fmt.Errorf("parsing attestation token: %w", err)
	}
	return &parsedToken{claims: *parsedClaims, chain: chain}, nil
}
