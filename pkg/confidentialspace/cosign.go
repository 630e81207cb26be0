// Copyright 2025 Certen Protocol
//
// Workload endorsement verification: a cosign-signed in-toto provenance
// statement, carried as a DSSE envelope, binding a container image digest
// to a developer's signature and (optionally) a Rekor transparency-log
// entry. This implementation is not grounded on in-toto-golang or
// go-securesystemslib — only their go.mod manifest, not source, was
// available — and instead implements the documented DSSE Pre-Authentication
// Encoding and in-toto statement JSON shape directly.

package confidentialspace

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
)

// dssePayloadType is the only payload type this verifier accepts.
const dssePayloadType = "application/vnd.in-toto+json"

// DSSESignature is one signature entry in a DSSE envelope.
type DSSESignature struct {
	KeyID string `json:"keyid,omitempty"`
	Sig   []byte `json:"sig"`
}

// SignedStatement is a DSSE envelope carrying an in-toto provenance
// statement, as produced by `cosign attest`.
type SignedStatement struct {
	PayloadType string          `json:"payloadType"`
	Payload     []byte          `json:"payload"` // raw in-toto statement JSON
	Signatures  []DSSESignature `json:"signatures"`

	// RekorLogID and RekorSET are populated when the statement carries an
	// embedded Rekor transparency-log bundle. Both empty means no bundle
	// was offered.
	RekorLogID string `json:"rekorLogID,omitempty"`
	RekorSET   []byte `json:"rekorSET,omitempty"`
}

// inTotoStatement is the subset of an in-toto v1 statement this verifier
// reads: the subject digests, used to correlate the endorsement with the
// image the attestation token reports running.
type inTotoStatement struct {
	Type    string           `json:"_type"`
	Subject []inTotoSubject  `json:"subject"`
	Predicate json.RawMessage `json:"predicate"`
}

type inTotoSubject struct {
	Name   string            `json:"name"`
	Digest map[string]string `json:"digest"`
}

// dssePAE computes the DSSE Pre-Authentication Encoding over payloadType
// and payload, per the DSSE spec: "DSSEv1" SP len(type) SP type SP
// len(body) SP body.
func dssePAE(payloadType string, payload []byte) []byte {
	var out []byte
	out = append(out, "DSSEv1 "...)
	out = append(out, strconv.Itoa(len(payloadType))...)
	out = append(out, ' ')
	out = append(out, payloadType...)
	out = append(out, ' ')
	out = append(out, strconv.Itoa(len(payload))...)
	out = append(out, ' ')
	out = append(out, payload...)
	return out
}

// verifyDSSESignature checks that at least one signature in stmt verifies
// against pub over the DSSE PAE of stmt's payload.
func verifyDSSESignature(stmt *SignedStatement, pub *ecdsa.PublicKey) error {
	if stmt.PayloadType != dssePayloadType {
		return fmt.Errorf("unexpected DSSE payload type %q", stmt.PayloadType)
	}
	if len(stmt.Signatures) == 0 {
		return fmt.Errorf("statement carries no signatures")
	}
	message := dssePAE(stmt.PayloadType, stmt.Payload)
	digest := sha256.Sum256(message)
	for _, sig := range stmt.Signatures {
		if ecdsa.VerifyASN1(pub, digest[:], sig.Sig) {
			return nil
		}
	}
	return fmt.Errorf("no signature verifies against the configured developer public key")
}

// verifyStatementSubject checks that the in-toto statement's subject list
// includes imageDigest (a "sha256:<hex>" reference), correlating the
// endorsement to the image the attestation token reports running. An empty
// imageDigest skips the subject check once the statement has parsed.
func verifyStatementSubject(payload []byte, imageDigest string) error {
	var stmt inTotoStatement
	if err := json.Unmarshal(payload, &stmt); err != nil {
		return fmt.Errorf("parsing in-toto statement: %w", err)
	}
	if imageDigest == "" {
		return nil
	}
	for _, subject := range stmt.Subject {
		if digest, ok := subject.Digest["sha256"]; ok && "sha256:"+digest == imageDigest {
			return nil
		}
	}
	return fmt.Errorf("no statement subject matches reported image digest %q", imageDigest)
}

// verifyWorkloadEndorsement runs the endorsement checks required by ref
// against stmt, producing a WorkloadEndorsementReport. ref is never nil
// here; callers skip this entirely for an unendorsed policy.
func verifyWorkloadEndorsement(stmt *SignedStatement, imageDigest string, ref *CosignReferenceValues) *WorkloadEndorsementReport {
	report := &WorkloadEndorsementReport{}

	if stmt == nil {
		report.StatementValidation = failed("no workload endorsement was presented")
		return report
	}
	if ref.DeveloperPublicKey == nil {
		report.StatementValidation = failed("no developer public key configured")
		return report
	}
	if err := verifyDSSESignature(stmt, ref.DeveloperPublicKey); err != nil {
		report.StatementValidation = failed(err.Error())
		return report
	}
	if err := verifyStatementSubject(stmt.Payload, imageDigest); err != nil {
		report.StatementValidation = failed(err.Error())
		return report
	}
	report.StatementValidation = passed()

	if ref.RequireRekor {
		rekor := passed()
		if stmt.RekorLogID == "" || len(stmt.RekorSET) == 0 {
			rekor = failed("statement does not carry a Rekor transparency-log bundle")
		}
		report.RekorVerification = &rekor
	}
	return report
}
