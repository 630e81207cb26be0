// Copyright 2025 Certen Protocol
//
// Wire types for an Intel TDX attestation quote, scoped to the fields the
// PCK chain verification algorithm needs. Real DCAP quote parsing (ECDSA
// quote header, TD report body layout, cert-data type tags) is owned by a
// dedicated quote-parsing library upstream of this package; QuoteWrapper
// here models exactly what verify.go consumes.

package tdx

// CertificationDataKind discriminates the variants of CertificationData
// that can appear inside a quote's signature data. Only
// CertificationDataQeReport is accepted by TdxChainVerifier; any other kind
// fails verification at step 1.
type CertificationDataKind int

const (
	CertificationDataUnknown CertificationDataKind = iota
	CertificationDataQeReport
	CertificationDataPckCertChain
)

// CertificationData is a tagged union over the certification-data variants
// a quote's signature data may carry. Exactly one of the Kind-selected
// fields is meaningful.
type CertificationData struct {
	Kind CertificationDataKind

	// QeReport is populated when Kind == CertificationDataQeReport.
	QeReport *QeReportCertificationData

	// PckChainPEM is populated when Kind == CertificationDataPckCertChain:
	// a PEM-encoded PCK certificate chain, leaf first, root last.
	PckChainPEM []byte
}

// QeReportCertificationData binds a Quoting Enclave report to a PCK
// certificate chain: the report is signed by the PCK leaf, and the report's
// report_data field binds the attestation key used to sign the outer quote.
type QeReportCertificationData struct {
	// CertificationData nests the PCK chain that must certify the PCK
	// leaf used to sign ReportBody.
	CertificationData CertificationData

	// ReportBody is the raw bytes of the QE report body that Signature
	// was computed over.
	ReportBody []byte

	// Signature is the PCK leaf's ECDSA-P256/SHA-256 signature (ASN.1 DER)
	// over ReportBody.
	Signature []byte

	// AuthenticationData is additional data the QE included when binding
	// the attestation key; concatenated after the attestation key before
	// hashing in step 4.
	AuthenticationData []byte
}

// EnclaveReportBody is the decoded form of a QE report body, reduced to the
// one field the binding check needs.
type EnclaveReportBody struct {
	// ReportData is a fixed 64-byte field. Bytes [0:32] must equal
	// SHA-256(attestation_key || authentication_data); bytes [32:64] must
	// be all zero.
	ReportData [64]byte
}

// QuoteSignatureData is the parsed signature section of a TDX quote.
type QuoteSignatureData struct {
	// QuoteSignature is the ECDSA-P256/SHA-256 signature (ASN.1 DER) over
	// the quote's header-and-body bytes, produced with the attestation
	// key.
	QuoteSignature []byte

	// ECDSAAttestationKey is the raw, uncompressed SEC1 point (64 bytes:
	// 32-byte X followed by 32-byte Y, no 0x04 prefix) of the ephemeral
	// attestation key used to sign the quote.
	ECDSAAttestationKey []byte

	// CertificationData carries the QE report that certifies
	// ECDSAAttestationKey.
	CertificationData CertificationData
}

// Quote is a minimal TDX attestation quote: the signed body bytes plus the
// signature section that authenticates them.
type Quote struct {
	// Body is the exact byte range (quote header concatenated with the TD
	// report) that QuoteSignatureData.QuoteSignature was computed over.
	Body []byte

	SignatureData QuoteSignatureData
}

// QuoteDataBytes returns the bytes the quote signature was computed over.
func (q *Quote) QuoteDataBytes() []byte {
	return q.Body
}
