// Copyright 2025 Certen Protocol
//
// BindingTokenSerializer: deterministic encoding of an ID-keyed assertion
// map into the byte string mixed into the outer handshake transcript.
//
// Per the source this was distilled from, each entry contributes
// encode(id) + ":" + content + "|", where encode(id) is the same
// length-delimited wire encoding used for a protobuf string field: a
// base-128 varint byte length followed by the raw UTF-8 bytes. This is
// deliberately NOT Go's own encoding/binary varint (which is also LEB128 for
// unsigned integers and would in fact produce the same bytes for the length
// prefix here) — it is spelled out by hand below so the continuation-bit
// convention matches the protobuf wire format byte for byte regardless of
// which helper a future maintainer reaches for.

package attestation

import "sort"

// BindingTokenSerializer serializes an assertion map in ascending ID order.
type BindingTokenSerializer struct{}

// Serialize returns the deterministic byte concatenation of assertions,
// visited in ascending ID order.
func (BindingTokenSerializer) Serialize(assertions map[string]Assertion) []byte {
	ids := make([]string, 0, len(assertions))
	for id := range assertions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []byte
	for _, id := range ids {
		out = append(out, encodeID(id)...)
		out = append(out, ':')
		out = append(out, assertions[id].Content...)
		out = append(out, '|')
	}
	return out
}

// SerializeBindable is a convenience wrapper over a BindableAssertion map.
func (s BindingTokenSerializer) SerializeBindable(assertions map[string]BindableAssertion) []byte {
	plain := make(map[string]Assertion, len(assertions))
	for id, a := range assertions {
		plain[id] = a.Assertion
	}
	return s.Serialize(plain)
}

// encodeID applies the protobuf length-delimited string wire encoding: a
// base-128 varint of len(id) followed by the raw bytes.
func encodeID(id string) []byte {
	out := appendVarint(nil, uint64(len(id)))
	return append(out, id...)
}

// appendVarint appends v to buf using protobuf's base-128 varint encoding
// (little-endian groups of 7 bits, high bit set on every byte but the last).
func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}
