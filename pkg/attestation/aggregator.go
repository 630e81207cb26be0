// Copyright 2025 Certen Protocol
//
// ResultsAggregator combines the per-ID VerifierResult map produced by the
// merge-join into a single PeerAttestationVerdict. The policy is
// strategy-injectable per the spec's §9 Open Question resolution: the
// source's aggregator field was referenced but not shown, so implementers
// are told to make it pluggable rather than hard-coded.

package attestation

import "sort"

// ResultsAggregator renders a verdict from a per-ID result map. It must be
// pure and must preserve the full map in the returned verdict regardless of
// outcome, so callers can inspect individual failures.
type ResultsAggregator interface {
	Aggregate(direction AttestationDirection, results map[string]VerifierResult) *PeerAttestationVerdict
}

// DefaultAggregator implements the spec's default policy: pass iff at least
// one entry is Success and no entry is Failure. Missing and Unverified
// entries are tolerated. An empty result map passes only under the
// Unattested direction (vacuous pass); any other direction with zero
// entries fails with reason "no evidence" (see SPEC_FULL.md §10 — the
// distilled spec leaves this ambiguous and calls for an implementer
// decision rather than a guess baked into the default).
type DefaultAggregator struct{}

// Aggregate implements ResultsAggregator.
func (DefaultAggregator) Aggregate(direction AttestationDirection, results map[string]VerifierResult) *PeerAttestationVerdict {
	if len(results) == 0 {
		if direction == Unattested {
			return NewVerdictPassed(results)
		}
		return NewVerdictFailed("no evidence", results)
	}

	sawSuccess := false
	for _, r := range results {
		if r.IsFailure() {
			return NewVerdictFailed(failureReason(results), results)
		}
		if r.IsSuccess() {
			sawSuccess = true
		}
	}
	if !sawSuccess {
		return NewVerdictFailed("no successful verification among results", results)
	}
	return NewVerdictPassed(results)
}

// StrictAggregator requires every entry to be Success; Missing, Unverified,
// and Failure all disqualify. This is the "all-must-succeed" alternative
// policy the spec's §4.4 names as a permitted substitution.
type StrictAggregator struct{}

// Aggregate implements ResultsAggregator.
func (StrictAggregator) Aggregate(direction AttestationDirection, results map[string]VerifierResult) *PeerAttestationVerdict {
	if len(results) == 0 {
		if direction == Unattested {
			return NewVerdictPassed(results)
		}
		return NewVerdictFailed("no evidence", results)
	}
	for _, r := range results {
		if !r.IsSuccess() {
			return NewVerdictFailed("strict policy requires every entry to succeed", results)
		}
	}
	return NewVerdictPassed(results)
}

func failureReason(results map[string]VerifierResult) string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := results[id]
		if r.IsFailure() {
			if r.Result != nil && r.Result.Reason != "" {
				return "attestation id " + id + " failed: " + r.Result.Reason
			}
			return "attestation id " + id + " failed"
		}
	}
	return "attestation failed"
}
