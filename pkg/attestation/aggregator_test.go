// Copyright 2025 Certen Protocol

package attestation

import "testing"

// Scenario S1: an empty result map passes only under Unattested.
func TestDefaultAggregator_EmptyResultsVacuousPassOnlyWhenUnattested(t *testing.T) {
	var agg DefaultAggregator

	verdict := agg.Aggregate(Unattested, map[string]VerifierResult{})
	if !verdict.Passed() {
		t.Fatalf("expected vacuous pass under Unattested, got %v", verdict)
	}

	verdict = agg.Aggregate(Bidirectional, map[string]VerifierResult{})
	if verdict.Passed() {
		t.Fatalf("expected failure for empty results under Bidirectional, got %v", verdict)
	}
}

func TestDefaultAggregator_ToleratesMissingAndUnverified(t *testing.T) {
	var agg DefaultAggregator
	results := map[string]VerifierResult{
		"A": NewVerifierSuccess(&Evidence{ID: "A"}, AttestationResults{Status: StatusSuccess}),
		"B": NewVerifierMissing(),
		"C": NewVerifierUnverified(&Evidence{ID: "C"}),
	}
	verdict := agg.Aggregate(Bidirectional, results)
	if !verdict.Passed() {
		t.Fatalf("expected pass when only successes/missing/unverified present, got %v", verdict)
	}
}

func TestDefaultAggregator_AnyFailureFailsOverall(t *testing.T) {
	var agg DefaultAggregator
	results := map[string]VerifierResult{
		"A": NewVerifierSuccess(&Evidence{ID: "A"}, AttestationResults{Status: StatusSuccess}),
		"B": NewVerifierFailure(&Evidence{ID: "B"}, AttestationResults{Status: StatusGenericFailure, Reason: "bad sig"}),
	}
	verdict := agg.Aggregate(Bidirectional, results)
	if verdict.Passed() {
		t.Fatalf("expected failure due to B, got %v", verdict)
	}
	if verdict.Reason == "" {
		t.Fatalf("expected a non-empty failure reason")
	}
}

func TestDefaultAggregator_NoSuccessFails(t *testing.T) {
	var agg DefaultAggregator
	results := map[string]VerifierResult{
		"A": NewVerifierMissing(),
		"B": NewVerifierUnverified(&Evidence{ID: "B"}),
	}
	verdict := agg.Aggregate(Bidirectional, results)
	if verdict.Passed() {
		t.Fatalf("expected failure when no entry succeeded, got %v", verdict)
	}
}

func TestStrictAggregator_RequiresAllSuccess(t *testing.T) {
	var agg StrictAggregator
	passing := map[string]VerifierResult{
		"A": NewVerifierSuccess(&Evidence{ID: "A"}, AttestationResults{Status: StatusSuccess}),
		"B": NewVerifierSuccess(&Evidence{ID: "B"}, AttestationResults{Status: StatusSuccess}),
	}
	if verdict := agg.Aggregate(Bidirectional, passing); !verdict.Passed() {
		t.Fatalf("expected pass when every entry succeeds, got %v", verdict)
	}

	withMissing := map[string]VerifierResult{
		"A": NewVerifierSuccess(&Evidence{ID: "A"}, AttestationResults{Status: StatusSuccess}),
		"B": NewVerifierMissing(),
	}
	if verdict := agg.Aggregate(Bidirectional, withMissing); verdict.Passed() {
		t.Fatalf("expected strict policy to reject a Missing entry, got %v", verdict)
	}
}

func TestAggregator_PreservesFullResultMapRegardlessOfOutcome(t *testing.T) {
	results := map[string]VerifierResult{
		"A": NewVerifierSuccess(&Evidence{ID: "A"}, AttestationResults{Status: StatusSuccess}),
		"B": NewVerifierFailure(&Evidence{ID: "B"}, AttestationResults{Status: StatusGenericFailure}),
		"C": NewVerifierUnverified(&Evidence{ID: "C"}),
	}
	verdict := DefaultAggregator{}.Aggregate(Bidirectional, results)
	if len(verdict.Results) != 3 {
		t.Fatalf("expected all 3 entries preserved in verdict, got %d", len(verdict.Results))
	}
}
