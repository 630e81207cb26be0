// Copyright 2025 Certen Protocol

package attestation

import "testing"

// Invariant 3 / Scenario S5: binding-token serialization is deterministic
// regardless of the order assertions are inserted into the map.
func TestBindingTokenSerializer_OrderIndependent(t *testing.T) {
	var ser BindingTokenSerializer

	a := map[string]Assertion{
		"alpha": {ID: "alpha", Content: []byte("x")},
		"beta":  {ID: "beta", Content: []byte("y")},
	}
	b := map[string]Assertion{
		"beta":  {ID: "beta", Content: []byte("y")},
		"alpha": {ID: "alpha", Content: []byte("x")},
	}

	tokenA := ser.Serialize(a)
	tokenB := ser.Serialize(b)

	if string(tokenA) != string(tokenB) {
		t.Fatalf("expected byte-identical tokens, got %q and %q", tokenA, tokenB)
	}
}

func TestBindingTokenSerializer_AscendingOrder(t *testing.T) {
	var ser BindingTokenSerializer
	m := map[string]Assertion{
		"zeta":  {ID: "zeta", Content: []byte("z")},
		"alpha": {ID: "alpha", Content: []byte("a")},
	}
	token := ser.Serialize(m)

	alphaIdx := indexOf(token, []byte("alpha"))
	zetaIdx := indexOf(token, []byte("zeta"))
	if alphaIdx < 0 || zetaIdx < 0 || alphaIdx > zetaIdx {
		t.Fatalf("expected alpha to precede zeta in serialized token, got %q", token)
	}
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
