package token

import "testing"

func TestOfIsDeterministic(t *testing.T) {
	a := Of("record:42", "field:x")
	b := Of("record:42", "field:x")
	if !a.Equal(b) {
		t.Fatal("Of with identical components must produce equal tokens")
	}
	if a.String() != b.String() {
		t.Fatal("equal tokens must render identically")
	}
}

func TestOfDistinguishesComponentBoundaries(t *testing.T) {
	a := Of("ab", "c")
	b := Of("a", "bc")
	if a.Equal(b) {
		t.Fatal("different component splits must not collide")
	}
}

func TestOfCardinality(t *testing.T) {
	if Of("record:1").Cardinality() != 1 {
		t.Fatal("single-component token should have cardinality 1")
	}
	if Of("record:1", "field:x").Cardinality() != 2 {
		t.Fatal("two-component token should have cardinality 2")
	}
}

func TestOfDistinctComponentsDiffer(t *testing.T) {
	a := Of("record:1")
	b := Of("record:2")
	if a.Equal(b) {
		t.Fatal("distinct components must not collide (MD5 collision astronomically unlikely)")
	}
}
