// Package token implements the point Token and range RangeToken
// identifiers the lock services key their maps on.
package token

import (
	"crypto/md5"
	"strings"
)

// Token is an immutable identifier for an opaque tuple of components
// (a record, a field within a record, and so on). Equality and hashing
// are digest-only; the component strings themselves are discarded once
// the digest is computed; a Token lives only inside the
// lock-service map and is never persisted.
type Token struct {
	digest      [md5.Size]byte
	cardinality int
}

// Of hashes the ordered, textual concatenation of components with MD5
// and records the cardinality (component count). The
// components are caller-supplied opaque strings; how a caller renders a
// record id or field name into a component string is outside this
// package's concern.
func Of(components ...string) Token {
	h := md5.New()
	for i, c := range components {
		if i > 0 {
			// A separator that cannot itself appear inside a bare
			// component guards against ("ab", "c") and ("a", "bc")
			// colliding on naive concatenation.
			h.Write([]byte{0})
		}
		h.Write([]byte(c))
	}
	var t Token
	h.Sum(t.digest[:0])
	t.cardinality = len(components)
	return t
}

// Equal reports digest equality. Two tokens built from components with
// different textual representations are equal only in the negligible
// event of an MD5 collision.
func (t Token) Equal(other Token) bool {
	return t.digest == other.digest
}

// Cardinality is the number of components the token was built from. Only
// tokens with Cardinality() >= 2 may be held by multiple concurrent
// writers.
func (t Token) Cardinality() int {
	return t.cardinality
}

// String renders the digest as hex, for logs and diagnostics only; it is
// not part of the equality contract.
func (t Token) String() string {
	var sb strings.Builder
	sb.Grow(md5.Size * 2)
	const hex = "0123456789abcdef"
	for _, b := range t.digest {
		sb.WriteByte(hex[b>>4])
		sb.WriteByte(hex[b&0x0f])
	}
	return sb.String()
}

// Digest returns a copy of the raw 16-byte MD5 digest.
func (t Token) Digest() [md5.Size]byte {
	return t.digest
}
