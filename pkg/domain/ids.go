// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strconv"
	"strings"
	"unicode"

	dErrors "sbt-registry/pkg/domain-errors"
)

// CredentialID identifies a credential record. IDs are allocated as a
// monotonic sequence starting at 1 and are never reused, even after a
// credential is conceptually burned.
type CredentialID uint64

// Identity is the opaque caller/holder token supplied by the execution
// environment. The registry only compares identities for equality; it never
// interprets their contents.
type Identity string

// NullIdentity is the sentinel for the absent party on the structural
// lifecycle edges (mint has a null "from", burn has a null "to").
const NullIdentity Identity = ""

// maxIdentityLen bounds identity tokens so a hostile caller cannot store
// unbounded strings through the role or holder tables.
const maxIdentityLen = 256

// ParseCredentialID parses a decimal credential ID. Use at trust boundaries
// (handlers, API inputs).
func ParseCredentialID(s string) (CredentialID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "credential ID must be a positive integer")
	}
	return CredentialID(n), nil
}

// ParseIdentity validates an externally supplied identity token.
// Returns CodeInvalidHolder for empty or malformed tokens.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NullIdentity, dErrors.New(dErrors.CodeInvalidHolder, "identity cannot be empty")
	}
	if len(s) > maxIdentityLen {
		return NullIdentity, dErrors.New(dErrors.CodeInvalidHolder, "identity exceeds maximum length")
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return NullIdentity, dErrors.New(dErrors.CodeInvalidHolder, "identity contains control characters")
		}
	}
	return Identity(s), nil
}

func (id CredentialID) String() string { return strconv.FormatUint(uint64(id), 10) }

func (i Identity) String() string { return string(i) }

// IsNull reports whether the identity is the null sentinel.
func (i Identity) IsNull() bool { return i == NullIdentity }
