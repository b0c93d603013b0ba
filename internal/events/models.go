// Package events defines the credential lifecycle events emitted to external
// observers and indexers. Emission order equals operation completion order;
// a failed operation emits nothing. Each event carries enough information for
// an external system to reconstruct full credential-lifecycle history without
// querying state directly.
package events

import (
	"time"

	id "sbt-registry/pkg/domain"
)

// Kind names a lifecycle event.
type Kind string

const (
	// KindIssued is emitted when a credential is created and bound to a holder.
	KindIssued Kind = "credential_issued"

	// KindRevoked is emitted when a credential's revoked flag transitions to true.
	KindRevoked Kind = "credential_revoked"

	// KindLocked is emitted on the creation edge of the transfer policy: the
	// record is now permanently bound to its holder.
	KindLocked Kind = "credential_locked"

	// KindUnlocked is emitted on the burn edge of the transfer policy.
	KindUnlocked Kind = "credential_unlocked"
)

// Event is a single lifecycle notification.
type Event struct {
	ID           string          `json:"id"`
	Kind         Kind            `json:"kind"`
	CredentialID id.CredentialID `json:"credential_id"`
	Holder       id.Identity     `json:"holder,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}
