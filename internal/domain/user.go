package domain

import "time"

// User carries identity and sync configuration. CredentialCiphertext is
// opaque outside the vault.
type User struct {
	ID                      string
	CredentialCiphertext    string
	CredentialNeedsReentry  bool
	SyncEnabled             bool
	LastSyncAt              *time.Time
	ConsecutiveAuthFailures int
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// HasCredential reports whether a usable credential is stored.
func (u User) HasCredential() bool {
	return u.CredentialCiphertext != "" && !u.CredentialNeedsReentry
}

// UserSyncState is the subset of User the orchestrator mutates at the end of a run.
type UserSyncState struct {
	SyncEnabled             bool
	LastSyncAt              *time.Time
	ConsecutiveAuthFailures int
	CredentialNeedsReentry  bool
}

// SyncStateUpdate is the change a finished run applies to its user. It is
// expressed relative to the stored row, never as a snapshot to write back.
//
// The credential fields (ResetAuthFailures, AuthFailed, FlagReentry) apply
// only while the stored ciphertext equals CredentialCiphertext, the value
// the run started with. A credential cleared or re-entered during the run
// is left as the user set it. A run never turns SyncEnabled on.
type SyncStateUpdate struct {
	CredentialCiphertext string
	LastSyncAt           *time.Time
	ResetAuthFailures    bool
	AuthFailed           bool
	// DisableAfter turns sync off once the failure counter reaches it.
	// Zero never disables.
	DisableAfter         int
	FlagReentry          bool
}

// Apply folds the update into u and reports whether the credential fields
// were applied.
func (s SyncStateUpdate) Apply(u *User) bool {
	if s.LastSyncAt != nil {
		u.LastSyncAt = s.LastSyncAt
	}
	if u.CredentialCiphertext != s.CredentialCiphertext {
		return false
	}
	if s.ResetAuthFailures {
		u.ConsecutiveAuthFailures = 0
	}
	if s.AuthFailed {
		u.ConsecutiveAuthFailures++
		if s.DisableAfter > 0 && u.ConsecutiveAuthFailures >= s.DisableAfter {
			u.SyncEnabled = false
		}
	}
	if s.FlagReentry {
		u.CredentialNeedsReentry = true
	}
	return true
}

// SyncState extracts the orchestrator-owned fields.
func (u User) SyncState() UserSyncState {
	return UserSyncState{
		SyncEnabled:             u.SyncEnabled,
		LastSyncAt:              u.LastSyncAt,
		ConsecutiveAuthFailures: u.ConsecutiveAuthFailures,
		CredentialNeedsReentry:  u.CredentialNeedsReentry,
	}
}
