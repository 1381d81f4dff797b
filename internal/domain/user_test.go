package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthscore/internal/domain"
)

func TestSyncStateUpdateApply(t *testing.T) {
	synced := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		user    domain.User
		update  domain.SyncStateUpdate
		applied bool
		want    domain.UserSyncState
	}{
		{
			name:    "success resets failures",
			user:    domain.User{CredentialCiphertext: "ct", SyncEnabled: true, ConsecutiveAuthFailures: 2},
			update:  domain.SyncStateUpdate{CredentialCiphertext: "ct", LastSyncAt: &synced, ResetAuthFailures: true},
			applied: true,
			want:    domain.UserSyncState{SyncEnabled: true, LastSyncAt: &synced},
		},
		{
			name:    "auth failure increments the stored counter",
			user:    domain.User{CredentialCiphertext: "ct", SyncEnabled: true, ConsecutiveAuthFailures: 1},
			update:  domain.SyncStateUpdate{CredentialCiphertext: "ct", AuthFailed: true, DisableAfter: 3},
			applied: true,
			want:    domain.UserSyncState{SyncEnabled: true, ConsecutiveAuthFailures: 2},
		},
		{
			name:    "auth failure at the limit disables",
			user:    domain.User{CredentialCiphertext: "ct", SyncEnabled: true, ConsecutiveAuthFailures: 2},
			update:  domain.SyncStateUpdate{CredentialCiphertext: "ct", AuthFailed: true, DisableAfter: 3},
			applied: true,
			want:    domain.UserSyncState{ConsecutiveAuthFailures: 3},
		},
		{
			name:   "cleared credential stays disabled",
			user:   domain.User{},
			update: domain.SyncStateUpdate{CredentialCiphertext: "ct", LastSyncAt: &synced, ResetAuthFailures: true},
			want:   domain.UserSyncState{LastSyncAt: &synced},
		},
		{
			name:   "re-entered credential is not flagged",
			user:   domain.User{CredentialCiphertext: "new", SyncEnabled: true},
			update: domain.SyncStateUpdate{CredentialCiphertext: "old", FlagReentry: true, AuthFailed: true, DisableAfter: 1},
			want:   domain.UserSyncState{SyncEnabled: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.user
			require.Equal(t, tt.applied, tt.update.Apply(&u))
			require.Equal(t, tt.want, u.SyncState())
		})
	}
}
