package domain

import (
	"context"
	"log/slog"
)

// Credential is the plaintext provider login. It only exists in memory
// between a vault open and the provider login call.
type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LogValue keeps the password out of structured logs.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("email_present", c.Email != ""),
		slog.String("password", "[redacted]"),
	)
}

// CredentialSealer encrypts credentials for storage.
type CredentialSealer interface {
	SealCredential(userID string, cred Credential) (string, error)
}

// CredentialVerifier checks a credential against the telemetry provider.
type CredentialVerifier interface {
	Verify(ctx context.Context, cred Credential) error
}
