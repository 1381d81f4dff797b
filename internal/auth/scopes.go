package auth

// Scopes understood by the API.
const (
	ScopeMetricsRead      = "metrics:read"
	ScopeSyncWrite        = "sync:write"
	ScopeCredentialsWrite = "credentials:write"
)
