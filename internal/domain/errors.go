package domain

import (
	"context"
	"errors"
)

var (
	// ErrConfiguration is returned at startup when required configuration is missing or invalid.
	ErrConfiguration = errors.New("configuration error")
	// ErrIntegrity indicates a stored credential failed authentication on decrypt.
	ErrIntegrity = errors.New("credential integrity check failed")
	// ErrAuthentication indicates the telemetry provider rejected the credentials.
	ErrAuthentication = errors.New("provider authentication failed")
	// ErrFetch indicates a network or provider failure while fetching telemetry.
	ErrFetch = errors.New("telemetry fetch failed")
	// ErrTimeout indicates a sync run exceeded its wall-clock budget.
	ErrTimeout = errors.New("sync run timed out")
	// ErrCanceled indicates a sync run was cancelled by its caller.
	ErrCanceled = errors.New("sync run canceled")
	// ErrStorage indicates the metrics store could not commit a run.
	ErrStorage = errors.New("metrics store failure")
	// ErrSyncInProgress is returned when another sync for the same user is active.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrSyncDisabled is returned when sync is turned off for the user.
	ErrSyncDisabled = errors.New("sync disabled for user")
	// ErrNoCredential is returned when no usable provider credential is stored.
	ErrNoCredential = errors.New("no provider credential stored")
	// ErrUserNotFound is returned when a user cannot be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrMetricNotFound is returned when no daily metric exists for the requested date.
	ErrMetricNotFound = errors.New("daily metric not found")
)

// ErrorKind is the taxonomy label recorded on failed sync logs and returned to callers.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindConfiguration  ErrorKind = "configuration"
	KindIntegrity      ErrorKind = "integrity"
	KindAuthentication ErrorKind = "authentication"
	KindFetch          ErrorKind = "fetch"
	KindTimeout        ErrorKind = "timeout"
	KindCanceled       ErrorKind = "canceled"
	KindStorage        ErrorKind = "storage"
	KindSyncInProgress ErrorKind = "sync_in_progress"
	KindSyncDisabled   ErrorKind = "sync_disabled"
	KindNoCredential   ErrorKind = "no_credential"
	KindUserNotFound   ErrorKind = "user_not_found"
	KindInternal       ErrorKind = "internal"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrSyncInProgress, KindSyncInProgress},
	{ErrSyncDisabled, KindSyncDisabled},
	{ErrNoCredential, KindNoCredential},
	{ErrUserNotFound, KindUserNotFound},
	{ErrConfiguration, KindConfiguration},
	{ErrIntegrity, KindIntegrity},
	{ErrTimeout, KindTimeout},
	{ErrCanceled, KindCanceled},
	{ErrAuthentication, KindAuthentication},
	{ErrStorage, KindStorage},
	{ErrFetch, KindFetch},
	{context.DeadlineExceeded, KindTimeout},
	{context.Canceled, KindCanceled},
}

// KindOf classifies err into the sync error taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}
