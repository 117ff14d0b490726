// internal/apperr/apperr.go
package apperr

// Kind is a sentinel error shared by the storage, remote and service layers.
// Callers test for it with errors.Is; concrete causes are wrapped around it.
type Kind string

func (e Kind) Error() string { return string(e) }

const (
	ErrRemoteUnavailable Kind = "remote store unavailable"
	ErrRemoteOperation   Kind = "remote operation failed"
	ErrSerialization     Kind = "local serialization error"
	ErrQuotaExceeded     Kind = "local storage quota exceeded"
	ErrStorage           Kind = "local storage error"
	ErrNotFound          Kind = "appointment not found"
	ErrInvalidImport     Kind = "invalid import format"
	ErrInvalidInput      Kind = "invalid appointment data"
	ErrSyncUnavailable   Kind = "synchronization unavailable"
	ErrInvalidPassword   Kind = "invalid password"
	ErrNotConfigured     Kind = "feature not configured"
)
