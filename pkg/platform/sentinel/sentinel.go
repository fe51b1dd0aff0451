package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Clients and locks return these
// (optionally wrapped) so callers can branch with errors.Is.
//
// - ErrConflict: resource is held by someone else (e.g. a tick lock)
// - ErrNotConfigured: a required endpoint or setting is absent
var (
	ErrConflict      = errors.New("conflict")
	ErrNotConfigured = errors.New("not configured")
)
