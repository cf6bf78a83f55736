package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into protocol outcomes:
// - ErrNotFound: record does not exist, or a conditional delete matched nothing
// - ErrConflict: a unique key (client ID, user name, code, token) already exists
// - ErrExpired: a transaction or login session outlived its TTL
// - ErrUnavailable: the backing store could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
