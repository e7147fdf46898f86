package uc

import "errors"

// ErrKeyNotFound is returned by repositories when no key matches.
var ErrKeyNotFound = errors.New("api key not found")

// ErrInvalidKey is the uniform rejection for unknown, revoked, or malformed
// secrets. Callers must not be able to distinguish these cases.
var ErrInvalidKey = errors.New("invalid api key")
