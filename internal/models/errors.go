package models

import "errors"

// ErrFormNotFound is returned by schema and ownership lookups for a missing form,
// and for a form the caller does not own.
var ErrFormNotFound = errors.New("form not found")
