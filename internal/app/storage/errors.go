package storage

import "errors"

// ErrVersionConflict is returned by stores when an update carries a stale
// optimistic-lock version. Missing rows are reported as sql.ErrNoRows by
// every implementation.
var ErrVersionConflict = errors.New("version conflict")
