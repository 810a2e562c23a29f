// Copyright 2025 James Ross
package objectstore

import "errors"

// Sentinel errors every Store implementation returns, so callers branch
// on behavior rather than backend-specific types.
var (
	ErrNotFound        = errors.New("objectstore: not found")
	ErrConflict        = errors.New("objectstore: conflict")
	ErrTransientIO     = errors.New("objectstore: transient io error")
	ErrPermissionDenied = errors.New("objectstore: permission denied")
)
