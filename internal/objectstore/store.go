// Copyright 2025 James Ross
package objectstore

import (
	"context"
	"time"
)

// Store is the ObjectStore adapter contract of spec.md §4.1: typed blob
// I/O over container/path, prefix listing, and conditional-create leases.
//
// Errors returned by any method should be classified via internal/errors
// as one of NotFound, Conflict, TransientIO, or PermissionDenied — see
// errors.go in this package for the sentinel values every implementation
// must return so callers can branch without knowing which backend they
// are talking to.
type Store interface {
	// UploadJSON serialises data and writes it to container/path. When
	// ifNoneMatch is true, the write must fail with ErrConflict if an
	// object already exists at that path — this is the lease/lock
	// primitive, not an error condition in the ordinary sense.
	UploadJSON(ctx context.Context, container, path string, data any, ifNoneMatch bool) error

	UploadText(ctx context.Context, container, path, text, contentType string) error
	UploadBinary(ctx context.Context, container, path string, data []byte, contentType string) error

	// DownloadJSON decodes the object at container/path into v. Returns
	// ErrNotFound if absent.
	DownloadJSON(ctx context.Context, container, path string, v any) error
	DownloadText(ctx context.Context, container, path string) (string, error)
	DownloadBinary(ctx context.Context, container, path string) ([]byte, error)

	// List returns blob paths under prefix, optionally filtered to those
	// modified after modifiedSince (zero value disables the filter).
	List(ctx context.Context, container, prefix string, modifiedSince time.Time) ([]ObjectInfo, error)

	// Delete removes the object at container/path. Idempotent: deleting
	// an absent object is not an error.
	Delete(ctx context.Context, container, path string) error

	// Copy duplicates an object from (srcContainer, srcPath) to
	// (dstContainer, dstPath) without a local round-trip where the
	// backend supports server-side copy.
	Copy(ctx context.Context, srcContainer, srcPath, dstContainer, dstPath string) error
}

// ObjectInfo is one entry returned by List.
type ObjectInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Well-known containers, matching the layout in spec.md §6.
const (
	ContainerCollectedContent = "collected-content"
	ContainerSeen             = "seen"
	ContainerLeases           = "leases"
	ContainerLocks            = "locks"
	ContainerProcessedContent = "processed-content"
	ContainerMarkdownContent  = "markdown-content"
	ContainerWeb              = "web"
	ContainerWebBackup        = "web-backup"
)
