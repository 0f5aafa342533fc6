package collection

import "errors"

var (
	// ErrStaleRevision indicates the collection changed since the caller loaded it.
	ErrStaleRevision = errors.New("collection changed since it was loaded, reload and retry")
	// ErrQuotaExceeded indicates the encoded collection does not fit in its storage slot.
	ErrQuotaExceeded = errors.New("collection storage quota exceeded")
	// ErrCollectionFull indicates the collection already holds its maximum number of records.
	ErrCollectionFull = errors.New("collection is full")
	// ErrRecordNotFound indicates no record matched the requested identifier.
	ErrRecordNotFound = errors.New("record not found")
)
