package blobstore

import "errors"

var (
	// ErrObjectNotFound is returned when no committed object exists for an id.
	ErrObjectNotFound = errors.New("object not found")
	// ErrReadFailed is surfaced by range streams when an addressed chunk is missing or short.
	ErrReadFailed = errors.New("object read failed")
	// ErrStorageWrite wraps failures that prevented an upload from committing.
	ErrStorageWrite = errors.New("object storage write failed")
	// ErrStoreUnavailable is returned when a bucket is requested before the database is connected.
	ErrStoreUnavailable = errors.New("blob store is not connected")
	// ErrInvalidBucket is returned for bucket names outside the allowed alphabet.
	ErrInvalidBucket = errors.New("invalid bucket name")
	// ErrInvalidRange is returned when a range read is requested outside the object bounds.
	ErrInvalidRange = errors.New("invalid byte range")
)
