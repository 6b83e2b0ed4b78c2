package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument      = 1000
	ErrCodeInvalidJSON          = 1001
	ErrCodeRequestTooLarge      = 1002
	ErrCodeInvalidID            = 1004
	ErrCodeInvalidType          = 1006
	ErrCodeMissingRequired      = 1009
	ErrCodeInvalidTimeFilter    = 1010
	ErrCodeInvalidMultipart     = 1015
	ErrCodeUnsupportedMediaType = 1016
	ErrCodeInvalidBucket        = 1017
	ErrCodeNothingToUpdate      = 1018

	// Domain state (2xxx)
	ErrCodeMomentNotFound       = 2001
	ErrCodeVideoNotFound        = 2002
	ErrCodePoemNotFound         = 2003
	ErrCodeGalleryImageNotFound = 2004
	ErrCodeObjectNotFound       = 2005

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal         = 4001
	ErrCodeStoreFailure     = 4002
	ErrCodeStorageWrite     = 4003
	ErrCodeReadFailed       = 4004
	ErrCodeStoreUnavailable = 4006
)
