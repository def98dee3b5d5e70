package utils

import "errors"

// Common application errors used across services.
var (
	ErrProductNotFound  = errors.New("PRODUCT_NOT_FOUND")
	ErrVendorUnknown    = errors.New("VENDOR_UNKNOWN")
	ErrJobAlreadyQueued = errors.New("JOB_ALREADY_QUEUED")
	ErrMalformedRecord  = errors.New("MALFORMED_RECORD")
	ErrTooManySlugs     = errors.New("TOO_MANY_SLUGS")
	ErrCacheMiss        = errors.New("CACHE_MISS")
)
