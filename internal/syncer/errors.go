package syncer

import "errors"

var (
	// ErrNoCredential means the tenant has no stored bearer credential;
	// no network call is made when this is returned.
	ErrNoCredential = errors.New("no credential stored for tenant")

	// ErrFetchFailed wraps an upstream page fetch error.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrInvalidPageSize rejects non-positive page sizes before any fetch.
	ErrInvalidPageSize = errors.New("page size must be positive")
)
