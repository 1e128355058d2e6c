package models

// Event task processing statuses.
const (
	TaskStatusPending   = "pending"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

const (
	// DefaultPageSize is the walker batch size when the config leaves it unset.
	DefaultPageSize = 50

	// DefaultThresholdMinutes is the abandonment cutoff when unset.
	DefaultThresholdMinutes = 60

	// WorkerQueueSize is the in-memory event queue capacity.
	WorkerQueueSize = 128

	// DefaultCredentialTTL is the redis credential cache lifetime in seconds.
	DefaultCredentialTTL = 24 * 60 * 60

	// DefaultRunLockTTL is the per-tenant run lease lifetime in seconds.
	DefaultRunLockTTL = 15 * 60
)
