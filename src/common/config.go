package common

import "time"

// Engine-wide tunables. Kept as plain constants in common, the way the
// teacher keeps pageSize as a package constant in disk_manger.go -- these
// are simply the ones shared across package boundaries.
const (
	PageSize = 4096

	// LogBufferSize is shared by both of the log manager's double buffers.
	LogBufferSize = 4 * PageSize

	// BucketSize bounds how many page-table entries a single bucket holds
	// before callers should consider resizing (informational only; the
	// buffer pool's page table is a plain Go map and never needs resizing
	// by hand).
	BucketSize = 50
)

// LogTimeout is how long the background flusher waits for a wakeup before
// flushing unconditionally.
var LogTimeout = 1 * time.Second
