package common

import "errors"

// Sentinel errors shared across subsystems, matching spec.md section 7's
// error kinds. Subsystems that only need a bool (lock manager, B+Tree
// lookups) keep returning bool as the original does. No package returns
// these values: the buffer pool and disk manager build their own errors
// with fmt.Errorf or pass through the os package's errors.
var (
	ErrOutOfMemory       = errors.New("buffer pool is full")
	ErrPageNotFound      = errors.New("page not found in buffer pool")
	ErrPageInUse         = errors.New("page is still pinned")
	ErrTransactionAbort  = errors.New("transaction aborted")
	ErrContractViolation = errors.New("contract violation")
)
