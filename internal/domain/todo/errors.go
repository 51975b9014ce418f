package todo

import "fmt"

// ValidationError reports an attachment or input rejected before any I/O.
// It is never retried; the caller must pick different input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// StoreWriteError reports a row create/update/delete rejected by the store.
// The optimistic local change has been rolled back when this is returned.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write failed (%s): %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// UploadError reports a blob store upload failure. The pending create is
// aborted entirely; no row is written.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("attachment upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DeleteError reports a blob store removal failure. When it occurs during an
// item delete, the row delete has not been issued.
type DeleteError struct {
	Key string
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("attachment delete failed (%s): %v", e.Key, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// SubscriptionError reports that the change feed could not be established.
// The session degrades to periodic refresh until the feed recovers.
type SubscriptionError struct {
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("change feed subscription failed: %v", e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
