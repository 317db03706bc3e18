package engine

import "fmt"

// Kind classifies sync failures. Run-scoped kinds (fetch, store read, lock,
// timeout, delete guard) abort the whole run; record-scoped kinds
// (validation, store write) stay local to the record that caused them.
type Kind string

const (
	KindFetch       Kind = "fetch"
	KindValidation  Kind = "validation"
	KindStoreRead   Kind = "store_read"
	KindStoreWrite  Kind = "store_write"
	KindLockBusy    Kind = "lock_busy"
	KindTimeout     Kind = "timeout"
	KindCancelled   Kind = "cancelled"
	KindDeleteGuard Kind = "delete_guard"
	KindInternal    Kind = "internal"
)

// Error is a classified sync error. ID is set for record-scoped failures.
type Error struct {
	Kind Kind
	ID   string
	Err  error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
