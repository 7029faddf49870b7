package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks store failures that survived every retry.
	ErrTransient = errors.New("ledger: store unavailable")
	// ErrConflict is returned by connectors when a write carries a stale version.
	ErrConflict = errors.New("ledger: version conflict")
	// ErrTableNotFound is returned by connectors reading an unknown table.
	ErrTableNotFound = errors.New("ledger: table not found")
	// ErrNoBackup is returned when a restore finds no backup of the table.
	ErrNoBackup = errors.New("ledger: no backup found")
	// ErrTornWrite reports a write whose failed attempt left the table in an
	// unknown state. It is handled as a store failure, not a conflict.
	ErrTornWrite = errors.New("ledger: table changed by a failed write")
	// ErrInvalidSchema rejects malformed table schemas.
	ErrInvalidSchema = errors.New("ledger: invalid schema")
)

// permanentError stops the retry loop early.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the adapter does not retry it. Connectors use it for
// failures that cannot heal, such as bad credentials.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func retryable(err error) bool {
	var p permanentError
	if errors.As(err, &p) {
		return false
	}
	return !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidSchema)
}

// StoreError is returned when a store operation failed after retries. It
// matches ErrTransient and the underlying cause with errors.Is.
type StoreError struct {
	Table    string
	Op       string
	Attempts int
	// Restored names the backup written back over the table, if any.
	Restored   string
	RestoreErr error
	Err        error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("ledger: %s %q failed after %d attempt(s): %v", e.Op, e.Table, e.Attempts, e.Err)
	switch {
	case e.Restored != "":
		msg += fmt.Sprintf(" (restored %s)", e.Restored)
	case e.RestoreErr != nil:
		msg += fmt.Sprintf(" (restore failed: %v)", e.RestoreErr)
	}
	return msg
}

func (e *StoreError) Unwrap() []error { return []error{ErrTransient, e.Err} }
