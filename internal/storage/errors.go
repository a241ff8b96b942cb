// Package storage defines the error taxonomy shared by the obastore storage packages.
package storage

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Contract errors. These report caller bugs and are never retried.
var (
	// ErrUnsupported reports a value-ordered or duplicate-specific operation
	// invoked on a table that is not configured for it.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrInvalidPosition reports a cursor read while the cursor is not
	// positioned on an element.
	ErrInvalidPosition = errors.New("cursor is not positioned on an element")

	// ErrCursorClosed reports use of a cursor after Close, or after the
	// table it walks has been closed.
	ErrCursorClosed = errors.New("cursor is closed")

	// ErrTableClosed reports use of a table after Close.
	ErrTableClosed = errors.New("table is closed")
)

// StoreError wraps a backing-store failure (disk error, corrupt record)
// with the operation and key that triggered it.
type StoreError struct {
	Op    string
	Table string
	Key   string
	Err   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s %s: %v", e.Table, e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s key=%s: %v", e.Table, e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStoreError wraps err into a *StoreError. A nil err yields nil and an
// error that already is a *StoreError is returned unchanged.
func WrapStoreError(op, table string, key any, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Table: table, Key: RenderKey(key), Err: err}
}

// RenderKey formats a key or value for error and log context.
// Long renderings are truncated on a rune boundary.
func RenderKey(key any) string {
	if key == nil {
		return ""
	}
	var s string
	switch k := key.(type) {
	case string:
		s = k
	case []byte:
		s = fmt.Sprintf("%x", k)
	case fmt.Stringer:
		s = k.String()
	default:
		s = fmt.Sprintf("%v", k)
	}
	const maxLen = 64
	if len(s) > maxLen {
		n := maxLen
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n] + "..."
	}
	return s
}

// IsStoreError reports whether err carries a backing-store failure.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
