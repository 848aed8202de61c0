package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	sqlite3 "github.com/ncruces/go-sqlite3"

	"github.com/promptvault/promptvault/internal/storage"
)

// Sentinel errors for common database conditions. ErrNotFound and ErrBusy
// alias the storage package sentinels so callers can errors.Is against
// either package.
var (
	ErrNotFound = storage.ErrNotFound
	ErrBusy     = storage.ErrBusy

	// ErrConflict indicates a unique constraint violation
	ErrConflict = errors.New("conflict")
)

// wrapDBError wraps a database error with operation context.
// It converts sql.ErrNoRows to ErrNotFound and SQLITE_BUSY to ErrBusy so
// callers get a consistent, classifiable error surface.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if isBusyErr(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrBusy, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isBusyErr reports whether err is SQLITE_BUSY or SQLITE_LOCKED, i.e. a
// transient lock contention condition the caller may retry.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sqlite3.BUSY) || errors.Is(err, sqlite3.LOCKED) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// isConstraintErr reports whether err is a UNIQUE or other constraint
// violation. The repository converts these into domain behavior ("already
// exists, update instead") rather than leaking them.
func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sqlite3.CONSTRAINT) {
		return true
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// beginImmediateWithRetry starts a BEGIN IMMEDIATE transaction on conn,
// retrying with exponential backoff on SQLITE_BUSY. IMMEDIATE acquires the
// write lock up front, serializing writers and preventing deadlock at
// upgrade time. Raw Exec is used because database/sql's BeginTx cannot
// request a transaction mode.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = maxElapsed

	op := func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusyErr(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if isBusyErr(err) {
			return fmt.Errorf("begin immediate: %w: %v", ErrBusy, err)
		}
		return err
	}
	return nil
}
