package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// querier abstracts *sql.DB and *sql.Conn so query helpers can run both
// standalone and inside an explicit transaction on a dedicated connection.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txTimeout bounds the backoff spent acquiring the write lock.
const txTimeout = 5 * time.Second

// withImmediateTx runs fn inside a BEGIN IMMEDIATE transaction on a
// dedicated connection. IMMEDIATE acquires the write lock up front so
// concurrent writers serialize instead of deadlocking at upgrade time.
//
// Rollback uses a background context so cleanup completes even when ctx is
// already canceled.
func (s *Store) withImmediateTx(ctx context.Context, fn func(conn *sql.Conn) error) error {
	s.reopenMu.RLock()
	defer s.reopenMu.RUnlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return wrapDBError("acquire connection", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn, txTimeout); err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return wrapDBError("commit transaction", err)
	}
	committed = true
	return nil
}

// nullableRating converts a scanned rating column to the domain pointer form.
func nullableRating(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	r := int(n.Int64)
	return &r
}
