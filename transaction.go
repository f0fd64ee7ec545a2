package gorient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Transaction binding follows an explicit two-state model. Unbound: no
// ambient session, each operation acquires a scratch session, commits its
// own writes and closes it. Bound: a TransactionManager has attached a
// session with an open transaction to the context, operations reuse it and
// leave commit, rollback and close to the manager. The state transition is
// owned entirely by the TransactionManager; operations only read it.

type sessionHolderKey struct{}

type sessionHolder struct {
	session Session
	active  bool
}

// BoundSession returns the session attached to the context by a
// TransactionManager, with ok reporting whether one is bound and its
// transaction still active.
func BoundSession(ctx context.Context) (Session, bool) {
	holder, _ := ctx.Value(sessionHolderKey{}).(*sessionHolder)
	if holder == nil || !holder.active {
		return nil, false
	}
	return holder.session, true
}

// TransactionActive reports whether the context carries an active
// externally-managed transaction.
func TransactionActive(ctx context.Context) bool {
	_, ok := BoundSession(ctx)
	return ok
}

// TransactionManager opens sessions from a Pool and binds them, with a begun
// transaction, to contexts. It is the only component that moves the binding
// between Bound and Unbound.
type TransactionManager struct {
	pool   Pool
	logger *zap.Logger
}

// NewTransactionManager creates a manager over the given pool. A nil logger
// disables logging.
func NewTransactionManager(pool Pool, logger *zap.Logger) *TransactionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionManager{pool: pool, logger: logger}
}

// Begin acquires a session, starts a transaction on it and returns a
// derived context carrying the binding. Nested transactions are not
// supported: beginning inside an already-bound context fails.
func (tm *TransactionManager) Begin(ctx context.Context) (context.Context, error) {
	if TransactionActive(ctx) {
		return ctx, fmt.Errorf("transaction already in progress")
	}

	session, err := tm.pool.Acquire(ctx)
	if err != nil {
		return ctx, fmt.Errorf("acquire session for transaction: %w", err)
	}
	if err := session.Begin(ctx); err != nil {
		_ = session.Close(ctx)
		return ctx, fmt.Errorf("begin transaction: %w", err)
	}

	tm.logger.Debug("transaction begun")
	holder := &sessionHolder{session: session, active: true}
	return context.WithValue(ctx, sessionHolderKey{}, holder), nil
}

// Commit commits the bound transaction and releases its session.
func (tm *TransactionManager) Commit(ctx context.Context) error {
	holder, _ := ctx.Value(sessionHolderKey{}).(*sessionHolder)
	if holder == nil || !holder.active {
		return fmt.Errorf("no transaction in progress")
	}
	holder.active = false
	defer holder.session.Close(ctx)

	if err := holder.session.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	tm.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls the bound transaction back and releases its session.
func (tm *TransactionManager) Rollback(ctx context.Context) error {
	holder, _ := ctx.Value(sessionHolderKey{}).(*sessionHolder)
	if holder == nil || !holder.active {
		return fmt.Errorf("no transaction in progress")
	}
	holder.active = false
	defer holder.session.Close(ctx)

	if err := holder.session.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	tm.logger.Debug("transaction rolled back")
	return nil
}

// WithTransaction runs fn inside a transaction: commit on success, rollback
// on error or panic.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	txCtx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tm.Rollback(txCtx)
			panic(r)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tm.Rollback(txCtx); rbErr != nil {
			tm.logger.Warn("rollback failed after error", zap.Error(rbErr))
		}
		return err
	}
	return tm.Commit(txCtx)
}
