package transaction

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

// SQLiteTransactionManager manages SQLite transactions
type SQLiteTransactionManager struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ output.TransactionManager = (*SQLiteTransactionManager)(nil)

// NewSQLiteTransactionManager creates a new SQLite transaction manager
func NewSQLiteTransactionManager(db *sql.DB, logger *zap.Logger) *SQLiteTransactionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteTransactionManager{db: db, logger: logger}
}

// InTransaction executes a function within a transaction.
// A context that already carries a transaction joins it; the outermost caller commits.
func (m *SQLiteTransactionManager) InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := GetTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logger.Warn("rollback failed", zap.Error(rbErr))
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

type txKey struct{}

// GetTxFromContext retrieves a transaction from context.
// Repositories use it to run statements inside the caller's transaction.
func GetTxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}
