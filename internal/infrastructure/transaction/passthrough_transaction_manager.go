package transaction

import (
	"context"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

var _ output.TransactionManager = (*PassthroughTransactionManager)(nil)

// PassthroughTransactionManager runs functions without a surrounding transaction.
// It backs stores that guarantee atomicity per call, such as the file store.
type PassthroughTransactionManager struct{}

// NewPassthroughTransactionManager creates a new passthrough transaction manager
func NewPassthroughTransactionManager() *PassthroughTransactionManager {
	return &PassthroughTransactionManager{}
}

// InTransaction executes fn with the same context
func (m *PassthroughTransactionManager) InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}
