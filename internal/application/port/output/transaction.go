package output

import "context"

// TransactionManager scopes repository calls to one unit of work.
// Application rows, history rows and override entries commit together or not at all.
type TransactionManager interface {
	// InTransaction runs fn with a context carrying the transaction.
	// The transaction rolls back when fn returns an error.
	InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
