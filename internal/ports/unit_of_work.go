package ports

import "context"

// Tx is an opaque transaction handle owned by the persistence adapter.
type Tx any

// UnitOfWork runs fn in one transaction: an error rolls back, nil commits.
// Nested calls join the transaction already carried in ctx.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads a transaction handle from context.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	return ctx != nil && TxFromContext(ctx) != nil
}
