package reconcile

import (
	"context"

	"github.com/google/uuid"

	"payment-webhook-service/internal/model"
)

// Tx is the set of sale operations available inside one storage transaction.
type Tx interface {
	// FindByKey returns the sale for key, locked for the rest of the
	// transaction, or nil when none exists.
	FindByKey(ctx context.Context, key model.SaleKey) (*model.Sale, error)
	// Insert stores a new sale. It returns false without error when another
	// writer already holds the dedup key.
	Insert(ctx context.Context, sale *model.Sale) (bool, error)
	// Update overwrites the mutable fields of an existing sale.
	Update(ctx context.Context, sale *model.Sale) error
	AppendHistory(ctx context.Context, saleID uuid.UUID, entry model.HistoryEntry) error
	EnqueueEvent(ctx context.Context, event model.SaleEvent) error
}

// Store runs fn inside a transaction, committing when fn returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
