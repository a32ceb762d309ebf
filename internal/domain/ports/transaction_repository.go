package ports

import (
	"context"

	"github.com/kevin07696/smilepay-service/internal/domain"
)

// TransactionRepository defines the interface for transaction persistence
type TransactionRepository interface {
	// Create stores a new transaction in draft state
	Create(ctx context.Context, txn *domain.Transaction) error

	// GetByID retrieves a transaction by ID. Returns domain.ErrTxnNotFound when absent.
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// GetByReference retrieves a transaction by its platform reference.
	// Returns domain.ErrTxnNotFound when no row matches.
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)

	// FindByReference lists transactions for providerCode whose reference equals reference.
	// More than one result indicates an integrity problem the caller must surface.
	FindByReference(ctx context.Context, providerCode, reference string) ([]*domain.Transaction, error)

	// FindByProviderReference lists transactions whose gateway SmilePayNO equals providerRef
	FindByProviderReference(ctx context.Context, providerCode, providerRef string) ([]*domain.Transaction, error)

	// SaveInstruction persists gateway data and moves the transaction from draft to
	// awaiting_payment in a single update. Returns false when the transaction was
	// no longer in draft.
	SaveInstruction(ctx context.Context, id string, data *domain.GatewayData) (bool, error)

	// CompareAndSetState moves the transaction from one state to another only if it is
	// still in from. Returns false when another writer got there first.
	CompareAndSetState(ctx context.Context, id string, from, to domain.TransactionState) (bool, error)
}

// ProviderRepository defines the interface for provider configuration persistence
type ProviderRepository interface {
	Create(ctx context.Context, provider *domain.Provider) error

	// Get retrieves a provider by ID. Returns domain.ErrProviderNotFound when absent.
	Get(ctx context.Context, id string) (*domain.Provider, error)

	// UpdateMethodVariant changes the configured variant. Fails with
	// domain.ErrProviderVariantLocked when transactions already reference the provider.
	UpdateMethodVariant(ctx context.Context, id string, variant domain.MethodVariant) error
}

// NotificationLogRepository records every inbound gateway callback
type NotificationLogRepository interface {
	Record(ctx context.Context, entry *domain.NotificationLogEntry) error
	ListByReference(ctx context.Context, reference string, limit int32) ([]*domain.NotificationLogEntry, error)
}
