// Package ports defines the service interfaces consumed by the HTTP handlers.
package ports

import (
	"context"
	"time"

	"github.com/kevin07696/smilepay-service/internal/domain"
)

// ProviderSource resolves a provider configuration with credentials filled in
type ProviderSource interface {
	Get(ctx context.Context, providerID string) (*domain.Provider, error)
}

// RenderingValues is the display payload for an issued payment instruction
type RenderingValues struct {
	PaymentDeadline time.Time `json:"payment_deadline"`

	Reference         string                  `json:"reference"`
	State             domain.TransactionState `json:"state"`
	Method            domain.MethodVariant    `json:"method"`
	PaymentMethodCode string                  `json:"payment_method_code"`
	ProviderReference string                  `json:"provider_reference"`

	// Variant-specific codes; only those of Method are set
	BankCode  string `json:"bank_code,omitempty"`
	AccountNo string `json:"account_no,omitempty"`
	IbonNo    string `json:"ibon_no,omitempty"`
	FamiNo    string `json:"fami_no,omitempty"`
	Barcode1  string `json:"barcode_1,omitempty"`
	Barcode2  string `json:"barcode_2,omitempty"`
	Barcode3  string `json:"barcode_3,omitempty"`

	ATMQRCodeURL  string `json:"atm_qrcode_url,omitempty"`
	IbonQRCodeURL string `json:"ibon_qrcode_url,omitempty"`

	Amount int64 `json:"amount"`
}

// InstructionService issues gateway payment instructions for transactions
type InstructionService interface {
	// EnsureInstruction returns the transaction with its instruction populated,
	// calling the gateway at most once per transaction
	EnsureInstruction(ctx context.Context, reference string) (*domain.Transaction, error)

	// RenderingValues returns the display payload for a transaction's instruction
	RenderingValues(ctx context.Context, reference string) (*RenderingValues, error)
}

// NotificationService processes inbound gateway callbacks
type NotificationService interface {
	// Process never returns nil; failures are reported through the result
	Process(ctx context.Context, notification domain.Notification) *domain.NotificationResult

	// History lists the most recent callbacks recorded for reference, newest first
	History(ctx context.Context, reference string, limit int32) ([]*domain.NotificationLogEntry, error)
}

// ProviderService manages merchant SmilePay configurations
type ProviderService interface {
	ProviderSource

	// Register stores a new provider, moving credentials to the secret
	// manager when SecretPath is set
	Register(ctx context.Context, provider *domain.Provider) error

	// ChangeMethodVariant fails with domain.ErrProviderVariantLocked once
	// transactions reference the provider
	ChangeMethodVariant(ctx context.Context, providerID string, variant domain.MethodVariant) error
}
