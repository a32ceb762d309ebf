package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kevin07696/smilepay-service/internal/domain"
)

// TransactionBuilder provides fluent API for building test transactions.
type TransactionBuilder struct {
	transaction *domain.Transaction
}

// NewTransaction creates a draft transaction for 500 TWD with sensible defaults.
func NewTransaction() *TransactionBuilder {
	now := time.Now()
	return &TransactionBuilder{
		transaction: &domain.Transaction{
			ID:            uuid.NewString(),
			Reference:     "SO1001",
			ProviderCode:  domain.ProviderCodeSmilePay,
			Currency:      "TWD",
			State:         domain.StateDraft,
			MethodVariant: domain.MethodBankTransfer,
			Amount:        decimal.NewFromInt(500),
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
}

func (b *TransactionBuilder) WithID(id string) *TransactionBuilder {
	b.transaction.ID = id
	return b
}

func (b *TransactionBuilder) WithReference(reference string) *TransactionBuilder {
	b.transaction.Reference = reference
	return b
}

// ForProvider links the transaction to provider and copies its variant
func (b *TransactionBuilder) ForProvider(provider *domain.Provider) *TransactionBuilder {
	b.transaction.ProviderID = provider.ID
	b.transaction.ProviderCode = provider.Code
	b.transaction.MethodVariant = provider.MethodVariant
	return b
}

func (b *TransactionBuilder) WithProviderCode(code string) *TransactionBuilder {
	b.transaction.ProviderCode = code
	return b
}

func (b *TransactionBuilder) WithAmount(amount string) *TransactionBuilder {
	b.transaction.Amount = decimal.RequireFromString(amount)
	return b
}

func (b *TransactionBuilder) WithState(state domain.TransactionState) *TransactionBuilder {
	b.transaction.State = state
	return b
}

func (b *TransactionBuilder) WithVariant(variant domain.MethodVariant) *TransactionBuilder {
	b.transaction.MethodVariant = variant
	return b
}

func (b *TransactionBuilder) WithPartner(name, phone, email string) *TransactionBuilder {
	b.transaction.PartnerName = name
	b.transaction.PartnerPhone = phone
	b.transaction.PartnerEmail = email
	return b
}

// WithInstruction attaches gateway data and moves the transaction to awaiting_payment
func (b *TransactionBuilder) WithInstruction(smilePayNo string, instruction domain.Instruction) *TransactionBuilder {
	b.transaction.Gateway = &domain.GatewayData{
		ProviderReference: smilePayNo,
		Instruction:       instruction,
		PaymentDeadline:   time.Now().Add(72 * time.Hour),
	}
	b.transaction.MethodVariant = instruction.Variant()
	b.transaction.State = domain.StateAwaitingPayment
	return b
}

func (b *TransactionBuilder) Build() *domain.Transaction {
	return b.transaction
}
