package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionState is the lifecycle state of a payment transaction.
// Transitions only move forward: draft -> awaiting_payment -> done.
type TransactionState string

const (
	StateDraft           TransactionState = "draft"
	StateAwaitingPayment TransactionState = "awaiting_payment"
	StateDone            TransactionState = "done"
	StateError           TransactionState = "error"
)

// CanTransitionTo reports whether moving from s to next is a forward transition
func (s TransactionState) CanTransitionTo(next TransactionState) bool {
	switch s {
	case StateDraft:
		return next == StateAwaitingPayment || next == StateError
	case StateAwaitingPayment:
		return next == StateDone || next == StateError
	}
	return false
}

// Transaction is a platform payment transaction
type Transaction struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Gateway holds SmilePay-specific data; nil until an instruction is issued
	Gateway *GatewayData `json:"gateway,omitempty"`

	ID           string           `json:"id"`
	Reference    string           `json:"reference"`
	ProviderID   string           `json:"provider_id"`
	ProviderCode string           `json:"provider_code"`
	Currency     string           `json:"currency"`
	State        TransactionState `json:"state"`

	// MethodVariant is copied from the provider when the transaction is created
	MethodVariant MethodVariant `json:"method_variant"`

	// Optional payer contact details forwarded to the gateway
	PartnerName  string `json:"partner_name,omitempty"`
	PartnerPhone string `json:"partner_phone,omitempty"`
	PartnerEmail string `json:"partner_email,omitempty"`

	Amount decimal.Decimal `json:"amount"`
}

// GatewayData is the gateway-specific extension of a transaction
type GatewayData struct {
	PaymentDeadline time.Time `json:"payment_deadline"`

	// ProviderReference is the gateway-assigned SmilePayNO
	ProviderReference string `json:"provider_reference"`

	Instruction Instruction `json:"-"`
}

// WholeAmount returns the amount truncated to whole currency units.
// SmilePay only handles TWD, which has no subunits on the wire.
func (t *Transaction) WholeAmount() int64 {
	return TruncateAmount(t.Amount)
}

// HasInstruction reports whether the gateway instruction has been populated
func (t *Transaction) HasInstruction() bool {
	return t.Gateway != nil && t.Gateway.Instruction != nil && !t.Gateway.Instruction.Empty()
}

// InstructionCode returns the instruction code echoed in notifications, if any
func (t *Transaction) InstructionCode() string {
	if !t.HasInstruction() {
		return ""
	}
	return t.Gateway.Instruction.Code()
}

// ProviderReference returns the SmilePayNO or an empty string
func (t *Transaction) ProviderReference() string {
	if t.Gateway == nil {
		return ""
	}
	return t.Gateway.ProviderReference
}

// TruncateAmount drops any fractional part of amount
func TruncateAmount(amount decimal.Decimal) int64 {
	return amount.Truncate(0).IntPart()
}
