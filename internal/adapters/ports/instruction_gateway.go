package ports

import (
	"context"
	"net/url"
	"time"

	"github.com/kevin07696/smilepay-service/internal/domain"
)

// InstructionResponse is the parsed gateway reply to an instruction request
type InstructionResponse struct {
	PaymentDeadline time.Time

	Instruction domain.Instruction

	Status            string
	Description       string
	ProviderReference string // SmilePayNO

	Amount int64
}

// GatewayData converts the response to the transaction extension stored on success
func (r *InstructionResponse) GatewayData() *domain.GatewayData {
	return &domain.GatewayData{
		PaymentDeadline:   r.PaymentDeadline,
		ProviderReference: r.ProviderReference,
		Instruction:       r.Instruction,
	}
}

// InstructionGateway requests payment instructions from the gateway.
// Errors returned by RequestInstruction are gateway errors; no call is retried.
type InstructionGateway interface {
	// BuildInstructionRequest maps a provider and transaction to gateway query parameters
	BuildInstructionRequest(provider *domain.Provider, txn *domain.Transaction, callbackURL string) url.Values

	// RequestInstruction dispatches params to the provider's endpoint and parses the reply
	RequestInstruction(ctx context.Context, provider *domain.Provider, params url.Values) (*InstructionResponse, error)
}
