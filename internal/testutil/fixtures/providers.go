package fixtures

import (
	"github.com/google/uuid"

	"github.com/kevin07696/smilepay-service/internal/domain"
)

// ProviderBuilder provides fluent API for building provider configurations.
type ProviderBuilder struct {
	provider *domain.Provider
}

// NewProvider creates a complete test-environment bank transfer provider with seed 0042.
func NewProvider() *ProviderBuilder {
	return &ProviderBuilder{
		provider: &domain.Provider{
			ID:               uuid.NewString(),
			Code:             domain.ProviderCodeSmilePay,
			Name:             "SmilePay",
			MerchantID:       "DCVC01",
			ParameterCode:    "RVG2C01",
			VerifyKey:        "VK-SECRET",
			VerificationSeed: "0042",
			MethodVariant:    domain.MethodBankTransfer,
			Environment:      domain.EnvironmentTest,
		},
	}
}

func (b *ProviderBuilder) WithID(id string) *ProviderBuilder {
	b.provider.ID = id
	return b
}

func (b *ProviderBuilder) WithVariant(variant domain.MethodVariant) *ProviderBuilder {
	b.provider.MethodVariant = variant
	return b
}

func (b *ProviderBuilder) WithSeed(seed string) *ProviderBuilder {
	b.provider.VerificationSeed = seed
	return b
}

func (b *ProviderBuilder) WithCredentials(merchantID, parameterCode, verifyKey string) *ProviderBuilder {
	b.provider.MerchantID = merchantID
	b.provider.ParameterCode = parameterCode
	b.provider.VerifyKey = verifyKey
	return b
}

func (b *ProviderBuilder) WithEndpoint(endpoint string) *ProviderBuilder {
	b.provider.EndpointOverride = endpoint
	return b
}

func (b *ProviderBuilder) WithSecretPath(path string) *ProviderBuilder {
	b.provider.SecretPath = path
	return b
}

func (b *ProviderBuilder) Build() *domain.Provider {
	return b.provider
}

// InstructionFor returns a representative instruction for variant
func InstructionFor(variant domain.MethodVariant) domain.Instruction {
	switch variant {
	case domain.MethodBankTransfer:
		return domain.BankAccount{BankCode: "812", AccountNo: "9999000011112222"}
	case domain.MethodIbon:
		return domain.IbonCode{Number: "IB20250001"}
	case domain.MethodFamiPort:
		return domain.FamiPortCode{Number: "FM20250001"}
	case domain.MethodBarcode:
		return domain.Barcode{Part1: "140102Q6Z", Part2: "0000SP0001", Part3: "010235000000500"}
	}
	return nil
}
