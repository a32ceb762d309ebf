package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodVariant_Codes(t *testing.T) {
	tests := []struct {
		variant     MethodVariant
		methodCode  string
		classif     string
		paymentCode string
		hasCode     bool
	}{
		{MethodBankTransfer, "2", "B", "smilepay_atm", true},
		{MethodBarcode, "3", "C", "smilepay_barcode", false},
		{MethodIbon, "4", "E", "smilepay_ibon", true},
		{MethodFamiPort, "6", "F", "smilepay_famiport", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			assert.True(t, tt.variant.Valid())
			assert.Equal(t, tt.methodCode, tt.variant.MethodCode())
			assert.Equal(t, tt.classif, tt.variant.ClassificationCode())
			assert.Equal(t, tt.paymentCode, tt.variant.PaymentMethodCode())
			assert.Equal(t, tt.hasCode, tt.variant.HasInstructionCode())

			fromClassif, ok := VariantFromClassification(tt.classif)
			require.True(t, ok)
			assert.Equal(t, tt.variant, fromClassif)

			parsed, ok := ParseMethodCode(tt.paymentCode)
			require.True(t, ok)
			assert.Equal(t, tt.variant, parsed)

			parsed, ok = ParseMethodCode(string(tt.variant))
			require.True(t, ok)
			assert.Equal(t, tt.variant, parsed)
		})
	}
}

func TestMethodVariant_Unknown(t *testing.T) {
	assert.False(t, MethodVariant("credit_card").Valid())
	assert.Empty(t, MethodVariant("credit_card").MethodCode())

	_, ok := VariantFromClassification("A")
	assert.False(t, ok)

	_, ok = ParseMethodCode("smilepay_card")
	assert.False(t, ok)
}

func TestDefaultMethodCodes(t *testing.T) {
	assert.Equal(t,
		[]string{"smilepay_atm", "smilepay_barcode", "smilepay_ibon", "smilepay_famiport"},
		DefaultMethodCodes())
}

func TestProvider_APIEndpoint(t *testing.T) {
	p := &Provider{Environment: EnvironmentProduction}
	assert.Equal(t, SmilePayEndpoint, p.APIEndpoint())

	p.Environment = EnvironmentTest
	assert.Equal(t, SmilePayEndpoint, p.APIEndpoint())

	p.EndpointOverride = "http://127.0.0.1:8081/api/SPPayment.asp"
	assert.Equal(t, "http://127.0.0.1:8081/api/SPPayment.asp", p.APIEndpoint())
}

func TestProvider_Validate(t *testing.T) {
	valid := func() *Provider {
		return &Provider{
			ID:            "p1",
			MerchantID:    "1234",
			ParameterCode: "RVG",
			VerifyKey:     "key",
			MethodVariant: MethodIbon,
			CreatedAt:     time.Now(),
		}
	}

	t.Run("complete", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing_credentials", func(t *testing.T) {
		p := valid()
		p.VerifyKey = " "
		p.MerchantID = ""

		err := p.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigIncomplete)
		assert.Contains(t, err.Error(), "merchant_id, verify_key")

		var domainErr *DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "p1", domainErr.Details["provider_id"])
	})

	t.Run("unknown_variant", func(t *testing.T) {
		p := valid()
		p.MethodVariant = "cash"
		assert.ErrorIs(t, p.Validate(), ErrConfigIncomplete)
	})
}

func TestInstructionFields_RoundTrip(t *testing.T) {
	instructions := []Instruction{
		BankAccount{BankCode: "812", AccountNo: "12345678901234"},
		IbonCode{Number: "IB123"},
		FamiPortCode{Number: "FM456"},
		Barcode{Part1: "1", Part2: "2", Part3: "3"},
	}

	for _, instr := range instructions {
		t.Run(string(instr.Variant()), func(t *testing.T) {
			fields := FlattenInstruction(instr)
			assert.Equal(t, instr, fields.Instruction(instr.Variant()))
		})
	}

	assert.Nil(t, InstructionFields{}.Instruction(MethodIbon))
	assert.Nil(t, InstructionFields{IbonNo: "x"}.Instruction("cash"))
}
