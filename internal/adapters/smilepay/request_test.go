package smilepay

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kevin07696/smilepay-service/internal/domain"
)

func testProvider(variant domain.MethodVariant) *domain.Provider {
	return &domain.Provider{
		ID:               "prov-1",
		Code:             domain.ProviderCodeSmilePay,
		MerchantID:       "DCVC01",
		ParameterCode:    "RVG2C01",
		VerifyKey:        "VK-SECRET",
		VerificationSeed: "0042",
		MethodVariant:    variant,
		Environment:      domain.EnvironmentTest,
	}
}

func TestBuildInstructionRequest(t *testing.T) {
	txn := &domain.Transaction{
		Reference:    "SO1001",
		Amount:       decimal.RequireFromString("500.75"),
		PartnerName:  "Lin Mei",
		PartnerEmail: "mei@example.com",
	}

	params := BuildInstructionRequest(testProvider(domain.MethodIbon), txn, "https://shop.example.com/payment/smilepay/callback/smilepay_ibon")

	assert.Equal(t, "RVG2C01", params.Get("Rvg2c"))
	assert.Equal(t, "DCVC01", params.Get("Dcvc"))
	assert.Equal(t, "VK-SECRET", params.Get("Verify_key"))
	assert.Equal(t, "SO1001", params.Get("Od_sob"))
	assert.Equal(t, "500", params.Get("Amount"), "amount is truncated, not rounded")
	assert.Equal(t, "4", params.Get("Pay_zg"))
	assert.Equal(t, "Lin Mei", params.Get("Pur_name"))
	assert.Equal(t, "N/A", params.Get("Mobile_number"))
	assert.Equal(t, "mei@example.com", params.Get("Email"))
	assert.Equal(t, "Order SO1001", params.Get("Remark"))
	assert.Equal(t, "https://shop.example.com/payment/smilepay/callback/smilepay_ibon", params.Get("Roturl"))
	assert.Equal(t, "Payment_OK", params.Get("Roturl_status"))
}

func TestBuildInstructionRequest_MethodCodes(t *testing.T) {
	txn := &domain.Transaction{Reference: "R", Amount: decimal.NewFromInt(1)}

	expected := map[domain.MethodVariant]string{
		domain.MethodBankTransfer: "2",
		domain.MethodBarcode:      "3",
		domain.MethodIbon:         "4",
		domain.MethodFamiPort:     "6",
	}
	for variant, code := range expected {
		params := BuildInstructionRequest(testProvider(variant), txn, "")
		assert.Equal(t, code, params.Get("Pay_zg"), string(variant))
	}
}

func TestCallbackURL(t *testing.T) {
	assert.Equal(t,
		"https://shop.example.com/payment/smilepay/callback/smilepay_atm",
		CallbackURL("https://shop.example.com/", domain.MethodBankTransfer))
}
