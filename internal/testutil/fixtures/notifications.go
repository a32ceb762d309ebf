package fixtures

import (
	"net/url"
	"strconv"

	"github.com/kevin07696/smilepay-service/internal/adapters/smilepay"
	"github.com/kevin07696/smilepay-service/internal/domain"
)

// NotificationParams builds the form a genuine gateway callback would carry for
// txn, with a valid Mid_smilepay checksum for seed
func NotificationParams(txn *domain.Transaction, seed, echoNonce string) url.Values {
	amount := txn.WholeAmount()
	code, err := smilepay.ComputeVerificationCode(seed, amount, echoNonce)
	if err != nil {
		panic(err)
	}

	params := url.Values{}
	params.Set(domain.FieldClassif, txn.MethodVariant.ClassificationCode())
	params.Set(domain.FieldReference, txn.Reference)
	params.Set(domain.FieldAmount, strconv.FormatInt(amount, 10))
	params.Set(domain.FieldEchoNonce, echoNonce)
	params.Set(domain.FieldVerifyCode, strconv.Itoa(code))
	params.Set(domain.FieldProcessDate, "20250102")
	params.Set(domain.FieldProcessTime, "120000")
	if txn.MethodVariant.HasInstructionCode() {
		params.Set(domain.FieldPaymentNo, txn.InstructionCode())
	}
	return params
}
