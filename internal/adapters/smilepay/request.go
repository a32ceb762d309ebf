package smilepay

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kevin07696/smilepay-service/internal/domain"
)

// Gateway request parameter names
const (
	paramParameterCode = "Rvg2c"
	paramMerchantID    = "Dcvc"
	paramVerifyKey     = "Verify_key"
	paramReference     = "Od_sob"
	paramAmount        = "Amount"
	paramMethod        = "Pay_zg"
	paramPayerName     = "Pur_name"
	paramPayerPhone    = "Mobile_number"
	paramPayerEmail    = "Email"
	paramRemark        = "Remark"
	paramReturnURL     = "Roturl"
	paramReturnStatus  = "Roturl_status"
)

// placeholder sent for absent payer contact fields
const notAvailable = "N/A"

// BuildInstructionRequest maps a provider configuration and transaction to the
// gateway's query parameters
func BuildInstructionRequest(provider *domain.Provider, txn *domain.Transaction, callbackURL string) url.Values {
	params := url.Values{}
	params.Set(paramParameterCode, provider.ParameterCode)
	params.Set(paramMerchantID, provider.MerchantID)
	params.Set(paramVerifyKey, provider.VerifyKey)
	params.Set(paramReference, txn.Reference)
	params.Set(paramAmount, strconv.FormatInt(txn.WholeAmount(), 10))
	params.Set(paramMethod, provider.MethodCode())
	params.Set(paramPayerName, orNotAvailable(txn.PartnerName))
	params.Set(paramPayerPhone, orNotAvailable(txn.PartnerPhone))
	params.Set(paramPayerEmail, orNotAvailable(txn.PartnerEmail))
	params.Set(paramRemark, "Order "+txn.Reference)
	params.Set(paramReturnURL, callbackURL)
	params.Set(paramReturnStatus, domain.RoturlStatusToken)
	return params
}

// CallbackURL returns the notification URL the gateway posts to for variant
func CallbackURL(baseURL string, variant domain.MethodVariant) string {
	return strings.TrimRight(baseURL, "/") + "/payment/smilepay/callback/" + variant.PaymentMethodCode()
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
