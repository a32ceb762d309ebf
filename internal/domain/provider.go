package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProviderCodeSmilePay identifies transactions and providers handled by this gateway
const ProviderCodeSmilePay = "smilepay"

// SmilePayEndpoint is the gateway's instruction API. SmilePay offers no sandbox,
// so both environments resolve to it unless overridden.
const SmilePayEndpoint = "https://ssl.smse.com.tw/api/SPPayment.asp"

// MethodVariant is the single payment method a provider configuration issues
type MethodVariant string

const (
	MethodBankTransfer MethodVariant = "bank_transfer" // ATM virtual account
	MethodBarcode      MethodVariant = "barcode"       // Convenience-store barcode
	MethodIbon         MethodVariant = "ibon"          // 7-Eleven ibon code
	MethodFamiPort     MethodVariant = "famiport"      // FamilyMart FamiPort code
)

// AllMethodVariants lists every supported variant in display order
var AllMethodVariants = []MethodVariant{
	MethodBankTransfer,
	MethodBarcode,
	MethodIbon,
	MethodFamiPort,
}

// Valid reports whether v is one of the supported variants
func (v MethodVariant) Valid() bool {
	switch v {
	case MethodBankTransfer, MethodBarcode, MethodIbon, MethodFamiPort:
		return true
	}
	return false
}

// MethodCode returns the gateway's Pay_zg identifier for the variant
func (v MethodVariant) MethodCode() string {
	switch v {
	case MethodBankTransfer:
		return "2"
	case MethodBarcode:
		return "3"
	case MethodIbon:
		return "4"
	case MethodFamiPort:
		return "6"
	}
	return ""
}

// ClassificationCode returns the Classif letter the gateway sends in notifications
func (v MethodVariant) ClassificationCode() string {
	switch v {
	case MethodBankTransfer:
		return "B"
	case MethodBarcode:
		return "C"
	case MethodIbon:
		return "E"
	case MethodFamiPort:
		return "F"
	}
	return ""
}

// PaymentMethodCode returns the platform-facing payment method code
func (v MethodVariant) PaymentMethodCode() string {
	switch v {
	case MethodBankTransfer:
		return "smilepay_atm"
	case MethodBarcode:
		return "smilepay_barcode"
	case MethodIbon:
		return "smilepay_ibon"
	case MethodFamiPort:
		return "smilepay_famiport"
	}
	return ""
}

// HasInstructionCode reports whether notifications for the variant echo an
// instruction code in Payment_no. Barcode notifications do not.
func (v MethodVariant) HasInstructionCode() bool {
	return v != MethodBarcode
}

// VariantFromClassification maps a notification Classif letter to its variant
func VariantFromClassification(classif string) (MethodVariant, bool) {
	for _, v := range AllMethodVariants {
		if v.ClassificationCode() == classif {
			return v, true
		}
	}
	return "", false
}

// ParseMethodCode maps a platform payment method code (e.g. "smilepay_atm") or a
// bare variant name to its variant
func ParseMethodCode(code string) (MethodVariant, bool) {
	code = strings.TrimSpace(code)
	for _, v := range AllMethodVariants {
		if v.PaymentMethodCode() == code || string(v) == code {
			return v, true
		}
	}
	return "", false
}

// DefaultMethodCodes returns the payment method codes offered for method selection
func DefaultMethodCodes() []string {
	codes := make([]string, 0, len(AllMethodVariants))
	for _, v := range AllMethodVariants {
		codes = append(codes, v.PaymentMethodCode())
	}
	return codes
}

// Environment selects the gateway endpoint
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentProduction Environment = "production"
)

// Provider holds one merchant's SmilePay configuration
type Provider struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`

	// Credentials issued by the gateway
	MerchantID    string `json:"merchant_id"`    // Dcvc
	ParameterCode string `json:"parameter_code"` // Rvg2c
	VerifyKey     string `json:"-"`              // Verify_key

	// VerificationSeed is the 4-digit merchant parameter used only by the checksum
	VerificationSeed string `json:"-"`

	MethodVariant MethodVariant `json:"method_variant"`
	Environment   Environment   `json:"environment"`

	// EndpointOverride replaces SmilePayEndpoint when set (tests, proxies)
	EndpointOverride string `json:"endpoint_override,omitempty"`

	// SecretPath points at secret-manager data holding VerifyKey and VerificationSeed
	SecretPath string `json:"secret_path,omitempty"`
}

// APIEndpoint returns the instruction endpoint for the provider's environment.
// Test and production share one endpoint; test merchants are distinguished by credentials.
func (p *Provider) APIEndpoint() string {
	if p.EndpointOverride != "" {
		return p.EndpointOverride
	}
	return SmilePayEndpoint
}

// MethodCode returns the Pay_zg code for the configured variant
func (p *Provider) MethodCode() string {
	return p.MethodVariant.MethodCode()
}

// Validate checks that the credentials required to request instructions are present
func (p *Provider) Validate() error {
	var missing []string
	if strings.TrimSpace(p.ParameterCode) == "" {
		missing = append(missing, "parameter_code")
	}
	if strings.TrimSpace(p.MerchantID) == "" {
		missing = append(missing, "merchant_id")
	}
	if strings.TrimSpace(p.VerifyKey) == "" {
		missing = append(missing, "verify_key")
	}
	if len(missing) > 0 {
		return NewDomainError(ErrorCodeConfigIncomplete,
			fmt.Sprintf("smilepay configuration incomplete: missing %s", strings.Join(missing, ", "))).
			WithDetail("provider_id", p.ID).
			WithDetail("missing", missing)
	}
	if !p.MethodVariant.Valid() {
		return NewDomainError(ErrorCodeConfigIncomplete,
			fmt.Sprintf("smilepay configuration has unknown payment method %q", p.MethodVariant)).
			WithDetail("provider_id", p.ID)
	}
	return nil
}
