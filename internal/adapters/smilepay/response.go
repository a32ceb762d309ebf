package smilepay

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/kevin07696/smilepay-service/internal/adapters/ports"
	"github.com/kevin07696/smilepay-service/internal/domain"
)

// PayEndDateLayout is the gateway's deadline format, expressed in Taiwan time
const PayEndDateLayout = "2006/01/02 15:04:05"

const statusSuccess = "1"

// taipei is fixed at UTC+8; Taiwan has no daylight saving
var taipei = loadTaipei()

func loadTaipei() *time.Location {
	if loc, err := time.LoadLocation("Asia/Taipei"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}

// instructionXML mirrors the gateway's XML reply. The root element name is not
// fixed, so no XMLName is declared.
type instructionXML struct {
	Status     string `xml:"Status"`
	Desc       string `xml:"Desc"`
	SmilePayNO string `xml:"SmilePayNO"`
	Amount     string `xml:"Amount"`
	PayEndDate string `xml:"PayEndDate"`
	AtmBankNo  string `xml:"AtmBankNo"`
	AtmNo      string `xml:"AtmNo"`
	IbonNo     string `xml:"IbonNo"`
	FamiNO     string `xml:"FamiNO"`
	Barcode1   string `xml:"Barcode1"`
	Barcode2   string `xml:"Barcode2"`
	Barcode3   string `xml:"Barcode3"`
}

// ParseInstructionResponse decodes the gateway's XML body. Only the fields of the
// requested variant are required.
func ParseInstructionResponse(body []byte, variant domain.MethodVariant) (*ports.InstructionResponse, error) {
	var raw instructionXML
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = charsetReader
	if err := decoder.Decode(&raw); err != nil {
		return nil, newGatewayError(KindMalformedResponse, "response is not valid XML", err)
	}
	raw.trim()

	if raw.Status == "" {
		return nil, newGatewayError(KindMalformedResponse, "response has no Status", nil)
	}
	if raw.Status != statusSuccess {
		desc := raw.Desc
		if desc == "" {
			desc = "unknown error (status " + raw.Status + ")"
		}
		return nil, newGatewayError(KindRejected, desc, nil)
	}

	resp := &ports.InstructionResponse{
		Status:            raw.Status,
		Description:       raw.Desc,
		ProviderReference: raw.SmilePayNO,
	}
	if resp.ProviderReference == "" {
		return nil, missingField("SmilePayNO")
	}

	if raw.PayEndDate == "" {
		return nil, missingField("PayEndDate")
	}
	deadline, err := time.ParseInLocation(PayEndDateLayout, raw.PayEndDate, taipei)
	if err != nil {
		return nil, newGatewayError(KindMalformedResponse, "PayEndDate is not a valid date", err)
	}
	resp.PaymentDeadline = deadline

	if raw.Amount != "" {
		amount, err := strconv.ParseInt(raw.Amount, 10, 64)
		if err != nil {
			return nil, newGatewayError(KindMalformedResponse, "Amount is not an integer", err)
		}
		resp.Amount = amount
	}

	instruction, err := raw.instruction(variant)
	if err != nil {
		return nil, err
	}
	resp.Instruction = instruction

	return resp, nil
}

func (x *instructionXML) trim() {
	for _, f := range []*string{
		&x.Status, &x.Desc, &x.SmilePayNO, &x.Amount, &x.PayEndDate,
		&x.AtmBankNo, &x.AtmNo, &x.IbonNo, &x.FamiNO,
		&x.Barcode1, &x.Barcode2, &x.Barcode3,
	} {
		*f = strings.TrimSpace(*f)
	}
}

func (x *instructionXML) instruction(variant domain.MethodVariant) (domain.Instruction, error) {
	switch variant {
	case domain.MethodBankTransfer:
		if x.AtmBankNo == "" {
			return nil, missingField("AtmBankNo")
		}
		if x.AtmNo == "" {
			return nil, missingField("AtmNo")
		}
		return domain.BankAccount{BankCode: x.AtmBankNo, AccountNo: x.AtmNo}, nil
	case domain.MethodIbon:
		if x.IbonNo == "" {
			return nil, missingField("IbonNo")
		}
		return domain.IbonCode{Number: x.IbonNo}, nil
	case domain.MethodFamiPort:
		if x.FamiNO == "" {
			return nil, missingField("FamiNO")
		}
		return domain.FamiPortCode{Number: x.FamiNO}, nil
	case domain.MethodBarcode:
		for i, v := range []string{x.Barcode1, x.Barcode2, x.Barcode3} {
			if v == "" {
				return nil, missingField("Barcode" + strconv.Itoa(i+1))
			}
		}
		return domain.Barcode{Part1: x.Barcode1, Part2: x.Barcode2, Part3: x.Barcode3}, nil
	}
	return nil, newGatewayError(KindMalformedResponse, fmt.Sprintf("unsupported payment method %q", variant), nil)
}

func missingField(name string) *GatewayError {
	return newGatewayError(KindMalformedResponse, "response is missing "+name, nil)
}

// charsetReader lets the decoder accept Big5 and other legacy encodings the
// gateway may declare in its XML prolog
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
