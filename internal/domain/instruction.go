package domain

// Instruction is the payable artifact issued by the gateway. It is a closed
// union: BankAccount, IbonCode, FamiPortCode or Barcode.
type Instruction interface {
	// Variant returns the payment method the instruction belongs to
	Variant() MethodVariant
	// Code returns the value the gateway echoes in Payment_no; empty for barcodes
	Code() string
	// Empty reports whether the gateway left the instruction unpopulated
	Empty() bool

	isInstruction()
}

// BankAccount is an ATM virtual account
type BankAccount struct {
	BankCode  string `json:"bank_code"`
	AccountNo string `json:"account_no"`
}

func (BankAccount) Variant() MethodVariant { return MethodBankTransfer }
func (b BankAccount) Code() string         { return b.AccountNo }
func (b BankAccount) Empty() bool          { return b.AccountNo == "" }
func (BankAccount) isInstruction()         {}

// IbonCode is a 7-Eleven ibon payment code
type IbonCode struct {
	Number string `json:"number"`
}

func (IbonCode) Variant() MethodVariant { return MethodIbon }
func (c IbonCode) Code() string         { return c.Number }
func (c IbonCode) Empty() bool          { return c.Number == "" }
func (IbonCode) isInstruction()         {}

// FamiPortCode is a FamilyMart FamiPort payment code
type FamiPortCode struct {
	Number string `json:"number"`
}

func (FamiPortCode) Variant() MethodVariant { return MethodFamiPort }
func (c FamiPortCode) Code() string         { return c.Number }
func (c FamiPortCode) Empty() bool          { return c.Number == "" }
func (FamiPortCode) isInstruction()         {}

// Barcode is the three-segment convenience-store barcode
type Barcode struct {
	Part1 string `json:"part1"`
	Part2 string `json:"part2"`
	Part3 string `json:"part3"`
}

func (Barcode) Variant() MethodVariant { return MethodBarcode }
func (Barcode) Code() string           { return "" }
func (b Barcode) Empty() bool          { return b.Part1 == "" }
func (Barcode) isInstruction()         {}

// InstructionFields is the flat storage form of an Instruction, one column per field
type InstructionFields struct {
	AtmBankNo string
	AtmNo     string
	Barcode1  string
	Barcode2  string
	Barcode3  string
	IbonNo    string
	FamiNo    string
}

// FlattenInstruction converts an instruction to its storage form
func FlattenInstruction(i Instruction) InstructionFields {
	var f InstructionFields
	switch v := i.(type) {
	case BankAccount:
		f.AtmBankNo, f.AtmNo = v.BankCode, v.AccountNo
	case IbonCode:
		f.IbonNo = v.Number
	case FamiPortCode:
		f.FamiNo = v.Number
	case Barcode:
		f.Barcode1, f.Barcode2, f.Barcode3 = v.Part1, v.Part2, v.Part3
	}
	return f
}

// Instruction rebuilds the instruction for variant, or nil when the fields for
// that variant are empty
func (f InstructionFields) Instruction(variant MethodVariant) Instruction {
	var i Instruction
	switch variant {
	case MethodBankTransfer:
		i = BankAccount{BankCode: f.AtmBankNo, AccountNo: f.AtmNo}
	case MethodIbon:
		i = IbonCode{Number: f.IbonNo}
	case MethodFamiPort:
		i = FamiPortCode{Number: f.FamiNo}
	case MethodBarcode:
		i = Barcode{Part1: f.Barcode1, Part2: f.Barcode2, Part3: f.Barcode3}
	default:
		return nil
	}
	if i.Empty() {
		return nil
	}
	return i
}
