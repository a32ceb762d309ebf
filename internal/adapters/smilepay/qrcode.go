package smilepay

import (
	"fmt"
	"net/url"
	"time"
)

// QRCodeServiceURL renders a payload as a QR code image
const QRCodeServiceURL = "https://payment-code.atomroute.com/qrcode.php"

const twqrpDeadlineLayout = "20060102150405"

// ATMQRCodeURL returns a QR image URL carrying a TWQRP bank-transfer payload for the
// virtual account, or "" when the account is incomplete. The amount is expressed
// in cents (two trailing zeros) as the TWQRP D1 field requires.
func ATMQRCodeURL(amount int64, bankCode, accountNo string, deadline time.Time) string {
	if bankCode == "" || accountNo == "" {
		return ""
	}
	var due string
	if !deadline.IsZero() {
		due = deadline.In(taipei).Format(twqrpDeadlineLayout)
	}
	payload := fmt.Sprintf("TWQRP://台灣銀行轉帳/158/02/V1?D1=%d00&D5=%s&D6=%s&D12=%s",
		amount, bankCode, accountNo, due)
	return qrCodeURL(payload)
}

// IbonQRCodeURL returns a QR image URL for an ibon code, or "" when code is empty
func IbonQRCodeURL(code string) string {
	if code == "" {
		return ""
	}
	return qrCodeURL(code)
}

func qrCodeURL(payload string) string {
	return QRCodeServiceURL + "?code=" + url.QueryEscape(payload)
}
