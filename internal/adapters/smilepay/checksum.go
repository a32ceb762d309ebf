package smilepay

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrAmountTooLarge is returned when an amount does not fit the 8-digit field
	ErrAmountTooLarge = errors.New("smilepay: amount exceeds 8 digits")
	// ErrNegativeAmount is returned for amounts below zero
	ErrNegativeAmount = errors.New("smilepay: amount is negative")
	// ErrInvalidSeed is returned when the verification seed contains non-digits
	ErrInvalidSeed = errors.New("smilepay: verification seed must be numeric")
)

const (
	seedWidth   = 4
	amountWidth = 8
	nonceWidth  = 4
)

// ComputeVerificationCode derives the Mid_smilepay checksum the gateway attaches to
// payment notifications.
//
// The digit string is seed (zero-padded to 4) + amount (zero-padded to 8) + the last
// 4 characters of echoNonce with every non-digit replaced by 9. The code is three
// times the sum of digits at odd positions plus nine times the sum at even positions,
// counting from zero.
func ComputeVerificationCode(seed string, amount int64, echoNonce string) (int, error) {
	if amount < 0 {
		return 0, ErrNegativeAmount
	}

	a, err := padSeed(seed)
	if err != nil {
		return 0, err
	}

	b := strconv.FormatInt(amount, 10)
	if len(b) > amountWidth {
		return 0, ErrAmountTooLarge
	}
	b = leftPad(b, amountWidth)

	d := a + b + nonceDigits(echoNonce)

	var odd, even int
	for i := 0; i < len(d); i++ {
		n := int(d[i] - '0')
		if i%2 == 1 {
			odd += n
		} else {
			even += n
		}
	}
	return odd*3 + even*9, nil
}

// VerifyVerificationCode reports whether expected is the decimal rendering of the
// checksum computed from seed, amount and echoNonce. Any computation error counts as
// a mismatch.
func VerifyVerificationCode(expected, seed string, amount int64, echoNonce string) bool {
	code, err := ComputeVerificationCode(seed, amount, echoNonce)
	if err != nil {
		return false
	}
	return strings.TrimSpace(expected) == strconv.Itoa(code)
}

func padSeed(seed string) (string, error) {
	seed = strings.TrimSpace(seed)
	if len(seed) > seedWidth {
		return "", ErrInvalidSeed
	}
	for i := 0; i < len(seed); i++ {
		if seed[i] < '0' || seed[i] > '9' {
			return "", ErrInvalidSeed
		}
	}
	return leftPad(seed, seedWidth), nil
}

// nonceDigits takes the trailing 4 characters of the nonce (all of it when shorter)
// and maps every non-digit to '9'
func nonceDigits(nonce string) string {
	runes := []rune(nonce)
	if len(runes) > nonceWidth {
		runes = runes[len(runes)-nonceWidth:]
	}
	out := make([]byte, len(runes))
	for i, r := range runes {
		if r >= '0' && r <= '9' {
			out[i] = byte(r)
		} else {
			out[i] = '9'
		}
	}
	return string(out)
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
