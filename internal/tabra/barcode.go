package tabra

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// BarcodeLength is the exact digit count of a card barcode.
const BarcodeLength = 13

// barcodeAttempts bounds collision retries per generated barcode.
const barcodeAttempts = 5

// NormalizeBarcode strips everything but decimal digits from scanner
// or form input. Validation happens separately in ValidateBarcode.
func NormalizeBarcode(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateBarcode rejects anything that is not exactly 13 ASCII digits.
func ValidateBarcode(barcode string) error {
	if len(barcode) != BarcodeLength {
		return &ValidationError{Field: "barcode", Reason: fmt.Sprintf("must be exactly %d digits", BarcodeLength)}
	}
	for i := 0; i < len(barcode); i++ {
		if barcode[i] < '0' || barcode[i] > '9' {
			return &ValidationError{Field: "barcode", Reason: "must contain only digits"}
		}
	}
	return nil
}

// randomBarcode returns a uniformly random 13-digit barcode.
func randomBarcode() (string, error) {
	buf := make([]byte, BarcodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	out := make([]byte, BarcodeLength)
	for i, b := range buf {
		out[i] = '0' + b%10
	}
	return string(out), nil
}
