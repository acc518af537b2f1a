package tabra

import (
	"crypto/rand"
	"fmt"
)

// receiptCodeLength is the random portion of a receipt number.
const receiptCodeLength = 10

// receiptAttempts bounds collision retries per issued receipt.
const receiptAttempts = 5

// randomReceiptNumber returns a fresh candidate receipt number.
// Uniqueness is enforced by the receipt_number unique index; callers
// retry on collision up to receiptAttempts times.
func randomReceiptNumber() (string, error) {
	code, err := generateCode(receiptCodeLength)
	if err != nil {
		return "", err
	}
	return "R-" + code, nil
}

// generateCode returns a random uppercase token of the requested length.
func generateCode(length int) (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
