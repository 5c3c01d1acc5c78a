// Package structured implements structured payment references: a 10-digit
// sequence followed by two mod-97 check digits, usually written as
// +++XXX/XXXX/XXXXX+++ on a transfer.
package structured

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

const (
	baseDigits  = 10
	checkDigits = 2
	// Length of a structured id once cleaned.
	Length = baseDigits + checkDigits

	maxSequence = 9_999_999_999
)

var (
	ErrInvalidStructuredMessage = errors.New("invalid structured message")
	ErrSequenceExhausted        = errors.New("structured message sequence exhausted")
)

// Clean reduces a free-text payment reference to its ASCII digits, keeping
// leading zeros. Full-width digits are folded to ASCII first; any other rune,
// including circled, superscript and non-Latin-script digits, is dropped.
func Clean(message string) string {
	folded := width.Fold.String(message)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CheckDigits returns base mod 97, or 97 when the remainder is zero.
func CheckDigits(base uint64) int {
	if rem := int(base % 97); rem != 0 {
		return rem
	}
	return 97
}

// Valid reports whether digits is a complete structured id with matching check digits.
func Valid(digits string) bool {
	if len(digits) != Length {
		return false
	}
	base, err := strconv.ParseUint(digits[:baseDigits], 10, 64)
	if err != nil {
		return false
	}
	check, err := strconv.Atoi(digits[baseDigits:])
	if err != nil {
		return false
	}
	return CheckDigits(base) == check
}

// Format renders sequence number seq as a 12-digit structured id.
func Format(seq uint64) (string, error) {
	if seq > maxSequence {
		return "", ErrSequenceExhausted
	}
	return fmt.Sprintf("%010d%02d", seq, CheckDigits(seq)), nil
}

// Next returns the structured id following lastID. An empty lastID yields the first id.
func Next(lastID string) (string, error) {
	if lastID == "" {
		return Format(1)
	}
	if !Valid(lastID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStructuredMessage, lastID)
	}
	seq, _ := strconv.ParseUint(lastID[:baseDigits], 10, 64)
	return Format(seq + 1)
}

// Pretty renders a 12-digit id the way it is printed on a transfer form.
func Pretty(id string) string {
	if len(id) != Length {
		return id
	}
	return "+++" + id[:3] + "/" + id[3:7] + "/" + id[7:] + "+++"
}
