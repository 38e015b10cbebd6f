package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses a quantity string, tolerating thousand separators and
// stray unit prefixes the ERP occasionally sends ("1,250", "pcs 12.5").
func ParseDecimal(value string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	re := regexp.MustCompile(`-?\d+(\.\d+)?`)
	match := re.FindString(cleaned)
	if match == "" {
		return decimal.Zero, errors.New("invalid decimal value: " + value)
	}
	return decimal.NewFromString(match)
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	if len(defaults) > 0 {
		return defaults[0]
	}
	var zero T
	return zero
}

func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func StringPtr(s string) *string {
	return &s
}
