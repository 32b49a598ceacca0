package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

// RoundMoney rounds a decimal amount to cents.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// ToMinorUnits converts a decimal amount to the smallest currency unit.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}

// GenerateIdempotencyKey builds a key unique per booking, payment type and
// attempt. Format: PAY-<TYPE>-<booking>-<random>
func GenerateIdempotencyKey(bookingID uuid.UUID, paymentType string) string {
	return fmt.Sprintf("PAY-%s-%s-%s",
		strings.ToUpper(paymentType),
		bookingID.String(),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
	)
}
