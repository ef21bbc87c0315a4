// Package money converts user-supplied decimal amounts into the integer
// minor units charged at the payment gateway.
package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrInvalidAmount is returned when a decimal string does not parse to a
// finite, positive number of cents.
var ErrInvalidAmount = errors.New("invalid amount")

// ErrInvalidSchedule is returned when a session window does not end after it starts.
var ErrInvalidSchedule = errors.New("scheduled end must be after scheduled start")

// AmountToCents parses a decimal currency string and returns the amount in
// integer cents. The cents value is rounded half-up, matching the gateway's
// minor-unit expectations ("12.5" -> 1250, "19.999" -> 2000).
// Returns ErrInvalidAmount for non-finite, zero, or negative results.
func AmountToCents(amount string) (int64, error) {
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidAmount
	}
	cents := int64(math.Round(f * 100))
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// SessionLength returns the session window length in whole minutes.
// Returns ErrInvalidSchedule unless end is strictly after start.
func SessionLength(start, end time.Time) (int, error) {
	if !end.After(start) {
		return 0, ErrInvalidSchedule
	}
	return int(end.Sub(start) / time.Minute), nil
}

// TotalAmount derives the total charge for a session from an hourly rate and
// a schedule window: rate x hours, rounded to two decimals and formatted
// with two decimal places (hourlyRate "20" over 90 minutes -> "30.00").
func TotalAmount(hourlyRate string, start, end time.Time) (string, error) {
	rate, err := strconv.ParseFloat(hourlyRate, 64)
	if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return "", ErrInvalidAmount
	}
	minutes, err := SessionLength(start, end)
	if err != nil {
		return "", err
	}
	total := math.Round(rate*float64(minutes)/60*100) / 100
	if total <= 0 {
		return "", ErrInvalidAmount
	}
	return fmt.Sprintf("%.2f", total), nil
}
