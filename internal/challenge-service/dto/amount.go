package dto

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var ErrBadAmount = errors.New("amount must be a decimal with at most two places")

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ParseAmount converte "10.00" (ou "10", "10.5") em centavos.
// Mais de duas casas decimais é rejeitado, nunca arredondado; valores fora
// de int64 também.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadAmount, s)
	}
	cents := d.Mul(hundred)
	if !cents.IsInteger() || cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %q", ErrBadAmount, s)
	}
	return cents.IntPart(), nil
}

// FormatAmount converte centavos na representação com duas casas.
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
