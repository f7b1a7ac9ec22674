package database

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts cross the driver as text: written as "$n::numeric" from
// decimal.String and read back with "::text" so no precision is lost.

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d, nil
}
