package payroll

import (
	"github.com/shopspring/decimal"
)

const (
	// MinorUnits is the precision every produced amount is rounded to.
	MinorUnits int32 = 2

	// StandardDivisor converts a monthly rate into a daily rate when none is on file.
	StandardDivisor = 22

	DefaultWorkingDays = 22
)

// roundMoney rounds half away from zero, which is half-up for every non-negative amount.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnits)
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func sumItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}

func days(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

func amountPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
