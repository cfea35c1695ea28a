package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Aggregate folds the stage outputs into a Result. It is the only place that
// enforces a non-negative net pay.
func Aggregate(basic BasicPay, allowances Allowances, deductions Deductions, stageWarnings ...[]Notice) Result {
	res := Result{
		ProratedPay:     basic.Prorated,
		BasicPay:        basic.BasicPay,
		LWOPDeduction:   basic.LWOPDeduction,
		Allowances:      append([]LineItem{}, allowances.Items...),
		TotalAllowances: allowances.Total,
		Deductions:      deductions.Items(),
		TaxableIncome:   deductions.TaxableIncome,
		Errors:          []Notice{},
	}

	res.GrossPay = res.BasicPay.Add(res.TotalAllowances)
	res.TotalDeductions = sumItems(res.Deductions)
	net := res.GrossPay.Sub(res.TotalDeductions)
	if net.IsNegative() {
		shortfall := net.Neg()
		res.Errors = append(res.Errors, Notice{
			Code: ErrorNegativeNetClamped,
			Message: fmt.Sprintf("deductions %s exceeded gross pay %s by %s; net pay clamped to 0.00",
				res.TotalDeductions.StringFixed(MinorUnits),
				res.GrossPay.StringFixed(MinorUnits),
				shortfall.StringFixed(MinorUnits)),
			Amount: amountPtr(net),
		})
		net = decimal.Zero
	}
	res.NetPay = net

	all := append([][]Notice{}, stageWarnings...)
	all = append(all, basic.Warnings, allowances.Warnings, deductions.Warnings)
	res.Warnings = mergeNotices(all...)
	return res
}

// mergeNotices keeps the first occurrence of each code and message pair, in order.
func mergeNotices(groups ...[]Notice) []Notice {
	out := []Notice{}
	seen := map[string]bool{}
	for _, group := range groups {
		for _, n := range group {
			key := n.Code + "\x00" + n.Message
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, n)
		}
	}
	return out
}
