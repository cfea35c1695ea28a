package payroll

import "github.com/shopspring/decimal"

type Rates struct {
	MonthlyRate decimal.Decimal `json:"monthlyRate"`
	DailyRate   decimal.Decimal `json:"dailyRate"`
	Derived     bool            `json:"dailyRateDerived"`
}

// ResolveRates prefers an explicit positive daily rate and otherwise divides the
// monthly salary by StandardDivisor.
func ResolveRates(profile EmployeeProfile) Rates {
	monthly := roundMoney(profile.MonthlySalary)
	if profile.DailyRate != nil && profile.DailyRate.IsPositive() {
		return Rates{MonthlyRate: monthly, DailyRate: roundMoney(*profile.DailyRate)}
	}
	daily := roundMoney(monthly.Div(decimal.NewFromInt(StandardDivisor)))
	return Rates{MonthlyRate: monthly, DailyRate: daily, Derived: true}
}
