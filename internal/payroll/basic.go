package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type BasicPayInput struct {
	Rates       Rates
	WorkingDays int
	DaysPresent float64
	DaysLWOP    float64
	Override    *decimal.Decimal
}

type BasicPay struct {
	Prorated      decimal.Decimal
	BasicPay      decimal.Decimal
	LWOPDeduction decimal.Decimal
	Warnings      []Notice
}

// CalculateBasicPay prorates the monthly rate by attendance and then subtracts
// LWOP days at the daily rate. Attendance above the working days is not clamped here.
func CalculateBasicPay(in BasicPayInput) BasicPay {
	working := in.WorkingDays
	if working <= 0 {
		working = DefaultWorkingDays
	}

	var out BasicPay
	if in.Override != nil {
		out.Prorated = roundMoney(maxZero(*in.Override))
	} else {
		out.Prorated = roundMoney(in.Rates.MonthlyRate.Mul(days(in.DaysPresent)).Div(decimal.NewFromInt(int64(working))))
	}
	out.BasicPay = out.Prorated

	if in.DaysLWOP > 0 {
		out.LWOPDeduction = roundMoney(in.Rates.DailyRate.Mul(days(in.DaysLWOP)))
		out.BasicPay = out.Prorated.Sub(out.LWOPDeduction)
		if out.BasicPay.IsNegative() {
			out.Warnings = append(out.Warnings, Notice{
				Code:    WarningLWOPExceedsPay,
				Message: fmt.Sprintf("LWOP deduction %s exceeds prorated pay %s; basic pay floored at zero", out.LWOPDeduction.StringFixed(MinorUnits), out.Prorated.StringFixed(MinorUnits)),
				Amount:  amountPtr(out.BasicPay),
			})
			out.BasicPay = decimal.Zero
		}
	} else {
		out.LWOPDeduction = decimal.Zero
	}

	if in.DaysPresent == 0 && in.Override == nil {
		out.Warnings = append(out.Warnings, Notice{
			Code:    WarningZeroAttendance,
			Message: "zero attendance for period",
		})
	}
	return out
}
