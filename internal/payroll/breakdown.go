package payroll

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Breakdown struct {
	Employee   EmployeeRef     `json:"employee"`
	Period     BreakdownPeriod `json:"period"`
	Salary     SalarySection   `json:"salary"`
	Allowances LineItemSection `json:"allowances"`
	Deductions LineItemSection `json:"deductions"`
	Summary    SummarySection  `json:"summary"`
	Warnings   []Notice        `json:"warnings"`
	Errors     []Notice        `json:"errors"`
}

type BreakdownPeriod struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Coverage string `json:"coverage"`
	PayDate  string `json:"payDate,omitempty"`
}

type SalarySection struct {
	MonthlyRate   Figure `json:"monthlyRate"`
	DailyRate     Figure `json:"dailyRate"`
	ProratedPay   Figure `json:"proratedPay"`
	LWOPDeduction Figure `json:"lwopDeduction"`
	BasicPay      Figure `json:"basicPay"`
	Proration     string `json:"proration"`
}

type LineItemSection struct {
	Items    []BreakdownLine `json:"items"`
	Subtotal Figure          `json:"subtotal"`
}

type BreakdownLine struct {
	Code   Code   `json:"code"`
	Name   string `json:"name"`
	Amount Figure `json:"amount"`
	Basis  string `json:"basis"`
}

type SummarySection struct {
	GrossPay        Figure `json:"grossPay"`
	TaxableIncome   Figure `json:"taxableIncome"`
	TotalDeductions Figure `json:"totalDeductions"`
	NetPay          Figure `json:"netPay"`
}

// Figure pairs an amount with its display text.
type Figure struct {
	Value   decimal.Decimal `json:"value"`
	Display string          `json:"display"`
}

var displayPrinter = message.NewPrinter(language.English)

func figure(d decimal.Decimal) Figure {
	return Figure{Value: d, Display: displayAmount(d)}
}

// displayAmount groups the whole part of the fixed-point text without going
// through a float.
func displayAmount(d decimal.Decimal) string {
	text := d.StringFixed(MinorUnits)
	sign := ""
	if rest, ok := strings.CutPrefix(text, "-"); ok {
		sign, text = "-", rest
	}
	whole, frac, _ := strings.Cut(text, ".")
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = displayPrinter.Sprintf("%d", n)
	}
	return sign + whole + "." + frac
}

// BuildBreakdown regroups a Result for payslip display. It only formats figures
// the Result already carries.
func BuildBreakdown(res Result) Breakdown {
	b := Breakdown{
		Employee: res.Employee,
		Period: BreakdownPeriod{
			ID:       res.Period.ID,
			Label:    periodLabel(res.Period),
			Coverage: periodCoverage(res.Period),
		},
		Salary: SalarySection{
			MonthlyRate:   figure(res.Rates.MonthlyRate),
			DailyRate:     figure(res.Rates.DailyRate),
			ProratedPay:   figure(res.ProratedPay),
			LWOPDeduction: figure(res.LWOPDeduction),
			BasicPay:      figure(res.BasicPay),
			Proration:     prorationText(res.Attendance),
		},
		Allowances: section(res.Allowances, res.TotalAllowances),
		Deductions: section(res.Deductions, res.TotalDeductions),
		Summary: SummarySection{
			GrossPay:        figure(res.GrossPay),
			TaxableIncome:   figure(res.TaxableIncome),
			TotalDeductions: figure(res.TotalDeductions),
			NetPay:          figure(res.NetPay),
		},
		Warnings: append([]Notice{}, res.Warnings...),
		Errors:   append([]Notice{}, res.Errors...),
	}
	if !res.Period.PayDate.IsZero() {
		b.Period.PayDate = res.Period.PayDate.Format("2006-01-02")
	}
	return b
}

func section(items []LineItem, subtotal decimal.Decimal) LineItemSection {
	out := LineItemSection{Items: make([]BreakdownLine, 0, len(items)), Subtotal: figure(subtotal)}
	for _, item := range items {
		out.Items = append(out.Items, BreakdownLine{Code: item.Code, Name: item.Name, Amount: figure(item.Amount), Basis: item.Basis})
	}
	return out
}

func prorationText(a ResolvedAttendance) string {
	if a.Overridden {
		return "basic pay override"
	}
	text := fmt.Sprintf("%g of %d working days paid", a.PaidDays(), a.WorkingDays)
	if a.DaysPaidLeave > 0 {
		text += fmt.Sprintf(" (%g on paid leave)", a.DaysPaidLeave)
	}
	if a.DaysLWOP > 0 {
		text += fmt.Sprintf(", %g days LWOP", a.DaysLWOP)
	}
	return text
}

func periodLabel(p PeriodRef) string {
	if p.Year == 0 || p.Month == 0 {
		return p.ID
	}
	label := fmt.Sprintf("%04d-%02d", p.Year, p.Month)
	switch p.Sequence {
	case 1:
		label += " (1st half)"
	case 2:
		label += " (2nd half)"
	}
	return label
}

func periodCoverage(p PeriodRef) string {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return ""
	}
	return p.StartDate.Format("2006-01-02") + " to " + p.EndDate.Format("2006-01-02")
}
