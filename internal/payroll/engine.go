package payroll

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Engine computes payroll results. It holds only immutable configuration, so a
// single Engine may be shared by any number of goroutines.
type Engine struct {
	ruleSet    string
	table      TaxTable
	allowances AllowanceCalculator
	deductions DeductionCalculator
}

type Option func(*engineOptions)

type engineOptions struct {
	extraAllowances []AllowanceRule
}

// WithAllowanceRule appends a rule after those declared in the rule set.
func WithAllowanceRule(rule AllowanceRule) Option {
	return func(o *engineOptions) {
		if rule != nil {
			o.extraAllowances = append(o.extraAllowances, rule)
		}
	}
}

func New(rules RuleSet, table TaxTable, opts ...Option) (*Engine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}
	allowances := append(append([]AllowanceRule{}, rules.Allowances...), o.extraAllowances...)
	return &Engine{
		ruleSet:    rules.Name,
		table:      table,
		allowances: NewAllowanceCalculator(allowances...),
		deductions: NewDeductionCalculator(rules.Contributions, table),
	}, nil
}

// NewDefault builds an engine from the embedded rule set and tax table.
func NewDefault(opts ...Option) (*Engine, error) {
	rules, err := DefaultRuleSet()
	if err != nil {
		return nil, err
	}
	table, err := DefaultTaxTable()
	if err != nil {
		return nil, err
	}
	return New(rules, table, opts...)
}

func (e *Engine) TaxTable() TaxTable {
	return e.table
}

func (e *Engine) RuleSet() string {
	return e.ruleSet
}

// ComputePayroll is Compute without ad-hoc deductions.
func (e *Engine) ComputePayroll(profile EmployeeProfile, period PayPeriod, workingDays int, attendance *AttendanceFacts) (Result, error) {
	return e.Compute(Request{Profile: profile, Period: period, WorkingDays: workingDays, Attendance: attendance})
}

// Compute returns an error only for contract violations; every business-rule
// anomaly is reported through Result.Warnings and Result.Errors.
func (e *Engine) Compute(req Request) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}

	working, workingWarnings := resolveWorkingDays(req)
	attendance, attendanceWarnings := resolveAttendance(working, req.Attendance)

	rates := ResolveRates(req.Profile)
	var rateWarnings []Notice
	if rates.Derived {
		rateWarnings = append(rateWarnings, Notice{
			Code:    WarningDailyRateDerived,
			Message: fmt.Sprintf("no daily rate on file; derived as monthly rate / %d", StandardDivisor),
		})
	}

	var override *decimal.Decimal
	if req.Attendance != nil {
		override = req.Attendance.BasicPayOverride
	}
	basic := CalculateBasicPay(BasicPayInput{
		Rates:       rates,
		WorkingDays: attendance.WorkingDays,
		DaysPresent: attendance.PaidDays(),
		DaysLWOP:    attendance.DaysLWOP,
		Override:    override,
	})

	allowances := e.allowances.Calculate(AllowanceInput{Profile: req.Profile, Rates: rates, BasicPay: basic.BasicPay})
	gross := basic.BasicPay.Add(allowances.Total)
	deductions := e.deductions.Calculate(DeductionInput{
		BasicPay:             basic.BasicPay,
		GrossPay:             gross,
		NonTaxableAllowances: allowances.NonTaxable,
		AdHoc:                req.Deductions,
	})

	var salaryWarnings []Notice
	if rates.MonthlyRate.IsZero() {
		salaryWarnings = append(salaryWarnings, Notice{
			Code:    WarningSalaryMissing,
			Message: "monthly salary missing or zero; basic pay is zero",
		})
	}

	res := Aggregate(basic, allowances, deductions, workingWarnings, attendanceWarnings, rateWarnings, salaryWarnings)
	res.Employee = EmployeeRef{
		ID:             req.Profile.ID,
		Name:           req.Profile.Name,
		EmployeeNumber: req.Profile.EmployeeNumber,
		Department:     req.Profile.Department,
		Position:       req.Profile.Position,
		Classification: req.Profile.Classification,
	}
	res.Period = PeriodRef{
		ID:        req.Period.ID,
		Year:      req.Period.Year,
		Month:     req.Period.Month,
		Sequence:  req.Period.Sequence,
		StartDate: req.Period.StartDate,
		EndDate:   req.Period.EndDate,
		PayDate:   req.Period.PayDate,
	}
	res.Rates = rates
	res.Attendance = attendance
	res.TaxTable = e.table.Label()
	return res, nil
}

func resolveWorkingDays(req Request) (int, []Notice) {
	switch {
	case req.WorkingDays > 0:
		return req.WorkingDays, nil
	case req.Period.WorkingDays > 0:
		return req.Period.WorkingDays, nil
	default:
		return DefaultWorkingDays, []Notice{{
			Code:    WarningWorkingDaysDefaulted,
			Message: fmt.Sprintf("working days not specified; defaulted to %d", DefaultWorkingDays),
		}}
	}
}

func resolveAttendance(working int, facts *AttendanceFacts) (ResolvedAttendance, []Notice) {
	out := ResolvedAttendance{WorkingDays: working}
	if facts == nil {
		out.DaysPresent = float64(working)
		out.Defaulted = true
		return out, nil
	}

	out.DaysLWOP = facts.DaysLWOP
	out.DaysPaidLeave = facts.DaysPaidLeave
	out.Overridden = facts.BasicPayOverride != nil
	remaining := math.Max(0, float64(working)-facts.DaysLWOP-facts.DaysPaidLeave)
	if facts.DaysPresent == nil {
		out.DaysPresent = remaining
		out.Defaulted = true
		return out, nil
	}

	out.DaysPresent = *facts.DaysPresent
	var warnings []Notice
	if total := out.DaysPresent + out.DaysLWOP + out.DaysPaidLeave; total > float64(working) {
		warnings = append(warnings, Notice{
			Code:    WarningAttendanceExceeds,
			Message: fmt.Sprintf("attendance of %g days exceeds %d working days; days present clamped to %g", total, working, remaining),
		})
		out.DaysPresent = remaining
	}
	return out, warnings
}
