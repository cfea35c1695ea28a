package payroll

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewDefault()
	require.NoError(t, err)
	return engine
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(MinorUnits), msgAndArgs...)
}

func profile(id string, monthly string) EmployeeProfile {
	return EmployeeProfile{ID: id, Name: "Test Employee", EmployeeNumber: "EMP-" + id, MonthlySalary: money(monthly)}
}

func present(v float64) *float64 { return &v }

func findItem(items []LineItem, code Code) (LineItem, bool) {
	for _, item := range items {
		if item.Code == code {
			return item, true
		}
	}
	return LineItem{}, false
}

func hasNotice(notices []Notice, code string) bool {
	for _, n := range notices {
		if n.Code == code {
			return true
		}
	}
	return false
}

func TestComputeFullAttendance(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.ComputePayroll(profile("e1", "30000"), PayPeriod{ID: "2024-01-A"}, 22, &AttendanceFacts{DaysPresent: present(22)})
	require.NoError(t, err)

	assertMoney(t, "30000.00", res.BasicPay)
	assertMoney(t, "32000.00", res.GrossPay)
	assert.True(t, res.NetPay.LessThan(res.GrossPay))
	assert.False(t, res.NetPay.IsNegative())

	pera, ok := findItem(res.Allowances, CodePERA)
	require.True(t, ok)
	assertMoney(t, "2000.00", pera.Amount)
	_, ok = findItem(res.Allowances, CodeRATA)
	assert.False(t, ok, "RATA requires a position amount")

	gsis, _ := findItem(res.Deductions, CodeGSIS)
	pagibig, _ := findItem(res.Deductions, CodePagIBIG)
	philhealth, _ := findItem(res.Deductions, CodePhilHealth)
	tax, _ := findItem(res.Deductions, CodeWithholdingTax)
	assertMoney(t, "2700.00", gsis.Amount)
	assertMoney(t, "100.00", pagibig.Amount)
	assertMoney(t, "880.00", philhealth.Amount)
	assertMoney(t, "26320.00", res.TaxableIncome)
	assertMoney(t, "823.05", tax.Amount)
	assertMoney(t, "4503.05", res.TotalDeductions)
	assertMoney(t, "27496.95", res.NetPay)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "bir-monthly-withholding@2023", res.TaxTable)
}

func TestComputeOmittedAttendanceIsFullAttendance(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.ComputePayroll(profile("e1", "30000"), PayPeriod{}, 22, nil)
	require.NoError(t, err)
	assertMoney(t, "30000.00", res.BasicPay)
	assert.True(t, res.Attendance.Defaulted)
	assert.Equal(t, float64(22), res.Attendance.DaysPresent)
}

func TestComputeProratesPartialAttendance(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.ComputePayroll(profile("e2", "25000"), PayPeriod{}, 22, &AttendanceFacts{DaysPresent: present(15)})
	require.NoError(t, err)
	assertMoney(t, "17045.45", res.BasicPay)
	assertMoney(t, "17045.45", res.ProratedPay)
	assertMoney(t, "0.00", res.LWOPDeduction)
}

func TestComputeLWOPReducesBasicPay(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.ComputePayroll(profile("e3", "28000"), PayPeriod{}, 22, &AttendanceFacts{DaysPresent: present(20), DaysLWOP: 2})
	require.NoError(t, err)

	assertMoney(t, "25454.55", res.ProratedPay)
	assertMoney(t, "2545.46", res.LWOPDeduction)
	assertMoney(t, "22909.09", res.BasicPay)
	assert.True(t, res.LWOPDeduction.IsPositive())
	assert.True(t, res.BasicPay.LessThan(res.ProratedPay))
	assert.True(t, hasNotice(res.Warnings, WarningDailyRateDerived))
}

func TestComputeHazardPayForHealthWorkers(t *testing.T) {
	engine := newTestEngine(t)
	p := profile("e4", "45000")
	p.Classification = "Health_Worker"

	res, err := engine.ComputePayroll(p, PayPeriod{}, 22, nil)
	require.NoError(t, err)

	hazard, ok := findItem(res.Allowances, CodeHazard)
	require.True(t, ok)
	assertMoney(t, "11250.00", hazard.Amount)
	assert.True(t, hazard.Taxable)
	assertMoney(t, "58250.00", res.GrossPay)

	tax, _ := findItem(res.Deductions, CodeWithholdingTax)
	assertMoney(t, "50498.12", res.TaxableIncome)
	assertMoney(t, "5308.02", tax.Amount)
}

func TestComputeHazardPayByDepartment(t *testing.T) {
	engine := newTestEngine(t)
	p := profile("e4b", "20000")
	p.Department = " Rural Health Unit "

	res, err := engine.ComputePayroll(p, PayPeriod{}, 22, nil)
	require.NoError(t, err)
	hazard, ok := findItem(res.Allowances, CodeHazard)
	require.True(t, ok)
	assertMoney(t, "5000.00", hazard.Amount)
}

func TestComputeNoHazardPayOutsideHealth(t *testing.T) {
	engine := newTestEngine(t)
	p := profile("e4c", "45000")
	p.Classification = "administrative"
	p.Department = "Municipal Treasurer"

	res, err := engine.ComputePayroll(p, PayPeriod{}, 22, nil)
	require.NoError(t, err)
	_, ok := findItem(res.Allowances, CodeHazard)
	assert.False(t, ok)
}

func TestComputeGSISOnBasicPay(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.ComputePayroll(profile("e5", "40000"), PayPeriod{}, 22, nil)
	require.NoError(t, err)
	gsis, ok := findItem(res.Deductions, CodeGSIS)
	require.True(t, ok)
	assertMoney(t, "3600.00", gsis.Amount)
	assert.Equal(t, "9% of basic pay", gsis.Basis)
}

func TestComputeClampsNegativeNet(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.Compute(Request{
		Profile:     profile("e6", "15000"),
		WorkingDays: 22,
		Attendance:  &AttendanceFacts{DaysPresent: present(5), DaysLWOP: 0},
		Deductions:  []DeductionRequest{{Code: CodeLoan, Amount: money("10000"), Reference: "LN-1"}},
	})
	require.NoError(t, err)

	assertMoney(t, "3409.09", res.BasicPay)
	assertMoney(t, "5409.09", res.GrossPay)
	assertMoney(t, "10555.57", res.TotalDeductions)
	assertMoney(t, "0.00", res.NetPay)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ErrorNegativeNetClamped, res.Errors[0].Code)
	assert.Contains(t, res.Errors[0].Message, "5146.48")
	require.NotNil(t, res.Errors[0].Amount)
	assertMoney(t, "-5146.48", *res.Errors[0].Amount)
	assert.True(t, res.HasErrors())

	loan, ok := findItem(res.Deductions, CodeLoan)
	require.True(t, ok)
	assert.Equal(t, "Loan Repayment", loan.Name)
	assert.Equal(t, "ad-hoc deduction ref LN-1", loan.Basis)
}

func TestComputeProrationIsMonotonic(t *testing.T) {
	engine := newTestEngine(t)
	prev := decimal.NewFromInt(-1)
	for d := 0.0; d <= 22; d += 0.5 {
		res, err := engine.ComputePayroll(profile("m", "31750.50"), PayPeriod{}, 22, &AttendanceFacts{DaysPresent: present(d)})
		require.NoError(t, err)
		assert.True(t, res.BasicPay.GreaterThanOrEqual(prev), "days %v", d)
		prev = res.BasicPay
	}
	assertMoney(t, "31750.50", prev)
}

func TestCalculateBasicPayLWOPAdditivity(t *testing.T) {
	rates := ResolveRates(profile("a", "27500"))
	for _, lwop := range []float64{0, 1, 2.5, 10, 30} {
		without := CalculateBasicPay(BasicPayInput{Rates: rates, WorkingDays: 22, DaysPresent: 12})
		with := CalculateBasicPay(BasicPayInput{Rates: rates, WorkingDays: 22, DaysPresent: 12, DaysLWOP: lwop})

		want := maxZero(without.BasicPay.Sub(roundMoney(rates.DailyRate.Mul(decimal.NewFromFloat(lwop)))))
		assert.True(t, want.Equal(with.BasicPay), "lwop %v: want %s got %s", lwop, want, with.BasicPay)
	}
}

func TestCalculateBasicPayFloorsAtZero(t *testing.T) {
	rates := ResolveRates(profile("a", "22000"))
	out := CalculateBasicPay(BasicPayInput{Rates: rates, WorkingDays: 22, DaysPresent: 2, DaysLWOP: 5})

	assertMoney(t, "0.00", out.BasicPay)
	assertMoney(t, "5000.00", out.LWOPDeduction)
	assert.True(t, hasNotice(out.Warnings, WarningLWOPExceedsPay))
}

func TestComputeGrossIdentityAndNonNegativeNet(t *testing.T) {
	engine := newTestEngine(t)
	salaries := []string{"0", "9999.99", "13000", "25000", "45000.33", "150000", "900000"}
	for _, salary := range salaries {
		for _, d := range []float64{0, 3, 11, 21.5, 22} {
			p := profile("g", salary)
			p.Classification = "medical"
			res, err := engine.Compute(Request{
				Profile:     p,
				WorkingDays: 22,
				Attendance:  &AttendanceFacts{DaysPresent: present(d)},
				Deductions:  []DeductionRequest{{Amount: money("2500")}},
			})
			require.NoError(t, err)

			assert.True(t, res.GrossPay.Equal(res.BasicPay.Add(res.TotalAllowances)), "salary %s days %v", salary, d)
			assert.True(t, res.TotalAllowances.Equal(sumItems(res.Allowances)))
			assert.True(t, res.TotalDeductions.Equal(sumItems(res.Deductions)))
			assert.False(t, res.NetPay.IsNegative())
			unclamped := res.GrossPay.Sub(res.TotalDeductions)
			assert.Equal(t, unclamped.IsNegative(), hasNotice(res.Errors, ErrorNegativeNetClamped))
		}
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	engine := newTestEngine(t)
	rata := money("5000")
	p := profile("i", "52000")
	p.RepresentationAllowance = &rata
	req := Request{
		Profile:     p,
		Period:      PayPeriod{ID: "p1", Year: 2024, Month: 3, Sequence: 2},
		WorkingDays: 21,
		Attendance:  &AttendanceFacts{DaysPresent: present(18), DaysLWOP: 1, DaysPaidLeave: 2},
	}

	first, err := engine.Compute(req)
	require.NoError(t, err)
	second, err := engine.Compute(req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	item, ok := findItem(first.Allowances, CodeRATA)
	require.True(t, ok)
	assertMoney(t, "5000.00", item.Amount)
	assert.False(t, item.Taxable)
}

func TestComputeWarnings(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("zero attendance", func(t *testing.T) {
		res, err := engine.ComputePayroll(profile("w", "20000"), PayPeriod{}, 22, &AttendanceFacts{DaysPresent: present(0)})
		require.NoError(t, err)
		assert.True(t, hasNotice(res.Warnings, WarningZeroAttendance))
		assertMoney(t, "0.00", res.BasicPay)
	})

	t.Run("missing salary", func(t *testing.T) {
		res, err := engine.ComputePayroll(profile("w", "0"), PayPeriod{}, 22, nil)
		require.NoError(t, err)
		assert.True(t, hasNotice(res.Warnings, WarningSalaryMissing))
		assertMoney(t, "0.00", res.BasicPay)
	})

	t.Run("attendance exceeds working days", func(t *testing.T) {
		res, err := engine.ComputePayroll(profile("w", "22000"), PayPeriod{}, 22, &AttendanceFacts{DaysPresent: present(25)})
		require.NoError(t, err)
		assert.True(t, hasNotice(res.Warnings, WarningAttendanceExceeds))
		assert.Equal(t, float64(22), res.Attendance.DaysPresent)
		assertMoney(t, "22000.00", res.BasicPay)
	})

	t.Run("working days defaulted from nothing", func(t *testing.T) {
		res, err := engine.ComputePayroll(profile("w", "22000"), PayPeriod{}, 0, nil)
		require.NoError(t, err)
		assert.True(t, hasNotice(res.Warnings, WarningWorkingDaysDefaulted))
		assert.Equal(t, DefaultWorkingDays, res.Attendance.WorkingDays)
	})

	t.Run("working days from period", func(t *testing.T) {
		res, err := engine.ComputePayroll(profile("w", "20000"), PayPeriod{WorkingDays: 20}, 0, &AttendanceFacts{DaysPresent: present(10)})
		require.NoError(t, err)
		assert.False(t, hasNotice(res.Warnings, WarningWorkingDaysDefaulted))
		assertMoney(t, "10000.00", res.BasicPay)
	})

	t.Run("explicit daily rate", func(t *testing.T) {
		p := profile("w", "22000")
		daily := money("1200")
		p.DailyRate = &daily
		res, err := engine.ComputePayroll(p, PayPeriod{}, 22, &AttendanceFacts{DaysPresent: present(21), DaysLWOP: 1})
		require.NoError(t, err)
		assert.False(t, hasNotice(res.Warnings, WarningDailyRateDerived))
		assertMoney(t, "1200.00", res.LWOPDeduction)
	})
}

func TestComputePaidLeaveCountsAsPaid(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.ComputePayroll(profile("l", "22000"), PayPeriod{}, 22, &AttendanceFacts{DaysPaidLeave: 4})
	require.NoError(t, err)
	assert.Equal(t, float64(18), res.Attendance.DaysPresent)
	assertMoney(t, "22000.00", res.BasicPay)
}

func TestComputeBasicPayOverride(t *testing.T) {
	engine := newTestEngine(t)
	override := money("12345.678")

	res, err := engine.ComputePayroll(profile("o", "30000"), PayPeriod{}, 22, &AttendanceFacts{DaysPresent: present(0), BasicPayOverride: &override})
	require.NoError(t, err)
	assertMoney(t, "12345.68", res.BasicPay)
	assert.True(t, res.Attendance.Overridden)
	assert.False(t, hasNotice(res.Warnings, WarningZeroAttendance))
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	engine := newTestEngine(t)
	negative := money("-1")
	mar21 := time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC)
	mar31 := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"negative salary", Request{Profile: profile("x", "-5")}, "Profile.MonthlySalary"},
		{"negative daily rate", Request{Profile: EmployeeProfile{ID: "x", DailyRate: &negative}}, "Profile.DailyRate"},
		{"negative working days", Request{Profile: profile("x", "100"), WorkingDays: -1}, "WorkingDays"},
		{"negative lwop", Request{Profile: profile("x", "100"), Attendance: &AttendanceFacts{DaysLWOP: -2}}, "Attendance.DaysLWOP"},
		{"bad month", Request{Profile: profile("x", "100"), Period: PayPeriod{Month: 13}}, "Period.Month"},
		{"end before start", Request{Profile: profile("x", "100"), Period: PayPeriod{StartDate: mar31, EndDate: mar21}}, "Period.EndDate"},
		{"start without end", Request{Profile: profile("x", "100"), Period: PayPeriod{StartDate: mar31}}, "Period.EndDate"},
		{"end without start", Request{Profile: profile("x", "100"), Period: PayPeriod{EndDate: mar21}}, "Period.StartDate"},
		{"negative ad-hoc", Request{Profile: profile("x", "100"), Deductions: []DeductionRequest{{Amount: negative}}}, "Deductions[0].Amount"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Compute(tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))

			var inputErr *InputError
			require.True(t, errors.As(err, &inputErr))
			var fields []string
			for _, f := range inputErr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tc.field)
		})
	}
}

func TestComputeSalaryOnlyProfile(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.ComputePayroll(EmployeeProfile{MonthlySalary: money("30000")}, PayPeriod{}, 22, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Employee.ID)
	assertMoney(t, "30000.00", res.BasicPay)
	assert.Empty(t, res.Errors)
}

type failingRule struct{}

func (failingRule) Code() Code { return "BROKEN" }

func (failingRule) Evaluate(AllowanceInput) (LineItem, bool, error) {
	return LineItem{}, false, errors.New("rule exploded")
}

type bonusRule struct{}

func (bonusRule) Code() Code { return "BONUS" }

func (bonusRule) Evaluate(in AllowanceInput) (LineItem, bool, error) {
	return LineItem{Code: "BONUS", Name: "Bonus", Amount: money("150.00"), Basis: "test", Taxable: true}, true, nil
}

func TestEngineExtraAllowanceRules(t *testing.T) {
	engine, err := NewDefault(WithAllowanceRule(failingRule{}), WithAllowanceRule(bonusRule{}), WithAllowanceRule(nil))
	require.NoError(t, err)

	res, err := engine.ComputePayroll(profile("x", "30000"), PayPeriod{}, 22, nil)
	require.NoError(t, err)

	assert.True(t, hasNotice(res.Warnings, WarningAllowanceRuleFailed))
	bonus, ok := findItem(res.Allowances, "BONUS")
	require.True(t, ok)
	assertMoney(t, "150.00", bonus.Amount)
	assertMoney(t, "2150.00", res.TotalAllowances)
}

func TestMergeNoticesDedupes(t *testing.T) {
	a := Notice{Code: "x", Message: "one"}
	b := Notice{Code: "x", Message: "two"}
	got := mergeNotices([]Notice{a, b}, nil, []Notice{a})
	assert.Equal(t, []Notice{a, b}, got)
}
