package payroll

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRuleSet(t *testing.T) {
	rules, err := DefaultRuleSet()
	require.NoError(t, err)

	assert.Equal(t, "lgu-standard", rules.Name)
	var codes []Code
	for _, r := range rules.Allowances {
		codes = append(codes, r.Code())
	}
	assert.Equal(t, []Code{CodePERA, CodeRATA, CodeHazard}, codes)
	assertMoney(t, "0.09", rules.Contributions.GSIS.Rate)
	assert.True(t, rules.Contributions.GSIS.Cap.IsZero())
	assertMoney(t, "100.00", rules.Contributions.PagIBIG.Cap)
	assertMoney(t, "1800.00", rules.Contributions.PhilHealth.Cap)
}

func TestParseRuleSetYAMLErrors(t *testing.T) {
	tests := map[string]string{
		"version":     "version: 3\n",
		"no code":     "version: 1\nallowances:\n  - kind: fixed\n    amount: \"1\"\n",
		"duplicate":   "version: 1\nallowances:\n  - code: pera\n    kind: fixed\n  - code: PERA\n    kind: fixed\n",
		"kind":        "version: 1\nallowances:\n  - code: X\n    kind: bonus\n",
		"amount":      "version: 1\nallowances:\n  - code: X\n    kind: fixed\n    amount: \"-5\"\n",
		"expression":  "version: 1\nallowances:\n  - code: X\n    kind: fixed\n    eligible: \"employee.department ==\"\n",
		"non bool":    "version: 1\nallowances:\n  - code: X\n    kind: fixed\n    eligible: \"employee.department\"\n",
		"gsis rate":   "version: 1\ncontributions:\n  gsis:\n    rate: \"1.2\"\n",
		"pagibig cap": "version: 1\ncontributions:\n  pagibig:\n    rate: \"0.02\"\n    cap: \"-1\"\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRuleSetYAML([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRuleSet))
		})
	}
}

func TestLoadRuleSetFromFile(t *testing.T) {
	doc := `version: 1
name: province-override
allowances:
  - code: pera
    kind: fixed
    amount: "2500.00"
  - code: subsistence
    name: Subsistence Allowance
    kind: fixed
    amount: "1500"
    taxable: true
    eligible: employee.position == "nurse ii"
contributions:
  gsis:
    rate: "0.09"
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	rules, err := LoadRuleSet(path)
	require.NoError(t, err)
	table, err := DefaultTaxTable()
	require.NoError(t, err)
	engine, err := New(rules, table)
	require.NoError(t, err)
	assert.Equal(t, "province-override", engine.RuleSet())

	nurse := profile("n", "30000")
	nurse.Position = "Nurse II"
	res, err := engine.ComputePayroll(nurse, PayPeriod{}, 22, nil)
	require.NoError(t, err)

	pera, ok := findItem(res.Allowances, CodePERA)
	require.True(t, ok)
	assert.Equal(t, CodePERA.Name(), pera.Name)
	assertMoney(t, "2500.00", pera.Amount)
	sub, ok := findItem(res.Allowances, "SUBSISTENCE")
	require.True(t, ok)
	assert.Equal(t, "Subsistence Allowance", sub.Name)
	assertMoney(t, "4000.00", res.TotalAllowances)

	_, err = LoadRuleSet(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEligibility(t *testing.T) {
	rule, err := CompileEligibility(`employee.classification == "medical" && employee.employee_number.startsWith("RHU")`)
	require.NoError(t, err)

	p := EmployeeProfile{ID: "1", EmployeeNumber: "RHU-001", Classification: " MEDICAL "}
	ok, err := rule.Eval(p)
	require.NoError(t, err)
	assert.True(t, ok)

	p.EmployeeNumber = "TRS-002"
	ok, err = rule.Eval(p)
	require.NoError(t, err)
	assert.False(t, ok)

	var none *Eligibility
	ok, err = none.Eval(p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", none.String())

	_, err = CompileEligibility("   ")
	assert.Error(t, err)
	_, err = CompileEligibility("salary > 3")
	assert.Error(t, err)
}

func TestAllowanceCalculatorSkipsZeroAmounts(t *testing.T) {
	calc := NewAllowanceCalculator(
		NewFixedAllowance("ZERO", "", money("0"), true, nil),
		NewPercentOfBasicAllowance("PCT", "", money("0.10"), true, nil, ""),
	)

	out := calc.Calculate(AllowanceInput{BasicPay: money("0")})
	assert.Empty(t, out.Items)
	assert.True(t, out.Total.IsZero())

	out = calc.Calculate(AllowanceInput{BasicPay: money("12345.67")})
	require.Len(t, out.Items, 1)
	assert.Equal(t, "10% of basic pay", out.Items[0].Basis)
	assertMoney(t, "1234.57", out.Items[0].Amount)
	assertMoney(t, "0.00", out.NonTaxable)
}
