package payroll

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTaxTableBrackets(t *testing.T) {
	table, err := DefaultTaxTable()
	require.NoError(t, err)
	require.Len(t, table.Brackets, 6)
	assert.Equal(t, "bir-monthly-withholding@2023", table.Label())
	assert.Equal(t, 2023, table.Effective.Year())

	tests := []struct {
		taxable string
		want    string
	}{
		{"0", "0.00"},
		{"20833", "0.00"},
		{"20834", "0.15"},
		{"33333", "1875.00"},
		{"50000", "5208.40"},
		{"66667", "8541.80"},
		{"100000", "16875.05"},
		{"166667", "33541.80"},
		{"666667", "183541.80"},
		{"1000000", "300208.35"},
	}
	for _, tc := range tests {
		t.Run(tc.taxable, func(t *testing.T) {
			got, _ := table.Tax(money(tc.taxable))
			assertMoney(t, tc.want, got)
		})
	}
}

func TestTaxTableBracketBoundaries(t *testing.T) {
	table, err := DefaultTaxTable()
	require.NoError(t, err)

	bracket, ok := table.Bracket(money("33332.99"))
	require.True(t, ok)
	assertMoney(t, "20833.00", bracket.LowerBound)

	bracket, ok = table.Bracket(money("33333"))
	require.True(t, ok)
	assertMoney(t, "33333.00", bracket.LowerBound)

	_, ok = table.Bracket(money("-1"))
	assert.False(t, ok)
}

func TestParseTaxTableYAMLRejectsBadTables(t *testing.T) {
	tests := map[string]string{
		"version": "version: 2\nbrackets:\n  - over: \"0\"\n",
		"empty":   "version: 1\nname: x\n",
		"start":   "version: 1\nbrackets:\n  - over: \"100\"\n    rate: \"0.1\"\n",
		"order":   "version: 1\nbrackets:\n  - over: \"0\"\n  - over: \"500\"\n  - over: \"400\"\n",
		"rate":    "version: 1\nbrackets:\n  - over: \"0\"\n    rate: \"1.5\"\n",
		"number":  "version: 1\nbrackets:\n  - over: \"abc\"\n",
		"date":    "version: 1\neffective: \"soon\"\nbrackets:\n  - over: \"0\"\n",
		"syntax":  "version: [1\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTaxTableYAML([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTaxTable))
		})
	}
}

func TestNewEngineRejectsInvalidTable(t *testing.T) {
	rules, err := DefaultRuleSet()
	require.NoError(t, err)

	_, err = New(rules, TaxTable{Name: "empty"})
	assert.True(t, errors.Is(err, ErrInvalidTaxTable))
}
