package payroll

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const taxTableSchemaVersion = 1

var ErrInvalidTaxTable = errors.New("invalid tax table")

type TaxBracket struct {
	LowerBound decimal.Decimal `json:"lowerBound"`
	BaseTax    decimal.Decimal `json:"baseTax"`
	Rate       decimal.Decimal `json:"rate"`
}

// TaxTable is a monthly graduated withholding table. Brackets are sorted by
// LowerBound and the first bracket starts at zero.
type TaxTable struct {
	Name      string       `json:"name"`
	Revision  string       `json:"revision"`
	Effective time.Time    `json:"effective"`
	Brackets  []TaxBracket `json:"brackets"`
}

func (t TaxTable) Label() string {
	if t.Revision == "" {
		return t.Name
	}
	return t.Name + "@" + t.Revision
}

// Bracket returns the bracket with the greatest lower bound not above taxable.
func (t TaxTable) Bracket(taxable decimal.Decimal) (TaxBracket, bool) {
	idx := sort.Search(len(t.Brackets), func(i int) bool {
		return t.Brackets[i].LowerBound.GreaterThan(taxable)
	}) - 1
	if idx < 0 {
		return TaxBracket{}, false
	}
	return t.Brackets[idx], true
}

func (t TaxTable) Tax(taxable decimal.Decimal) (decimal.Decimal, TaxBracket) {
	bracket, ok := t.Bracket(taxable)
	if !ok {
		return decimal.Zero, TaxBracket{}
	}
	excess := taxable.Sub(bracket.LowerBound)
	return roundMoney(bracket.BaseTax.Add(excess.Mul(bracket.Rate))), bracket
}

type taxTableDoc struct {
	Version   int    `yaml:"version"`
	Name      string `yaml:"name"`
	Revision  string `yaml:"revision"`
	Effective string `yaml:"effective"`
	Brackets  []struct {
		Over    string `yaml:"over"`
		BaseTax string `yaml:"base_tax"`
		Rate    string `yaml:"rate"`
	} `yaml:"brackets"`
}

func ParseTaxTableYAML(b []byte) (TaxTable, error) {
	var doc taxTableDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return TaxTable{}, fmt.Errorf("%w: %v", ErrInvalidTaxTable, err)
	}
	if doc.Version != taxTableSchemaVersion {
		return TaxTable{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidTaxTable, doc.Version)
	}

	table := TaxTable{Name: doc.Name, Revision: doc.Revision}
	if doc.Effective != "" {
		effective, err := time.Parse("2006-01-02", doc.Effective)
		if err != nil {
			return TaxTable{}, fmt.Errorf("%w: effective: %v", ErrInvalidTaxTable, err)
		}
		table.Effective = effective
	}
	for i, raw := range doc.Brackets {
		var bracket TaxBracket
		var err error
		if bracket.LowerBound, err = parseDecimalField(raw.Over); err != nil {
			return TaxTable{}, fmt.Errorf("%w: bracket %d over: %v", ErrInvalidTaxTable, i, err)
		}
		if bracket.BaseTax, err = parseDecimalField(raw.BaseTax); err != nil {
			return TaxTable{}, fmt.Errorf("%w: bracket %d base_tax: %v", ErrInvalidTaxTable, i, err)
		}
		if bracket.Rate, err = parseDecimalField(raw.Rate); err != nil {
			return TaxTable{}, fmt.Errorf("%w: bracket %d rate: %v", ErrInvalidTaxTable, i, err)
		}
		table.Brackets = append(table.Brackets, bracket)
	}
	if err := table.Validate(); err != nil {
		return TaxTable{}, err
	}
	return table, nil
}

func LoadTaxTable(path string) (TaxTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return TaxTable{}, err
	}
	return ParseTaxTableYAML(b)
}

// Validate checks that every non-negative income resolves to exactly one bracket.
func (t TaxTable) Validate() error {
	if len(t.Brackets) == 0 {
		return fmt.Errorf("%w: no brackets", ErrInvalidTaxTable)
	}
	if !t.Brackets[0].LowerBound.IsZero() {
		return fmt.Errorf("%w: first bracket must start at 0", ErrInvalidTaxTable)
	}
	one := decimal.NewFromInt(1)
	for i, b := range t.Brackets {
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			return fmt.Errorf("%w: bracket %d rate out of range", ErrInvalidTaxTable, i)
		}
		if b.BaseTax.IsNegative() {
			return fmt.Errorf("%w: bracket %d base tax negative", ErrInvalidTaxTable, i)
		}
		if i == 0 {
			continue
		}
		prev := t.Brackets[i-1]
		if !b.LowerBound.GreaterThan(prev.LowerBound) {
			return fmt.Errorf("%w: bracket %d lower bound not increasing", ErrInvalidTaxTable, i)
		}
		if b.BaseTax.LessThan(prev.BaseTax) {
			return fmt.Errorf("%w: bracket %d base tax decreasing", ErrInvalidTaxTable, i)
		}
	}
	return nil
}

func parseDecimalField(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
