package payroll

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed tables/*.yaml
var tables embed.FS

const ruleSetSchemaVersion = 1

var ErrInvalidRuleSet = errors.New("invalid payroll rule set")

const (
	AllowanceKindFixed          = "fixed"
	AllowanceKindPercentOfBasic = "percent_of_basic"
	AllowanceKindPosition       = "position"
)

// RuleSet holds the allowance rules and contribution parameters the engine applies.
type RuleSet struct {
	Name          string
	Allowances    []AllowanceRule
	Contributions Contributions
}

type ruleSetDoc struct {
	Version    int    `yaml:"version"`
	Name       string `yaml:"name"`
	Allowances []struct {
		Code     string `yaml:"code"`
		Name     string `yaml:"name"`
		Kind     string `yaml:"kind"`
		Amount   string `yaml:"amount"`
		Rate     string `yaml:"rate"`
		Taxable  bool   `yaml:"taxable"`
		Basis    string `yaml:"basis"`
		Eligible string `yaml:"eligible"`
	} `yaml:"allowances"`
	Contributions struct {
		GSIS       contributionDoc `yaml:"gsis"`
		PagIBIG    contributionDoc `yaml:"pagibig"`
		PhilHealth contributionDoc `yaml:"philhealth"`
	} `yaml:"contributions"`
}

type contributionDoc struct {
	Rate string `yaml:"rate"`
	Cap  string `yaml:"cap"`
}

func ParseRuleSetYAML(b []byte) (RuleSet, error) {
	var doc ruleSetDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return RuleSet{}, fmt.Errorf("%w: %v", ErrInvalidRuleSet, err)
	}
	if doc.Version != ruleSetSchemaVersion {
		return RuleSet{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidRuleSet, doc.Version)
	}

	set := RuleSet{Name: doc.Name}
	seen := map[Code]bool{}
	for i, raw := range doc.Allowances {
		code := Code(strings.ToUpper(strings.TrimSpace(raw.Code)))
		if code == "" {
			return RuleSet{}, fmt.Errorf("%w: allowance %d: code required", ErrInvalidRuleSet, i)
		}
		if seen[code] {
			return RuleSet{}, fmt.Errorf("%w: allowance %s declared twice", ErrInvalidRuleSet, code)
		}
		seen[code] = true

		var eligible *Eligibility
		if strings.TrimSpace(raw.Eligible) != "" {
			compiled, err := CompileEligibility(raw.Eligible)
			if err != nil {
				return RuleSet{}, fmt.Errorf("%w: allowance %s: %v", ErrInvalidRuleSet, code, err)
			}
			eligible = compiled
		}

		switch raw.Kind {
		case AllowanceKindFixed:
			amount, err := nonNegative(raw.Amount)
			if err != nil {
				return RuleSet{}, fmt.Errorf("%w: allowance %s amount: %v", ErrInvalidRuleSet, code, err)
			}
			set.Allowances = append(set.Allowances, NewFixedAllowance(code, raw.Name, amount, raw.Taxable, eligible))
		case AllowanceKindPercentOfBasic:
			rate, err := nonNegative(raw.Rate)
			if err != nil {
				return RuleSet{}, fmt.Errorf("%w: allowance %s rate: %v", ErrInvalidRuleSet, code, err)
			}
			set.Allowances = append(set.Allowances, NewPercentOfBasicAllowance(code, raw.Name, rate, raw.Taxable, eligible, raw.Basis))
		case AllowanceKindPosition:
			set.Allowances = append(set.Allowances, NewPositionAllowance(code, raw.Name, raw.Taxable, eligible))
		default:
			return RuleSet{}, fmt.Errorf("%w: allowance %s: unknown kind %q", ErrInvalidRuleSet, code, raw.Kind)
		}
	}

	var err error
	if set.Contributions.GSIS, err = parseContribution(doc.Contributions.GSIS); err != nil {
		return RuleSet{}, fmt.Errorf("%w: gsis: %v", ErrInvalidRuleSet, err)
	}
	if set.Contributions.PagIBIG, err = parseContribution(doc.Contributions.PagIBIG); err != nil {
		return RuleSet{}, fmt.Errorf("%w: pagibig: %v", ErrInvalidRuleSet, err)
	}
	if set.Contributions.PhilHealth, err = parseContribution(doc.Contributions.PhilHealth); err != nil {
		return RuleSet{}, fmt.Errorf("%w: philhealth: %v", ErrInvalidRuleSet, err)
	}
	return set, nil
}

func LoadRuleSet(path string) (RuleSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, err
	}
	return ParseRuleSetYAML(b)
}

func DefaultRuleSet() (RuleSet, error) {
	b, err := tables.ReadFile("tables/rules.yaml")
	if err != nil {
		return RuleSet{}, err
	}
	return ParseRuleSetYAML(b)
}

func DefaultTaxTable() (TaxTable, error) {
	b, err := tables.ReadFile("tables/withholding_tax.yaml")
	if err != nil {
		return TaxTable{}, err
	}
	return ParseTaxTableYAML(b)
}

func parseContribution(doc contributionDoc) (Contribution, error) {
	rate, err := nonNegative(doc.Rate)
	if err != nil {
		return Contribution{}, fmt.Errorf("rate: %v", err)
	}
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		return Contribution{}, errors.New("rate above 1")
	}
	ceiling, err := nonNegative(doc.Cap)
	if err != nil {
		return Contribution{}, fmt.Errorf("cap: %v", err)
	}
	return Contribution{Rate: rate, Cap: ceiling}, nil
}

func nonNegative(raw string) (decimal.Decimal, error) {
	value, err := parseDecimalField(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if value.IsNegative() {
		return decimal.Zero, errors.New("must not be negative")
	}
	return value, nil
}
