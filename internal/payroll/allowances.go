package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type AllowanceInput struct {
	Profile  EmployeeProfile
	Rates    Rates
	BasicPay decimal.Decimal
}

// AllowanceRule produces at most one line item. Rules are evaluated independently,
// so adding a rule never changes what another rule produces.
type AllowanceRule interface {
	Code() Code
	Evaluate(in AllowanceInput) (LineItem, bool, error)
}

type allowanceBase struct {
	code     Code
	name     string
	taxable  bool
	eligible *Eligibility
}

func (b allowanceBase) Code() Code { return b.code }

func (b allowanceBase) item(amount decimal.Decimal, basis string) LineItem {
	name := b.name
	if name == "" {
		name = b.code.Name()
	}
	return LineItem{Code: b.code, Name: name, Amount: roundMoney(amount), Basis: basis, Taxable: b.taxable}
}

func (b allowanceBase) eligibleFor(profile EmployeeProfile) (bool, error) {
	return b.eligible.Eval(profile)
}

type FixedAllowance struct {
	allowanceBase
	amount decimal.Decimal
}

func NewFixedAllowance(code Code, name string, amount decimal.Decimal, taxable bool, eligible *Eligibility) FixedAllowance {
	return FixedAllowance{allowanceBase: allowanceBase{code: code, name: name, taxable: taxable, eligible: eligible}, amount: amount}
}

func (a FixedAllowance) Evaluate(in AllowanceInput) (LineItem, bool, error) {
	ok, err := a.eligibleFor(in.Profile)
	if err != nil || !ok {
		return LineItem{}, false, err
	}
	return a.item(a.amount, "fixed allowance"), true, nil
}

type PercentOfBasicAllowance struct {
	allowanceBase
	rate  decimal.Decimal
	basis string
}

func NewPercentOfBasicAllowance(code Code, name string, rate decimal.Decimal, taxable bool, eligible *Eligibility, basis string) PercentOfBasicAllowance {
	if basis == "" {
		basis = fmt.Sprintf("%s%% of basic pay", rate.Shift(2).String())
	}
	return PercentOfBasicAllowance{allowanceBase: allowanceBase{code: code, name: name, taxable: taxable, eligible: eligible}, rate: rate, basis: basis}
}

func (a PercentOfBasicAllowance) Evaluate(in AllowanceInput) (LineItem, bool, error) {
	ok, err := a.eligibleFor(in.Profile)
	if err != nil || !ok {
		return LineItem{}, false, err
	}
	return a.item(in.BasicPay.Mul(a.rate), a.basis), true, nil
}

// PositionAllowance pays the per-position amount recorded on the employee profile,
// and nothing when no amount is recorded.
type PositionAllowance struct {
	allowanceBase
}

func NewPositionAllowance(code Code, name string, taxable bool, eligible *Eligibility) PositionAllowance {
	return PositionAllowance{allowanceBase: allowanceBase{code: code, name: name, taxable: taxable, eligible: eligible}}
}

func (a PositionAllowance) Evaluate(in AllowanceInput) (LineItem, bool, error) {
	amount := in.Profile.RepresentationAllowance
	if amount == nil || !amount.IsPositive() {
		return LineItem{}, false, nil
	}
	ok, err := a.eligibleFor(in.Profile)
	if err != nil || !ok {
		return LineItem{}, false, err
	}
	return a.item(*amount, "position-based allowance"), true, nil
}

type Allowances struct {
	Items      []LineItem
	Total      decimal.Decimal
	NonTaxable decimal.Decimal
	Warnings   []Notice
}

type AllowanceCalculator struct {
	rules []AllowanceRule
}

func NewAllowanceCalculator(rules ...AllowanceRule) AllowanceCalculator {
	return AllowanceCalculator{rules: append([]AllowanceRule(nil), rules...)}
}

func (c AllowanceCalculator) Calculate(in AllowanceInput) Allowances {
	out := Allowances{Items: make([]LineItem, 0, len(c.rules)), Total: decimal.Zero, NonTaxable: decimal.Zero}
	for _, rule := range c.rules {
		item, ok, err := rule.Evaluate(in)
		if err != nil {
			out.Warnings = append(out.Warnings, Notice{
				Code:    WarningAllowanceRuleFailed,
				Message: fmt.Sprintf("allowance %s skipped: %v", rule.Code(), err),
			})
			continue
		}
		if !ok || !item.Amount.IsPositive() {
			continue
		}
		out.Items = append(out.Items, item)
		if !item.Taxable {
			out.NonTaxable = out.NonTaxable.Add(item.Amount)
		}
	}
	out.Total = sumItems(out.Items)
	return out
}
