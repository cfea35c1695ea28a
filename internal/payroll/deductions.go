package payroll

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Contribution struct {
	Rate decimal.Decimal
	// Cap is the contribution ceiling; zero means uncapped.
	Cap decimal.Decimal
}

type Contributions struct {
	GSIS       Contribution
	PagIBIG    Contribution
	PhilHealth Contribution
}

type DeductionInput struct {
	BasicPay             decimal.Decimal
	GrossPay             decimal.Decimal
	NonTaxableAllowances decimal.Decimal
	AdHoc                []DeductionRequest
}

type Deductions struct {
	Statutory     []LineItem
	AdHoc         []LineItem
	Total         decimal.Decimal
	TaxableIncome decimal.Decimal
	Bracket       TaxBracket
	Warnings      []Notice
}

// Items returns statutory deductions followed by ad-hoc ones.
func (d Deductions) Items() []LineItem {
	out := make([]LineItem, 0, len(d.Statutory)+len(d.AdHoc))
	out = append(out, d.Statutory...)
	return append(out, d.AdHoc...)
}

type DeductionCalculator struct {
	contributions Contributions
	table         TaxTable
}

func NewDeductionCalculator(contributions Contributions, table TaxTable) DeductionCalculator {
	return DeductionCalculator{contributions: contributions, table: table}
}

func (c DeductionCalculator) Calculate(in DeductionInput) Deductions {
	var out Deductions

	gsis := c.contribution(&out, CodeGSIS, c.contributions.GSIS, in.BasicPay, "basic pay")
	pagibig := c.contribution(&out, CodePagIBIG, c.contributions.PagIBIG, in.GrossPay, "gross pay")
	philhealth := c.contribution(&out, CodePhilHealth, c.contributions.PhilHealth, in.GrossPay, "gross pay")

	taxable := in.GrossPay.Sub(in.NonTaxableAllowances).Sub(gsis).Sub(pagibig).Sub(philhealth)
	if taxable.IsNegative() {
		out.Warnings = append(out.Warnings, Notice{
			Code:    WarningTaxableFloored,
			Message: "taxable income below zero after exclusions; floored at zero",
			Amount:  amountPtr(taxable),
		})
		taxable = decimal.Zero
	}
	out.TaxableIncome = roundMoney(taxable)

	tax, bracket := c.table.Tax(out.TaxableIncome)
	out.Bracket = bracket
	out.Statutory = append(out.Statutory, LineItem{
		Code:    CodeWithholdingTax,
		Name:    CodeWithholdingTax.Name(),
		Amount:  maxZero(tax),
		Basis:   taxBasis(out.TaxableIncome, bracket, c.table),
		Taxable: false,
	})

	for _, req := range in.AdHoc {
		out.AdHoc = append(out.AdHoc, adHocItem(req))
	}

	out.Total = sumItems(out.Statutory).Add(sumItems(out.AdHoc))
	return out
}

func (c DeductionCalculator) contribution(out *Deductions, code Code, rule Contribution, base decimal.Decimal, baseLabel string) decimal.Decimal {
	amount := roundMoney(base.Mul(rule.Rate))
	basis := fmt.Sprintf("%s%% of %s", rule.Rate.Shift(2).String(), baseLabel)
	if rule.Cap.IsPositive() {
		if amount.GreaterThan(rule.Cap) {
			amount = roundMoney(rule.Cap)
		}
		basis += fmt.Sprintf(", capped at %s", rule.Cap.StringFixed(MinorUnits))
	}
	if amount.IsNegative() {
		out.Warnings = append(out.Warnings, Notice{
			Code:    WarningContributionClamped,
			Message: fmt.Sprintf("%s contribution would be negative; clamped to zero", code),
			Amount:  amountPtr(amount),
		})
		amount = decimal.Zero
	}
	out.Statutory = append(out.Statutory, LineItem{Code: code, Name: code.Name(), Amount: amount, Basis: basis})
	return amount
}

func taxBasis(taxable decimal.Decimal, bracket TaxBracket, table TaxTable) string {
	basis := fmt.Sprintf("%s + %s%% of excess over %s (taxable income %s)",
		bracket.BaseTax.StringFixed(MinorUnits),
		bracket.Rate.Shift(2).String(),
		bracket.LowerBound.StringFixed(MinorUnits),
		taxable.StringFixed(MinorUnits),
	)
	if label := table.Label(); label != "" {
		basis += ", table " + label
	}
	return basis
}

func adHocItem(req DeductionRequest) LineItem {
	code := req.Code
	if strings.TrimSpace(string(code)) == "" {
		code = CodeAdHoc
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = code.Name()
	}
	basis := "ad-hoc deduction"
	if req.Reference != "" {
		basis += " ref " + req.Reference
	}
	return LineItem{Code: code, Name: name, Amount: roundMoney(req.Amount), Basis: basis}
}
