package payroll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Eligibility is a compiled CEL predicate over the employee's directory fields.
// Values are lower-cased and trimmed before evaluation, e.g.
//
//	employee.classification in ["health_worker", "medical"]
type Eligibility struct {
	expr    string
	program cel.Program
}

var errEmptyExpression = errors.New("eligibility expression required")

func newEligibilityEnv() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("employee", cel.MapType(cel.StringType, cel.StringType)))
}

func CompileEligibility(expr string) (*Eligibility, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errEmptyExpression
	}
	env, err := newEligibilityEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("compile %q: expression must evaluate to bool", expr)
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &Eligibility{expr: expr, program: program}, nil
}

func (e *Eligibility) String() string {
	if e == nil {
		return ""
	}
	return e.expr
}

func (e *Eligibility) Eval(profile EmployeeProfile) (bool, error) {
	if e == nil {
		return true, nil
	}
	out, _, err := e.program.Eval(map[string]any{"employee": eligibilityVars(profile)})
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eligibility %q returned %T", e.expr, out.Value())
	}
	return matched, nil
}

func eligibilityVars(profile EmployeeProfile) map[string]string {
	normalize := func(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
	return map[string]string{
		"id":              profile.ID,
		"employee_number": profile.EmployeeNumber,
		"department":      normalize(profile.Department),
		"position":        normalize(profile.Position),
		"classification":  normalize(profile.Classification),
	}
}
