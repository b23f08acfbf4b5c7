package check

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/guardgate/guard-agent/internal/models"
)

// CELCheck evaluates a caller-supplied CEL expression against the text.
// The expression sees a single string variable `text` and must evaluate to a
// bool; true means the check passes. Non-boolean results count as a failure.
type CELCheck struct {
	expression string
	program    cel.Program
}

func NewCELCheck(expression string) (*CELCheck, error) {
	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error in expression %q: %w", expression, issues.Err())
	}

	// Cost limit prevents runaway expressions from config.
	prog, err := env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	return &CELCheck{
		expression: expression,
		program:    prog,
	}, nil
}

func (c *CELCheck) Name() string {
	return "cel"
}

func (c *CELCheck) Inspect(text string) models.CheckResult {
	now := time.Now()

	result := models.CheckResult{
		Name:   c.Name(),
		Passed: false,
	}

	out, _, err := c.program.Eval(map[string]any{"text": text})
	if err != nil {
		result.Reason = fmt.Sprintf("Expression evaluation failed: %v", err)
		result.Duration = time.Since(now)
		return result
	}

	passed, ok := out.Value().(bool)
	if !ok {
		result.Reason = "Expression did not evaluate to a boolean"
		result.Duration = time.Since(now)
		return result
	}

	result.Passed = passed
	if passed {
		result.Reason = "Expression holds"
	} else {
		result.Reason = fmt.Sprintf("Expression %q does not hold", c.expression)
	}

	result.Duration = time.Since(now)
	return result
}
