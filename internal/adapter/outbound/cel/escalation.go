// Package cel evaluates operator-defined escalation rules written in the
// Common Expression Language against session risk assessments.
package cel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/risk"
)

// reflectStringSlice is the native target type for indicator lists.
var reflectStringSlice = reflect.TypeOf([]string{})

// maxExpressionLength is the maximum allowed length for rule expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit per evaluation.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single rule evaluation. Rules run on the
// validation path, so a misbehaving expression must not stall it.
const evalTimeout = 500 * time.Millisecond

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// newEscalationEnvironment creates a CEL environment exposing the
// assessment facts rules may inspect:
//   - risk_score (double), indicators (list of string)
//   - security_level, state, session_type (string)
//   - session_age_minutes (double), request_count (int)
//   - indicator_matches(indicators, pattern): glob match over indicators
func newEscalationEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("indicators", cel.ListType(cel.StringType)),
		cel.Variable("security_level", cel.StringType),
		cel.Variable("state", cel.StringType),
		cel.Variable("session_type", cel.StringType),
		cel.Variable("session_age_minutes", cel.DoubleType),
		cel.Variable("request_count", cel.IntType),

		cel.Function("indicator_matches",
			cel.Overload("indicator_matches_list_string",
				[]*cel.Type{cel.ListType(cel.StringType), cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(list, pattern ref.Val) ref.Val {
					p, ok := pattern.Value().(string)
					if !ok {
						return types.Bool(false)
					}
					items, err := list.ConvertToNative(reflectStringSlice)
					if err != nil {
						return types.Bool(false)
					}
					for _, item := range items.([]string) {
						if matched, _ := filepath.Match(p, item); matched {
							return types.Bool(true)
						}
					}
					return types.Bool(false)
				}),
			),
		),
	)
}

// Evaluator compiles and evaluates escalation rule expressions.
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator creates an evaluator with the escalation environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := newEscalationEnvironment()
	if err != nil {
		return nil, fmt.Errorf("create escalation environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks an expression, returning a program with
// cost and interrupt limits applied.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// validateNesting rejects expressions nested deeper than maxNestingDepth.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that an expression is syntactically valid and
// within the safety limits. Called at config load so bad rules are
// rejected before the engine starts.
func (e *Evaluator) ValidateExpression(expr string) error {
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if expr == "" {
		return errors.New("expression is empty")
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}
	return nil
}

// evaluate runs a compiled program against one assessment with a timeout.
func (e *Evaluator) evaluate(ctx context.Context, prg cel.Program, in risk.EscalationInput) (bool, error) {
	indicators := in.Indicators
	if indicators == nil {
		indicators = []string{}
	}
	activation := map[string]any{
		"risk_score":          in.RiskScore,
		"indicators":          indicators,
		"security_level":      in.SecurityLevel,
		"state":               in.State,
		"session_type":        in.SessionType,
		"session_age_minutes": in.SessionAgeMinutes,
		"request_count":       in.RequestCount,
	}

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(evalCtx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return boolResult, nil
}

// Rule is one named escalation expression.
type Rule struct {
	Name       string
	Expression string
}

// compiledRule pairs a rule with its compiled program.
type compiledRule struct {
	name string
	prg  cel.Program
}

// RuleSet evaluates an ordered list of escalation rules. It implements
// risk.Escalator: the first matching rule escalates the response.
type RuleSet struct {
	evaluator *Evaluator
	rules     []compiledRule
	logger    *slog.Logger
}

// NewRuleSet validates and compiles all rules. Any invalid rule fails the
// whole set so misconfigurations surface at startup, not mid-assessment.
func NewRuleSet(rules []Rule, logger *slog.Logger) (*RuleSet, error) {
	ev, err := NewEvaluator()
	if err != nil {
		return nil, err
	}

	rs := &RuleSet{evaluator: ev, logger: logger}
	for _, r := range rules {
		if err := ev.ValidateExpression(r.Expression); err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		prg, err := ev.Compile(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		rs.rules = append(rs.rules, compiledRule{name: r.Name, prg: prg})
	}
	return rs, nil
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// ShouldEscalate evaluates rules in order and reports the first match.
// A rule that fails to evaluate is logged and skipped: operator rules
// must never break validation.
func (rs *RuleSet) ShouldEscalate(ctx context.Context, in risk.EscalationInput) (bool, string, error) {
	for _, r := range rs.rules {
		matched, err := rs.evaluator.evaluate(ctx, r.prg, in)
		if err != nil {
			rs.logger.Warn("escalation rule evaluation failed",
				"rule", r.name,
				"error", err,
			)
			continue
		}
		if matched {
			return true, r.name, nil
		}
	}
	return false, "", nil
}

// Compile-time interface verification.
var _ risk.Escalator = (*RuleSet)(nil)
