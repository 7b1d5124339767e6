package safety

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Policy is an optional Rego overlay that can only raise a statement's
// classified level, never lower it, so a misconfigured or overly
// permissive policy can never make a destructive statement look safe.
type Policy struct {
	query rego.PreparedEvalQuery
}

// LoadPolicy compiles a Rego module that must define
// `data.glance.safety.level` as one of "safe", "mutating",
// "destructive" given input `{"sql": <text>, "base_level": <string>}`.
func LoadPolicy(ctx context.Context, module string) (*Policy, error) {
	query, err := rego.New(
		rego.Query("data.glance.safety.level"),
		rego.Module("policy.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compiling safety policy: %w", err)
	}
	return &Policy{query: query}, nil
}

// Apply evaluates the policy against sql and base, returning
// Max(base, policyLevel). Evaluation errors or an unparseable result
// leave base unchanged, since a broken overlay must not weaken the
// classifier's fail-closed guarantee.
func (p *Policy) Apply(ctx context.Context, sql string, base Level) Level {
	if p == nil {
		return base
	}
	results, err := p.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"sql":        sql,
		"base_level": base.String(),
	}))
	if err != nil || len(results) == 0 || len(results[0].Expressions) == 0 {
		return base
	}
	text, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return base
	}
	return Max(base, parseLevel(text))
}

func parseLevel(s string) Level {
	switch s {
	case "safe", "Safe":
		return Safe
	case "mutating", "Mutating":
		return Mutating
	default:
		return Destructive
	}
}
