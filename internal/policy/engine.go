// Package policy evaluates operator policy over desktop actions with OPA.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions a policy may return.
const (
	DecisionAllow           = "allow"
	DecisionRequireApproval = "require_approval"
	DecisionBlock           = "block"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.desktop_policy"),
		rego.Module("desktop_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy at path, or the default policy when
// path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks one action.
// Input is a map with keys: type, action, workspace_id.
// Returns: decision (allow, require_approval, block), reason (optional), error
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, "default", nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return DecisionAllow, "unexpected return type", nil
	}

	decision, _ := doc["decision"].(string)
	reason, _ := doc["reason"].(string)
	switch decision {
	case DecisionAllow, DecisionRequireApproval, DecisionBlock:
		return decision, reason, nil
	case "":
		return DecisionAllow, "default", nil
	}
	return "", "", fmt.Errorf("policy returned unknown decision %q", decision)
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package desktop_policy

import rego.v1

blocked_launch := {"diskpart.exe", "format.com", "bcdedit.exe", "vssadmin.exe"}

default decision := "allow"

# Disk and boot configuration tools are never launched by the runner.
decision := "block" if {
	input.type == "launch"
	some name in blocked_launch
	endswith(lower(input.action.target), name)
} else := "require_approval" if {
	input.type == "key"
	contains(upper(input.action.combo), "WIN+R")
}

default reason := ""

reason := sprintf("launching %s is blocked by operator policy", [input.action.target]) if {
	decision == "block"
}

reason := "WIN+R opens the run dialog" if {
	decision == "require_approval"
}
`
