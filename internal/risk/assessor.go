// Package risk classifies plans and single actions into risk tags and
// decides whether a human has to approve them.
package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
	"github.com/xiaot623/gogo/deskrunner/internal/trust"
)

// PolicyEvaluator returns an operator decision for one action:
// allow, require_approval or block, plus an optional reason.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, input interface{}) (string, string, error)
}

const (
	decisionRequireApproval = "require_approval"
	decisionBlock           = "block"
)

// Assessor classifies plans and steps. Plan and step assessment share one
// tag table, so switching approval granularity only changes when the check
// fires.
type Assessor struct {
	trust   trust.Store
	policy  PolicyEvaluator
	ceiling int
}

// NewAssessor creates an assessor. policy may be nil. ceiling is the global
// action limit every plan is clamped to.
func NewAssessor(store trust.Store, policy PolicyEvaluator, ceiling int) *Assessor {
	if ceiling <= 0 {
		ceiling = domain.DefaultMaxActions
	}
	return &Assessor{trust: store, policy: policy, ceiling: ceiling}
}

// Ceiling returns the global action limit.
func (a *Assessor) Ceiling() int {
	return a.ceiling
}

// TagsForType maps an action type to its risk tags. wait carries none.
func TagsForType(actionType string) []domain.RiskTag {
	switch strings.ToLower(strings.TrimSpace(actionType)) {
	case "launch":
		return []domain.RiskTag{domain.RiskTagLaunch}
	case "type":
		return []domain.RiskTag{domain.RiskTagInput}
	case "key":
		return []domain.RiskTag{domain.RiskTagKey}
	case "mousemove", "mouseclick":
		return []domain.RiskTag{domain.RiskTagMouse}
	case "clipboardset":
		return []domain.RiskTag{domain.RiskTagClipboard}
	case "screenshot":
		return []domain.RiskTag{domain.RiskTagScreenshot}
	case "visionocr":
		return []domain.RiskTag{domain.RiskTagVision}
	case "uiaclick", "uiasetvalue":
		return []domain.RiskTag{domain.RiskTagUIA}
	case "wait":
		return nil
	}
	return []domain.RiskTag{domain.RiskTagUnknown}
}

// AssessPlan classifies a whole plan against the workspace trust list.
func (a *Assessor) AssessPlan(ctx context.Context, plan domain.Plan, workspaceID string) (domain.RiskAssessment, error) {
	taskName := plan.TaskName
	if taskName == "" {
		taskName = domain.DefaultTaskName
	}
	out := domain.RiskAssessment{
		TaskName:     taskName,
		RiskTags:     []domain.RiskTag{},
		NewApps:      []string{},
		Reasons:      []string{},
		MaxActions:   plan.Safety.EffectiveMaxActions(a.ceiling),
		TotalActions: len(plan.Actions),
	}

	trusted, err := a.trust.List(ctx, workspaceID)
	if err != nil {
		return out, fmt.Errorf("failed to list trusted apps: %w", err)
	}
	seenApps := make(map[string]bool)
	for _, target := range domain.LaunchTargets(plan.Actions) {
		key := trust.Normalize(target)
		if seenApps[key] || trust.Contains(trusted, key) {
			continue
		}
		seenApps[key] = true
		out.NewApps = append(out.NewApps, target)
	}

	tags := newTagSet()
	if len(out.NewApps) > 0 {
		tags.add(domain.RiskTagNewApp)
		out.Reasons = append(out.Reasons, "New apps: "+strings.Join(out.NewApps, ", "))
	}
	policyApproval := false
	for i, raw := range plan.Actions {
		for _, tag := range TagsForType(raw.Type()) {
			tags.add(tag)
		}
		decision, reason, err := a.evaluatePolicy(ctx, raw, workspaceID)
		if err != nil {
			return out, err
		}
		switch decision {
		case decisionBlock:
			out.Blocked = true
			out.BlockReasons = append(out.BlockReasons, fmt.Sprintf("step %d: %s", i+1, orDefault(reason, "blocked by policy")))
		case decisionRequireApproval:
			policyApproval = true
			tags.add(domain.RiskTagPolicy)
			out.Reasons = append(out.Reasons, fmt.Sprintf("step %d: %s", i+1, orDefault(reason, "policy requires approval")))
		}
	}
	out.RiskTags = tags.list()

	matched := matchingTags(out.RiskTags, plan.Safety.ApprovalTags())
	if len(matched) > 0 {
		out.Reasons = append(out.Reasons, "Requires approval for: "+joinTags(matched))
	}
	out.RequiresApproval = len(out.NewApps) > 0 || len(matched) > 0 || policyApproval
	return out, nil
}

// Validate rejects plans that must never start.
func (a *Assessor) Validate(assessment domain.RiskAssessment) error {
	if assessment.TotalActions > assessment.MaxActions {
		return fmt.Errorf("%w: %d actions, limit %d", domain.ErrPlanTooLarge, assessment.TotalActions, assessment.MaxActions)
	}
	if assessment.Blocked {
		return fmt.Errorf("%w: %s", domain.ErrPlanBlocked, strings.Join(assessment.BlockReasons, "; "))
	}
	return nil
}

// AssessStep classifies one action. It is used in per_step approval mode.
func (a *Assessor) AssessStep(ctx context.Context, raw domain.RawAction, safety domain.SafetyConfig, workspaceID string) (domain.StepAssessment, error) {
	out := domain.StepAssessment{Tags: []domain.RiskTag{}, Reasons: []string{}}
	tags := newTagSet()
	for _, tag := range TagsForType(raw.Type()) {
		tags.add(tag)
	}

	if action, ok := domain.NormalizeAction(raw); ok {
		if launch, ok := action.(domain.Launch); ok {
			trusted, err := a.trust.List(ctx, workspaceID)
			if err != nil {
				return out, fmt.Errorf("failed to list trusted apps: %w", err)
			}
			if !trust.Contains(trusted, launch.Target) {
				out.NewApp = launch.Target
				tags.add(domain.RiskTagNewApp)
				out.Reasons = append(out.Reasons, "New app: "+launch.Target)
			}
		}
	}

	decision, reason, err := a.evaluatePolicy(ctx, raw, workspaceID)
	if err != nil {
		return out, err
	}
	policyApproval := false
	switch decision {
	case decisionBlock:
		out.Blocked = true
		out.BlockReason = orDefault(reason, "blocked by policy")
	case decisionRequireApproval:
		policyApproval = true
		tags.add(domain.RiskTagPolicy)
		out.Reasons = append(out.Reasons, orDefault(reason, "policy requires approval"))
	}
	out.Tags = tags.list()

	matched := matchingTags(out.Tags, safety.ApprovalTags())
	if len(matched) > 0 {
		out.Reasons = append(out.Reasons, "Requires approval for: "+joinTags(matched))
	}
	out.RequiresApproval = out.NewApp != "" || len(matched) > 0 || policyApproval
	return out, nil
}

func (a *Assessor) evaluatePolicy(ctx context.Context, raw domain.RawAction, workspaceID string) (string, string, error) {
	if a.policy == nil {
		return "", "", nil
	}
	action, ok := domain.NormalizeAction(raw)
	if !ok {
		return "", "", nil
	}
	input := map[string]interface{}{
		"type":         string(action.Kind()),
		"action":       domain.EncodeAction(action),
		"workspace_id": workspaceID,
	}
	decision, reason, err := a.policy.Evaluate(ctx, input)
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	return decision, reason, nil
}

type tagSet struct {
	seen  map[domain.RiskTag]bool
	order []domain.RiskTag
}

func newTagSet() *tagSet {
	return &tagSet{seen: make(map[domain.RiskTag]bool)}
}

func (s *tagSet) add(tag domain.RiskTag) {
	if s.seen[tag] {
		return
	}
	s.seen[tag] = true
	s.order = append(s.order, tag)
}

func (s *tagSet) list() []domain.RiskTag {
	if s.order == nil {
		return []domain.RiskTag{}
	}
	return s.order
}

// matchingTags returns the tags present in require, compared case-insensitively.
func matchingTags(tags, require []domain.RiskTag) []domain.RiskTag {
	want := make(map[string]bool, len(require))
	for _, tag := range require {
		want[strings.ToLower(string(tag))] = true
	}
	var out []domain.RiskTag
	for _, tag := range tags {
		if want[string(tag)] {
			out = append(out, tag)
		}
	}
	return out
}

func joinTags(tags []domain.RiskTag) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = string(tag)
	}
	return strings.Join(parts, ", ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
