package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
	"github.com/xiaot623/gogo/deskrunner/internal/policy"
	"github.com/xiaot623/gogo/deskrunner/internal/trust"
)

func waits(n int) []domain.RawAction {
	out := make([]domain.RawAction, n)
	for i := range out {
		out[i] = domain.RawAction{"type": "wait", "ms": 10}
	}
	return out
}

func TestAssessPlanFlagsNewApps(t *testing.T) {
	ctx := context.Background()
	a := NewAssessor(trust.NewMemoryStore(), nil, 40)

	got, err := a.AssessPlan(ctx, domain.Plan{
		Actions: []domain.RawAction{{"type": "launch", "target": "notepad.exe"}},
	}, "ws")
	require.NoError(t, err)

	assert.True(t, got.RequiresApproval)
	assert.Contains(t, got.RiskTags, domain.RiskTagNewApp)
	assert.Contains(t, got.RiskTags, domain.RiskTagLaunch)
	assert.Equal(t, []string{"notepad.exe"}, got.NewApps)
	assert.Equal(t, domain.DefaultTaskName, got.TaskName)
}

func TestAssessPlanTrustedAppOutsideRequireSet(t *testing.T) {
	ctx := context.Background()
	store := trust.NewMemoryStore()
	require.NoError(t, store.Record(ctx, "ws", "NOTEPAD.EXE"))
	a := NewAssessor(store, nil, 40)

	got, err := a.AssessPlan(ctx, domain.Plan{
		Actions: []domain.RawAction{{"type": "launch", "target": " notepad.exe "}, {"type": "wait"}},
		Safety:  domain.SafetyConfig{RequireApprovalFor: []domain.RiskTag{domain.RiskTagInput}},
	}, "ws")
	require.NoError(t, err)

	assert.False(t, got.RequiresApproval)
	assert.Empty(t, got.NewApps)
	assert.Equal(t, []domain.RiskTag{domain.RiskTagLaunch}, got.RiskTags)
}

func TestAssessPlanTooLarge(t *testing.T) {
	ctx := context.Background()
	a := NewAssessor(trust.NewMemoryStore(), nil, 40)

	got, err := a.AssessPlan(ctx, domain.Plan{
		Actions: waits(5),
		Safety:  domain.SafetyConfig{MaxActions: 3},
	}, "ws")
	require.NoError(t, err)

	assert.Equal(t, 3, got.MaxActions)
	assert.Equal(t, 5, got.TotalActions)
	assert.False(t, got.RequiresApproval)
	assert.True(t, errors.Is(a.Validate(got), domain.ErrPlanTooLarge))
}

func TestAssessPlanClampsToCeiling(t *testing.T) {
	ctx := context.Background()
	a := NewAssessor(trust.NewMemoryStore(), nil, 4)

	got, err := a.AssessPlan(ctx, domain.Plan{
		Actions: waits(5),
		Safety:  domain.SafetyConfig{MaxActions: 100},
	}, "ws")
	require.NoError(t, err)
	assert.Equal(t, 4, got.MaxActions)
	assert.Error(t, a.Validate(got))

	got, err = a.AssessPlan(ctx, domain.Plan{Actions: waits(4)}, "ws")
	require.NoError(t, err)
	assert.NoError(t, a.Validate(got))
}

func TestTagTable(t *testing.T) {
	ctx := context.Background()
	a := NewAssessor(trust.NewMemoryStore(), nil, 40)

	got, err := a.AssessPlan(ctx, domain.Plan{
		Actions: []domain.RawAction{
			{"type": "visionOcr"},
			{"type": "uiaClick", "name": "OK"},
			{"type": "uiaSetValue", "name": "Search", "value": "x"},
			{"type": "wait"},
			{"type": "teleport"},
			{"type": "MouseClick"},
		},
	}, "ws")
	require.NoError(t, err)
	assert.Equal(t, []domain.RiskTag{
		domain.RiskTagVision,
		domain.RiskTagUIA,
		domain.RiskTagUnknown,
		domain.RiskTagMouse,
	}, got.RiskTags)
	assert.True(t, got.RequiresApproval)
}

func TestAssessStepMatchesPlanTable(t *testing.T) {
	ctx := context.Background()
	store := trust.NewMemoryStore()
	a := NewAssessor(store, nil, 40)
	safety := domain.SafetyConfig{ApprovalMode: domain.ApprovalModePerStep}

	step, err := a.AssessStep(ctx, domain.RawAction{"type": "launch", "target": "calc.exe"}, safety, "ws")
	require.NoError(t, err)
	assert.True(t, step.RequiresApproval)
	assert.Equal(t, "calc.exe", step.NewApp)
	assert.Equal(t, []domain.RiskTag{domain.RiskTagLaunch, domain.RiskTagNewApp}, step.Tags)

	require.NoError(t, store.Record(ctx, "ws", "calc.exe"))
	step, err = a.AssessStep(ctx, domain.RawAction{"type": "launch", "target": "calc.exe"},
		domain.SafetyConfig{RequireApprovalFor: []domain.RiskTag{domain.RiskTagInput}}, "ws")
	require.NoError(t, err)
	assert.False(t, step.RequiresApproval)
	assert.Empty(t, step.NewApp)

	step, err = a.AssessStep(ctx, domain.RawAction{"type": "wait"}, safety, "ws")
	require.NoError(t, err)
	assert.False(t, step.RequiresApproval)
	assert.Empty(t, step.Tags)
}

func TestPolicyDecisions(t *testing.T) {
	ctx := context.Background()
	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)
	store := trust.NewMemoryStore()
	require.NoError(t, store.Record(ctx, "ws", "diskpart.exe"))
	a := NewAssessor(store, engine, 40)
	onlyWait := domain.SafetyConfig{RequireApprovalFor: []domain.RiskTag{"wait"}}

	blocked, err := a.AssessPlan(ctx, domain.Plan{
		Actions: []domain.RawAction{{"type": "launch", "target": "diskpart.exe"}},
		Safety:  onlyWait,
	}, "ws")
	require.NoError(t, err)
	assert.True(t, blocked.Blocked)
	assert.True(t, errors.Is(a.Validate(blocked), domain.ErrPlanBlocked))

	gated, err := a.AssessPlan(ctx, domain.Plan{
		Actions: []domain.RawAction{{"type": "key", "combo": "WIN+R"}},
		Safety:  onlyWait,
	}, "ws")
	require.NoError(t, err)
	assert.False(t, gated.Blocked)
	assert.True(t, gated.RequiresApproval)
	assert.Contains(t, gated.RiskTags, domain.RiskTagPolicy)

	step, err := a.AssessStep(ctx, domain.RawAction{"type": "launch", "target": "diskpart.exe"}, onlyWait, "ws")
	require.NoError(t, err)
	assert.True(t, step.Blocked)
	assert.NotEmpty(t, step.BlockReason)
}
