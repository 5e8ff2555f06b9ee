package macro

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

func sampleMacro() domain.Macro {
	return domain.Macro{
		ID:       "greet",
		Name:     "Greet",
		StartURL: "https://example.com/{{ page }}",
		Actions: []domain.RawAction{
			{"type": "type", "text": "Hello {{name}}"},
			{"type": "mouseClick", "x": float64(10), "y": float64(20)},
			{"type": "uiaSetValue", "name": "Search", "value": "{{query}} by {{ name }}"},
		},
	}
}

func TestApplyParamsSubstitutes(t *testing.T) {
	m := sampleMacro()
	got := ApplyParams(m, map[string]any{"name": "Aika", "query": "maps", "page": 3})

	assert.Equal(t, "Hello Aika", got.Actions[0]["text"])
	assert.Equal(t, "maps by Aika", got.Actions[2]["value"])
	assert.Equal(t, "https://example.com/3", got.StartURL)
	assert.Equal(t, float64(10), got.Actions[1]["x"])

	// the input is untouched
	assert.Equal(t, "Hello {{name}}", m.Actions[0]["text"])
	assert.Equal(t, "https://example.com/{{ page }}", m.StartURL)
}

func TestApplyParamsEmptyParams(t *testing.T) {
	got := ApplyParams(sampleMacro(), nil)

	assert.Equal(t, "Hello ", got.Actions[0]["text"])
	assert.Equal(t, " by ", got.Actions[2]["value"])
	assert.Equal(t, "https://example.com/", got.StartURL)
	for _, action := range got.Actions {
		for _, v := range action {
			if s, ok := v.(string); ok {
				assert.NotContains(t, s, "{{")
			}
		}
	}
}

func TestApplyParamsNested(t *testing.T) {
	m := domain.Macro{Actions: []domain.RawAction{
		{"type": "custom", "meta": map[string]any{"title": "{{title}}"}, "lines": []any{"{{a}}", 1}},
	}}
	got := ApplyParams(m, map[string]any{"title": "T", "a": "A"})

	assert.Equal(t, map[string]any{"title": "T"}, got.Actions[0]["meta"])
	assert.Equal(t, []any{"A", 1}, got.Actions[0]["lines"])
	assert.Equal(t, []string{"a", "title"}, ExtractParams(m))
}

func TestExtractParamsMatchesApply(t *testing.T) {
	m := sampleMacro()
	names := ExtractParams(m)
	assert.Equal(t, []string{"name", "page", "query"}, names)

	params := map[string]any{}
	for _, n := range names {
		params[n] = "X"
	}
	rendered := ApplyParams(m, params)
	assert.Empty(t, ExtractParams(rendered))
	assert.Equal(t, "Hello X", rendered.Actions[0]["text"])
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "open-notepad-save", Slug("  Open Notepad & Save!! "))
	assert.Equal(t, "a_b-c", Slug("A_b-c"))
	assert.Len(t, Slug(strings.Repeat("y", 60)), 48)
	assert.Len(t, Slug("???"), 8)
}

func TestBuildPlanDefaults(t *testing.T) {
	plan := BuildPlan(domain.Macro{Actions: []domain.RawAction{{"type": "type", "text": "{{x}}"}}}, nil)
	assert.Equal(t, DefaultTaskName, plan.TaskName)
	assert.Equal(t, domain.DefaultMacroMaxActions, plan.Safety.MaxActions)
	assert.Equal(t, "", plan.Actions[0]["text"])

	m := sampleMacro()
	m.Safety = domain.SafetyConfig{ApprovalMode: domain.ApprovalModePerStep}
	plan = BuildPlan(m, map[string]any{"name": "Aika"})
	assert.Equal(t, "Greet", plan.TaskName)
	assert.Equal(t, domain.ApprovalModePerStep, plan.Safety.ApprovalMode)
	assert.Equal(t, "Hello Aika", plan.Actions[0]["text"])
}
