// Package macro renders parameterised macros into plans.
package macro

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// DefaultTaskName names plans built from macros without a name.
const DefaultTaskName = "Desktop Macro"

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

var slugInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

// Render replaces every {{name}} in s with the stringified parameter, or
// the empty string when the parameter is absent or nil.
func Render(s string, params map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]
		v, ok := params[key]
		if !ok || v == nil {
			return ""
		}
		if str, ok := v.(string); ok {
			return str
		}
		return fmt.Sprint(v)
	})
}

// ApplyParams returns a copy of m with parameters substituted into every
// string value of every action and into StartURL. Non-string values are
// copied unchanged and m is not modified.
func ApplyParams(m domain.Macro, params map[string]any) domain.Macro {
	out := m
	out.StartURL = Render(m.StartURL, params)
	out.Actions = make([]domain.RawAction, len(m.Actions))
	for i, action := range m.Actions {
		out.Actions[i] = domain.RawAction(renderValue(map[string]any(action), params).(map[string]any))
	}
	return out
}

func renderValue(v any, params map[string]any) any {
	switch val := v.(type) {
	case string:
		return Render(val, params)
	case map[string]any:
		next := make(map[string]any, len(val))
		for k, item := range val {
			next[k] = renderValue(item, params)
		}
		return next
	case domain.RawAction:
		return domain.RawAction(renderValue(map[string]any(val), params).(map[string]any))
	case []any:
		next := make([]any, len(val))
		for i, item := range val {
			next[i] = renderValue(item, params)
		}
		return next
	}
	return v
}

// ExtractParams returns the sorted, de-duplicated parameter names used in
// the actions and StartURL of m.
func ExtractParams(m domain.Macro) []string {
	seen := make(map[string]bool)
	collect := func(s string) {
		for _, match := range placeholder.FindAllStringSubmatch(s, -1) {
			seen[match[1]] = true
		}
	}
	collect(m.StartURL)
	for _, action := range m.Actions {
		walkStrings(map[string]any(action), collect)
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func walkStrings(v any, fn func(string)) {
	switch val := v.(type) {
	case string:
		fn(val)
	case map[string]any:
		for _, item := range val {
			walkStrings(item, fn)
		}
	case domain.RawAction:
		walkStrings(map[string]any(val), fn)
	case []any:
		for _, item := range val {
			walkStrings(item, fn)
		}
	}
}

// Slug derives a macro id from its name.
func Slug(name string) string {
	base := slugInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	base = strings.Trim(base, "-")
	if len(base) > 48 {
		base = base[:48]
	}
	if base == "" {
		return uuid.New().String()[:8]
	}
	return base
}

// DefaultSafety is applied to macros saved without a safety config.
func DefaultSafety() domain.SafetyConfig {
	return domain.SafetyConfig{
		RequireApprovalFor: domain.DefaultRequireApprovalFor(),
		MaxActions:         domain.DefaultMacroMaxActions,
	}
}

// BuildPlan renders m with params into a runnable plan.
func BuildPlan(m domain.Macro, params map[string]any) domain.Plan {
	resolved := ApplyParams(m, params)
	taskName := resolved.Name
	if taskName == "" {
		taskName = DefaultTaskName
	}
	safety := resolved.Safety
	if len(safety.RequireApprovalFor) == 0 && safety.MaxActions == 0 && safety.ApprovalMode == "" {
		safety = DefaultSafety()
	}
	return domain.Plan{
		TaskName: taskName,
		Actions:  resolved.Actions,
		Safety:   safety,
	}
}
