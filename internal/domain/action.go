package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawAction is the user or planner authored form of an action.
type RawAction map[string]any

// Type returns the trimmed type field, or "" when absent.
func (r RawAction) Type() string {
	return strings.TrimSpace(stringField(r, "type"))
}

// Action is one normalized step of a plan.
type Action interface {
	Kind() ActionType
}

type Launch struct {
	Target string
}

type Wait struct {
	Ms int
}

// MaxWaitMs caps a single wait action at ten minutes.
const MaxWaitMs = 10 * 60 * 1000

// TypeText types literal text into the focused window.
type TypeText struct {
	Text string
}

type Key struct {
	Combo string
}

type MouseMove struct {
	X int
	Y int
}

type MouseClick struct {
	X      int
	Y      int
	Button string
	Count  int
}

type Screenshot struct {
	Name string
}

// VisionOCR captures the screen and runs text recognition on the capture.
type VisionOCR struct {
	Name string
	Lang string
}

// UIATarget selects a UI Automation element.
type UIATarget struct {
	Name         string
	AutomationID string
	ClassName    string
	ControlType  string
}

type UIAClick struct {
	UIATarget
}

type UIASetValue struct {
	UIATarget
	Value string
}

type ClipboardSet struct {
	Text string
}

// Unknown carries a named type the runner does not recognise. It is passed
// to the executor unchanged.
type Unknown struct {
	Type string
	Raw  RawAction
}

func (Launch) Kind() ActionType { return ActionTypeLaunch }
func (Wait) Kind() ActionType { return ActionTypeWait }
func (TypeText) Kind() ActionType { return ActionTypeType }
func (Key) Kind() ActionType { return ActionTypeKey }
func (MouseMove) Kind() ActionType { return ActionTypeMouseMove }
func (MouseClick) Kind() ActionType { return ActionTypeMouseClick }
func (Screenshot) Kind() ActionType { return ActionTypeScreenshot }
func (VisionOCR) Kind() ActionType { return ActionTypeVisionOCR }
func (UIAClick) Kind() ActionType { return ActionTypeUIAClick }
func (UIASetValue) Kind() ActionType { return ActionTypeUIASetValue }
func (ClipboardSet) Kind() ActionType { return ActionTypeClipboardSet }
func (u Unknown) Kind() ActionType { return ActionType(u.Type) }

// NormalizeAction converts a raw action into its variant. Types are matched
// case-insensitively. Named but unrecognised types become Unknown; actions
// without a type, or missing a required field, report false.
func NormalizeAction(raw RawAction) (Action, bool) {
	typ := raw.Type()
	if typ == "" {
		return nil, false
	}
	switch strings.ToLower(typ) {
	case "launch":
		target := strings.TrimSpace(stringField(raw, "target", "app", "path"))
		if target == "" {
			return nil, false
		}
		return Launch{Target: target}, true
	case "wait":
		return Wait{Ms: min(intField(raw, "ms", 500, true), MaxWaitMs)}, true
	case "type":
		return TypeText{Text: stringField(raw, "text")}, true
	case "key":
		return Key{Combo: stringField(raw, "combo", "key")}, true
	case "mousemove":
		return MouseMove{X: intField(raw, "x", 0, false), Y: intField(raw, "y", 0, false)}, true
	case "mouseclick":
		button := stringField(raw, "button")
		if button == "" {
			button = "left"
		}
		return MouseClick{
			X:      intField(raw, "x", 0, false),
			Y:      intField(raw, "y", 0, false),
			Button: button,
			Count:  intField(raw, "count", 1, true),
		}, true
	case "screenshot":
		name := stringField(raw, "name")
		if name == "" {
			name = "desktop"
		}
		return Screenshot{Name: name}, true
	case "visionocr":
		name := stringField(raw, "name")
		if name == "" {
			name = "ocr"
		}
		lang := stringField(raw, "lang")
		if lang == "" {
			lang = "eng"
		}
		return VisionOCR{Name: name, Lang: lang}, true
	case "uiaclick":
		target, ok := uiaTarget(raw)
		if !ok {
			return nil, false
		}
		return UIAClick{UIATarget: target}, true
	case "uiasetvalue":
		target, ok := uiaTarget(raw)
		if !ok {
			return nil, false
		}
		return UIASetValue{UIATarget: target, Value: stringField(raw, "value", "text")}, true
	case "clipboardset":
		return ClipboardSet{Text: stringField(raw, "text")}, true
	}
	return Unknown{Type: typ, Raw: raw}, true
}

// EncodeAction is the inverse of NormalizeAction. The result is the wire
// payload handed to executors, policies and approval requests.
func EncodeAction(a Action) map[string]any {
	out := map[string]any{"type": string(a.Kind())}
	switch v := a.(type) {
	case Launch:
		out["target"] = v.Target
	case Wait:
		out["ms"] = v.Ms
	case TypeText:
		out["text"] = v.Text
	case Key:
		out["combo"] = v.Combo
	case MouseMove:
		out["x"] = v.X
		out["y"] = v.Y
	case MouseClick:
		out["x"] = v.X
		out["y"] = v.Y
		out["button"] = v.Button
		out["count"] = v.Count
	case Screenshot:
		out["name"] = v.Name
	case VisionOCR:
		out["name"] = v.Name
		out["lang"] = v.Lang
	case UIAClick:
		v.UIATarget.encode(out)
	case UIASetValue:
		v.UIATarget.encode(out)
		out["value"] = v.Value
	case ClipboardSet:
		out["text"] = v.Text
	case Unknown:
		for k, val := range v.Raw {
			out[k] = val
		}
		out["type"] = v.Type
	}
	return out
}

// LaunchTargets returns the distinct trimmed launch targets of a plan in
// first-seen order.
func LaunchTargets(actions []RawAction) []string {
	seen := make(map[string]bool)
	var targets []string
	for _, raw := range actions {
		action, ok := NormalizeAction(raw)
		if !ok {
			continue
		}
		launch, ok := action.(Launch)
		if !ok || seen[launch.Target] {
			continue
		}
		seen[launch.Target] = true
		targets = append(targets, launch.Target)
	}
	return targets
}

func (t UIATarget) encode(out map[string]any) {
	if t.Name != "" {
		out["name"] = t.Name
	}
	if t.AutomationID != "" {
		out["automationId"] = t.AutomationID
	}
	if t.ClassName != "" {
		out["className"] = t.ClassName
	}
	if t.ControlType != "" {
		out["controlType"] = t.ControlType
	}
}

func uiaTarget(raw RawAction) (UIATarget, bool) {
	t := UIATarget{
		Name:         stringField(raw, "name"),
		AutomationID: stringField(raw, "automationId"),
		ClassName:    stringField(raw, "className"),
		ControlType:  stringField(raw, "controlType"),
	}
	if t.Name == "" && t.AutomationID == "" {
		return UIATarget{}, false
	}
	return t, true
}

// stringField returns the first non-empty value among keys.
func stringField(raw RawAction, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			s = strconv.Itoa(val)
		case json.Number:
			s = val.String()
		case bool:
			s = strconv.FormatBool(val)
		default:
			continue
		}
		if s != "" {
			return s
		}
	}
	return ""
}

// intField reads a numeric field. When zeroIsDefault is set a zero value
// also falls back to def.
func intField(raw RawAction, key string, def int, zeroIsDefault bool) int {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	f = math.Max(math.MinInt32, math.Min(math.MaxInt32, math.Round(f)))
	n := int(f)
	if n == 0 && zeroIsDefault {
		return def
	}
	return n
}
