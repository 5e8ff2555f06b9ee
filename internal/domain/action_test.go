package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeActionDefaults(t *testing.T) {
	cases := []struct {
		name string
		raw  RawAction
		want Action
	}{
		{"launch from app", RawAction{"type": "Launch", "app": "  notepad.exe "}, Launch{Target: "notepad.exe"}},
		{"wait default", RawAction{"type": "wait"}, Wait{Ms: 500}},
		{"wait zero uses default", RawAction{"type": "wait", "ms": float64(0)}, Wait{Ms: 500}},
		{"wait capped", RawAction{"type": "wait", "ms": 1e300}, Wait{Ms: MaxWaitMs}},
		{"wait capped from string", RawAction{"type": "wait", "ms": "9e18"}, Wait{Ms: MaxWaitMs}},
		{"key from key field", RawAction{"type": "key", "key": "CTRL+S"}, Key{Combo: "CTRL+S"}},
		{"click defaults", RawAction{"type": "mouseclick", "x": float64(10), "y": "20"}, MouseClick{X: 10, Y: 20, Button: "left", Count: 1}},
		{"screenshot default", RawAction{"type": "screenshot"}, Screenshot{Name: "desktop"}},
		{"ocr defaults", RawAction{"type": "visionOcr"}, VisionOCR{Name: "ocr", Lang: "eng"}},
		{"uia click", RawAction{"type": "uiaClick", "automationId": "btnOk"}, UIAClick{UIATarget{AutomationID: "btnOk"}}},
		{"clipboard", RawAction{"type": "clipboardSet", "text": "x"}, ClipboardSet{Text: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeAction(tc.raw)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeActionMalformed(t *testing.T) {
	for _, raw := range []RawAction{
		{},
		{"type": "  "},
		{"type": "launch"},
		{"type": "launch", "target": "   "},
		{"type": "uiaClick", "className": "Button"},
	} {
		_, ok := NormalizeAction(raw)
		assert.False(t, ok, "%v", raw)
	}
}

func TestNormalizeActionUnknownPassThrough(t *testing.T) {
	got, ok := NormalizeAction(RawAction{"type": "dragDrop", "from": "a"})
	require.True(t, ok)
	assert.Equal(t, ActionType("dragDrop"), got.Kind())

	encoded := EncodeAction(got)
	assert.Equal(t, "dragDrop", encoded["type"])
	assert.Equal(t, "a", encoded["from"])
}

func TestEncodeActionUsesCanonicalType(t *testing.T) {
	action, ok := NormalizeAction(RawAction{"type": "MOUSEMOVE", "x": 3, "y": 4})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "mouseMove", "x": 3, "y": 4}, EncodeAction(action))
}

func TestLaunchTargetsDistinct(t *testing.T) {
	targets := LaunchTargets([]RawAction{
		{"type": "launch", "target": "notepad.exe"},
		{"type": "type", "text": "hi"},
		{"type": "launch", "path": " notepad.exe"},
		{"type": "launch", "target": "calc.exe"},
	})
	assert.Equal(t, []string{"notepad.exe", "calc.exe"}, targets)
}

func TestSafetyConfigClamp(t *testing.T) {
	assert.Equal(t, 40, SafetyConfig{}.EffectiveMaxActions(40))
	assert.Equal(t, 10, SafetyConfig{MaxActions: 10}.EffectiveMaxActions(40))
	assert.Equal(t, 40, SafetyConfig{MaxActions: 500}.EffectiveMaxActions(40))
	assert.Equal(t, ApprovalModePerRun, SafetyConfig{ApprovalMode: "bogus"}.Mode())
}
