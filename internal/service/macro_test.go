package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/deskrunner/internal/config"
	"github.com/xiaot623/gogo/deskrunner/internal/domain"
	"github.com/xiaot623/gogo/deskrunner/internal/recorder"
)

func TestSaveMacroDefaults(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.SaveMacro(ctx, domain.Macro{Actions: []domain.RawAction{{"type": "wait"}}})
	assert.ErrorIs(t, err, domain.ErrMacroNameRequired)
	_, err = h.svc.SaveMacro(ctx, domain.Macro{Name: "Empty"})
	assert.ErrorIs(t, err, domain.ErrMacroActionsRequired)

	saved, err := h.svc.SaveMacro(ctx, domain.Macro{
		Name:    "Write Note",
		Actions: []domain.RawAction{{"type": "type", "text": "Hi {{name}}"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "write-note", saved.ID)
	assert.Equal(t, domain.DefaultMacroMaxActions, saved.Safety.MaxActions)

	info := &domain.RecordingInfo{EventCount: 3, ActionCount: 1}
	_, err = h.svc.SaveMacro(ctx, domain.Macro{ID: saved.ID, Name: "Write Note", Actions: saved.Actions, Recording: info})
	require.NoError(t, err)

	updated, err := h.svc.SaveMacro(ctx, domain.Macro{
		ID:      saved.ID,
		Name:    "Write Note",
		Actions: []domain.RawAction{{"type": "type", "text": "Bye {{name}}"}},
	})
	require.NoError(t, err)
	assert.True(t, updated.CreatedAt.Equal(saved.CreatedAt))
	assert.Equal(t, info, updated.Recording)

	got, err := h.svc.GetMacro(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bye {{name}}", got.Actions[0]["text"])
	assert.Equal(t, []string{"name"}, h.svc.MacroParams(*got))
}

func TestRunMacroRendersParams(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.SaveMacro(ctx, domain.Macro{
		Name:    "greet",
		Actions: []domain.RawAction{{"type": "type", "text": "Hello {{ who }}"}},
		Safety:  domain.SafetyConfig{RequireApprovalFor: []domain.RiskTag{domain.RiskTagClipboard}},
	})
	require.NoError(t, err)

	run, err := h.svc.RunMacro(ctx, "greet", domain.MacroRunRequest{Params: map[string]any{"who": "Ada"}})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, "greet", run.TaskName)
	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, "Hello Ada", h.exec.calls[0]["text"])

	stored, err := h.svc.GetMacro(ctx, "greet")
	require.NoError(t, err)
	assert.Equal(t, "Hello {{ who }}", stored.Actions[0]["text"], "stored macro is never rewritten")

	_, err = h.svc.RunMacro(ctx, "missing", domain.MacroRunRequest{})
	assert.ErrorIs(t, err, domain.ErrMacroNotFound)
}

func TestListAndDeleteMacros(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for _, name := range []string{"one", "two"} {
		_, err := h.svc.SaveMacro(ctx, domain.Macro{Name: name, Actions: []domain.RawAction{{"type": "wait"}}})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	macros, err := h.svc.ListMacros(ctx)
	require.NoError(t, err)
	require.Len(t, macros, 2)
	assert.Equal(t, "two", macros[0].ID)

	require.NoError(t, h.svc.DeleteMacro(ctx, "one"))
	assert.ErrorIs(t, h.svc.DeleteMacro(ctx, "one"), domain.ErrMacroNotFound)
	_, err = h.svc.GetMacro(ctx, "one")
	assert.ErrorIs(t, err, domain.ErrMacroNotFound)
}

func TestCompileRecordingUsesConfiguredDefaults(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, _ *Deps) { cfg.RecordMaxActions = 2 })

	events := []domain.RecordedEvent{
		{Type: domain.RecordedEventChar, Value: "h", DelayMs: 0},
		{Type: domain.RecordedEventChar, Value: "i", DelayMs: 50},
		{Type: domain.RecordedEventKey, Combo: "ENTER", DelayMs: 100},
		{Type: domain.RecordedEventKey, Combo: "TAB", DelayMs: 100},
	}
	resp := h.svc.CompileRecording(domain.CompileRequest{Events: events})
	assert.LessOrEqual(t, len(resp.Actions), 2)
	assert.True(t, resp.Stats.Truncated)
	assert.Equal(t, "type", resp.Actions[0]["type"])

	limit := 10
	resp = h.svc.CompileRecording(domain.CompileRequest{Events: events, Options: domain.CompileOptions{MaxActions: &limit}})
	assert.False(t, resp.Stats.Truncated)

	empty := h.svc.CompileRecording(domain.CompileRequest{})
	assert.NotNil(t, empty.Actions)
	assert.Empty(t, empty.Actions)
}

func TestRecordMacro(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{rec: &recorder.Recording{
		Events: []domain.RecordedEvent{
			{Type: domain.RecordedEventChar, Value: "o", DelayMs: 0},
			{Type: domain.RecordedEventChar, Value: "k", DelayMs: 30},
		},
		StartedAt:  "2024-01-01T00:00:00Z",
		StoppedAt:  "2024-01-01T00:00:02Z",
		DurationMs: 2000,
	}}
	h := newHarness(t, func(_ *config.Config, deps *Deps) { deps.Recorder = rec })

	resp, err := h.svc.RecordMacro(ctx, domain.RecordRequest{StopKey: "F9", SaveAs: "Typed OK"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Summary.EventCount)
	assert.Equal(t, 1, resp.Summary.ActionCount)
	assert.Equal(t, "F9", resp.Summary.StopKey)
	assert.Equal(t, int64(2000), resp.Summary.DurationMs)
	assert.Equal(t, "ok", resp.Actions[0]["text"])
	require.NotNil(t, resp.Macro)
	assert.Equal(t, "typed-ok", resp.Macro.ID)
	require.NotNil(t, resp.Macro.Recording)
	assert.Equal(t, 2, resp.Macro.Recording.EventCount)
}

func TestRecordMacroErrors(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t)
	_, err := h.svc.RecordMacro(ctx, domain.RecordRequest{})
	assert.ErrorIs(t, err, domain.ErrRecorderUnavailable)

	failing := &fakeRecorder{err: domain.ErrRecordingEmpty}
	h = newHarness(t, func(_ *config.Config, deps *Deps) { deps.Recorder = failing })
	_, err = h.svc.RecordMacro(ctx, domain.RecordRequest{})
	assert.True(t, errors.Is(err, domain.ErrRecordingEmpty))
}

func TestTrustManagement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	apps, err := h.svc.RecordTrusted(ctx, "ws", []string{"Notepad.exe", "calc.exe"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"notepad.exe", "calc.exe"}, apps)

	require.NoError(t, h.svc.ResetTrusted(ctx, "ws"))
	apps, err = h.svc.ListTrusted(ctx, "ws")
	require.NoError(t, err)
	assert.Empty(t, apps)
}
