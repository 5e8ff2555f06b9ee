package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRun(t *testing.T, store *SQLiteStore, id string) *domain.Run {
	t.Helper()
	run := &domain.Run{
		ID:          id,
		Status:      domain.RunStatusCreated,
		TaskName:    "Notes",
		Actions:     []domain.RawAction{{"type": "launch", "target": "notepad.exe"}},
		Safety:      domain.SafetyConfig{MaxActions: 10, ApprovalMode: domain.ApprovalModePerStep},
		WorkspaceID: "ws1",
		CreatedBy:   "u1",
		CreatedAt:   time.Now(),
	}
	if err := store.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	return run
}

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedRun(t, store, "run_1")

	got, err := store.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil || got.TaskName != "Notes" || got.WorkspaceID != "ws1" || got.CreatedBy != "u1" {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.Safety.ApprovalMode != domain.ApprovalModePerStep || got.Safety.MaxActions != 10 {
		t.Fatalf("unexpected safety: %+v", got.Safety)
	}
	if len(got.Actions) != 1 || got.Actions[0]["target"] != "notepad.exe" {
		t.Fatalf("unexpected actions: %+v", got.Actions)
	}
	if got.StartedAt != nil || got.PendingApproval != nil || got.StopRequested {
		t.Fatalf("unexpected initial state: %+v", got)
	}

	missing, err := store.GetRun(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil run, got %+v, %v", missing, err)
	}
}

func TestSQLiteStoreTimelineAndArtifacts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedRun(t, store, "run_1")

	now := time.Now()
	for i, status := range []domain.TimelineStatus{domain.TimelineStatusOK, domain.TimelineStatusError} {
		entry := domain.TimelineEntry{
			Step:       i + 1,
			Type:       "screenshot",
			Status:     status,
			StartedAt:  now,
			FinishedAt: now,
			Action:     domain.RawAction{"type": "screenshot"},
		}
		if status == domain.TimelineStatusError {
			entry.Error = "boom"
		}
		if err := store.AppendTimeline(ctx, "run_1", entry); err != nil {
			t.Fatalf("AppendTimeline failed: %v", err)
		}
	}
	if err := store.AppendArtifact(ctx, "run_1", domain.Artifact{Type: domain.ArtifactTypeScreenshot, File: "a.png", Step: 1}); err != nil {
		t.Fatalf("AppendArtifact failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if len(got.Timeline) != 2 || got.Timeline[0].Step != 1 || got.Timeline[1].Error != "boom" {
		t.Fatalf("unexpected timeline: %+v", got.Timeline)
	}
	if got.Timeline[0].Action.Type() != "screenshot" {
		t.Fatalf("unexpected timeline action: %+v", got.Timeline[0].Action)
	}
	if len(got.Artifacts) != 1 || got.Artifacts[0].File != "a.png" {
		t.Fatalf("unexpected artifacts: %+v", got.Artifacts)
	}
}

func TestSQLiteStoreTerminalStatusIsSticky(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedRun(t, store, "run_1")

	now := time.Now()
	ok, err := store.SetRunStatus(ctx, "run_1", domain.RunStatusRunning, domain.RunUpdate{StartedAt: &now})
	if err != nil || !ok {
		t.Fatalf("SetRunStatus running failed: %v %v", ok, err)
	}
	msg := "boom"
	ok, err = store.SetRunStatus(ctx, "run_1", domain.RunStatusError, domain.RunUpdate{FinishedAt: &now, Error: &msg})
	if err != nil || !ok {
		t.Fatalf("SetRunStatus error failed: %v %v", ok, err)
	}
	ok, err = store.SetRunStatus(ctx, "run_1", domain.RunStatusStopped, domain.RunUpdate{})
	if err != nil {
		t.Fatalf("SetRunStatus stopped failed: %v", err)
	}
	if ok {
		t.Fatalf("expected terminal status to be kept")
	}

	got, _ := store.GetRun(ctx, "run_1")
	if got.Status != domain.RunStatusError || got.Error != "boom" || got.StartedAt == nil || got.FinishedAt == nil {
		t.Fatalf("unexpected run: %+v", got)
	}
}

func TestSQLiteStorePendingApprovalAndStop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedRun(t, store, "run_1")

	pending := &domain.PendingApproval{ApprovalID: "apr_1", StepIndex: 2, Action: domain.RawAction{"type": "key", "combo": "CTRL+S"}}
	if err := store.SetPendingApproval(ctx, "run_1", pending); err != nil {
		t.Fatalf("SetPendingApproval failed: %v", err)
	}
	if err := store.SetStopRequested(ctx, "run_1"); err != nil {
		t.Fatalf("SetStopRequested failed: %v", err)
	}
	got, _ := store.GetRun(ctx, "run_1")
	if got.PendingApproval == nil || got.PendingApproval.StepIndex != 2 || got.PendingApproval.ApprovalID != "apr_1" {
		t.Fatalf("unexpected pending approval: %+v", got.PendingApproval)
	}
	if !got.StopRequested {
		t.Fatalf("expected stop requested")
	}

	if err := store.SetPendingApproval(ctx, "run_1", nil); err != nil {
		t.Fatalf("clear pending approval failed: %v", err)
	}
	got, _ = store.GetRun(ctx, "run_1")
	if got.PendingApproval != nil {
		t.Fatalf("expected pending approval cleared")
	}
}

func TestSQLiteStoreApprovals(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedRun(t, store, "run_1")

	old := &domain.Approval{
		ApprovalID: "apr_old",
		RunID:      "run_1",
		ActionType: "launch",
		Summary:    "Launch notepad.exe",
		Payload:    json.RawMessage(`{"type":"launch"}`),
		Status:     domain.ApprovalStatusPending,
		CreatedAt:  time.Now().Add(-10 * 24 * time.Hour),
	}
	fresh := &domain.Approval{
		ApprovalID: "apr_new",
		RunID:      "run_1",
		StepIndex:  1,
		ActionType: "key",
		Status:     domain.ApprovalStatusPending,
		CreatedAt:  time.Now(),
	}
	for _, ap := range []*domain.Approval{old, fresh} {
		if err := store.CreateApproval(ctx, ap); err != nil {
			t.Fatalf("CreateApproval failed: %v", err)
		}
	}

	stale, err := store.ListStalePendingApprovals(ctx, time.Now().Add(-7*24*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListStalePendingApprovals failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ApprovalID != "apr_old" {
		t.Fatalf("unexpected stale approvals: %+v", stale)
	}

	expired, err := store.ExpireApprovalIfPending(ctx, "apr_old", "stale")
	if err != nil || !expired {
		t.Fatalf("ExpireApprovalIfPending failed: %v %v", expired, err)
	}
	decided, err := store.DecideApprovalIfPending(ctx, "apr_old", domain.ApprovalStatusApproved, "alice", "")
	if err != nil {
		t.Fatalf("DecideApprovalIfPending failed: %v", err)
	}
	if decided {
		t.Fatalf("expired approval must not be decided")
	}

	decided, err = store.DecideApprovalIfPending(ctx, "apr_new", domain.ApprovalStatusApproved, "alice", "ok")
	if err != nil || !decided {
		t.Fatalf("DecideApprovalIfPending failed: %v %v", decided, err)
	}
	got, err := store.GetApproval(ctx, "apr_new")
	if err != nil || got == nil {
		t.Fatalf("GetApproval failed: %v", err)
	}
	if got.Status != domain.ApprovalStatusApproved || got.DecidedBy != "alice" || got.DecidedAt == nil {
		t.Fatalf("unexpected approval: %+v", got)
	}

	pending, err := store.ListApprovals(ctx, domain.ApprovalStatusPending, 0)
	if err != nil {
		t.Fatalf("ListApprovals failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending approvals, got %d", len(pending))
	}
	all, _ := store.ListApprovals(ctx, "", 0)
	if len(all) != 2 {
		t.Fatalf("expected 2 approvals, got %d", len(all))
	}
}

func TestSQLiteStoreMacros(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Now()
	for i, id := range []string{"first", "second"} {
		m := &domain.Macro{
			ID:        id,
			Name:      id,
			Actions:   []domain.RawAction{{"type": "wait", "ms": float64(100)}},
			CreatedAt: base,
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.SaveMacro(ctx, m); err != nil {
			t.Fatalf("SaveMacro failed: %v", err)
		}
	}

	list, err := store.ListMacros(ctx)
	if err != nil {
		t.Fatalf("ListMacros failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "second" {
		t.Fatalf("unexpected order: %+v", list)
	}

	got, err := store.GetMacro(ctx, "first")
	if err != nil || got == nil || len(got.Actions) != 1 {
		t.Fatalf("GetMacro failed: %+v %v", got, err)
	}

	deleted, err := store.DeleteMacro(ctx, "first")
	if err != nil || !deleted {
		t.Fatalf("DeleteMacro failed: %v %v", deleted, err)
	}
	deleted, _ = store.DeleteMacro(ctx, "first")
	if deleted {
		t.Fatalf("expected second delete to report false")
	}
	if m, _ := store.GetMacro(ctx, "first"); m != nil {
		t.Fatalf("expected macro to be gone")
	}
}

func TestSQLiteStoreEventsAndFlags(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedRun(t, store, "run_1")

	for i, typ := range []domain.EventType{domain.EventTypeRunStarted, domain.EventTypeStepStarted} {
		ev := &domain.Event{EventID: string(typ), RunID: "run_1", Ts: int64(100 + i), Type: typ}
		if err := store.CreateEvent(ctx, ev); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
	}
	events, err := store.GetEvents(ctx, "run_1", 100, 0)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventTypeStepStarted {
		t.Fatalf("unexpected events: %+v", events)
	}

	flag, err := store.GetFlag(ctx, "kill_switch")
	if err != nil || flag != nil {
		t.Fatalf("expected unset flag, got %s %v", flag, err)
	}
	if err := store.SetFlag(ctx, "kill_switch", json.RawMessage(`{"enabled":true}`)); err != nil {
		t.Fatalf("SetFlag failed: %v", err)
	}
	if err := store.SetFlag(ctx, "kill_switch", json.RawMessage(`{"enabled":false}`)); err != nil {
		t.Fatalf("SetFlag overwrite failed: %v", err)
	}
	flag, _ = store.GetFlag(ctx, "kill_switch")
	if string(flag) != `{"enabled":false}` {
		t.Fatalf("unexpected flag: %s", flag)
	}
}

func TestSQLiteStoreArtifactDir(t *testing.T) {
	store := newTestStore(t)
	dir, err := store.ArtifactDir("run_1")
	if err != nil {
		t.Fatalf("ArtifactDir failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected artifact dir to exist: %v", err)
	}
}
