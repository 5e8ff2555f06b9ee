package service

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
	"github.com/xiaot623/gogo/deskrunner/internal/recorder"
)

// Executor performs one normalized action on the desktop.
type Executor interface {
	Execute(ctx context.Context, action domain.Action, artifactDir string) (*domain.ExecResult, error)
	Ready() error
}

// OCR extracts text from an image file.
type OCR interface {
	Recognize(ctx context.Context, imagePath, lang string) (string, error)
}

// Recorder captures live input until its stop key is pressed.
type Recorder interface {
	Record(ctx context.Context, opts recorder.RecordOptions) (*recorder.Recording, error)
}

// ApprovalGateway turns a risky step into a human decision.
type ApprovalGateway interface {
	CreateApproval(ctx context.Context, req domain.ApprovalRequest) (*domain.Approval, error)
	GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error)
}

// KillSwitch is the process-wide emergency stop.
type KillSwitch interface {
	IsEnabled(ctx context.Context) bool
	State(ctx context.Context) (domain.KillSwitchState, error)
	Set(ctx context.Context, req domain.KillSwitchRequest) (domain.KillSwitchState, error)
}

// EventPublisher pushes run events to live subscribers.
type EventPublisher interface {
	BroadcastJSON(runID string, v interface{}) error
}

// RunStore persists runs and their events.
type RunStore interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	SetRunStatus(ctx context.Context, runID string, status domain.RunStatus, update domain.RunUpdate) (bool, error)
	SetPendingApproval(ctx context.Context, runID string, pending *domain.PendingApproval) error
	SetStopRequested(ctx context.Context, runID string) error
	AppendTimeline(ctx context.Context, runID string, entry domain.TimelineEntry) error
	AppendArtifact(ctx context.Context, runID string, artifact domain.Artifact) error
	ArtifactDir(runID string) (string, error)
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.Event, error)
}

// ApprovalStore persists approval records.
type ApprovalStore interface {
	CreateApproval(ctx context.Context, approval *domain.Approval) error
	GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error)
	ListApprovals(ctx context.Context, status domain.ApprovalStatus, limit int) ([]domain.Approval, error)
	ListStalePendingApprovals(ctx context.Context, cutoff time.Time, limit int) ([]domain.Approval, error)
	DecideApprovalIfPending(ctx context.Context, approvalID string, status domain.ApprovalStatus, decidedBy, reason string) (bool, error)
	ExpireApprovalIfPending(ctx context.Context, approvalID string, reason string) (bool, error)
}

// MacroStore persists the macro library.
type MacroStore interface {
	SaveMacro(ctx context.Context, m *domain.Macro) error
	GetMacro(ctx context.Context, id string) (*domain.Macro, error)
	ListMacros(ctx context.Context) ([]domain.Macro, error)
	DeleteMacro(ctx context.Context, id string) (bool, error)
}

// Store is everything the service persists.
type Store interface {
	RunStore
	ApprovalStore
	MacroStore
}
