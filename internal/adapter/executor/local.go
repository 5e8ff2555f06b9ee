package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// Backend is the executor a LocalExecutor delegates to.
type Backend interface {
	Execute(ctx context.Context, action domain.Action, artifactDir string) (*domain.ExecResult, error)
	Ready() error
}

var clipboardWriteAll = clipboard.WriteAll

// LocalExecutor runs wait and clipboardSet in-process and delegates every
// other action to its backend.
type LocalExecutor struct {
	next Backend
}

// NewLocalExecutor wraps next. next may be nil, in which case only local
// actions can run and Ready fails.
func NewLocalExecutor(next Backend) *LocalExecutor {
	return &LocalExecutor{next: next}
}

// Ready reports whether the backend is available.
func (l *LocalExecutor) Ready() error {
	if l.next == nil {
		return domain.ErrExecutorUnavailable
	}
	return l.next.Ready()
}

// Execute runs one action.
func (l *LocalExecutor) Execute(ctx context.Context, action domain.Action, artifactDir string) (*domain.ExecResult, error) {
	switch a := action.(type) {
	case domain.Wait:
		if a.Ms <= 0 {
			return &domain.ExecResult{OK: true}, nil
		}
		timer := time.NewTimer(time.Duration(min(a.Ms, domain.MaxWaitMs)) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return &domain.ExecResult{OK: true}, nil
		}
	case domain.ClipboardSet:
		if err := clipboardWriteAll(a.Text); err != nil {
			return nil, &ExecError{Message: fmt.Sprintf("clipboard write failed: %v", err), ExitCode: 1}
		}
		return &domain.ExecResult{OK: true}, nil
	}
	if l.next == nil {
		return nil, domain.ErrExecutorUnavailable
	}
	return l.next.Execute(ctx, action, artifactDir)
}
