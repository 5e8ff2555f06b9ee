package executor

import (
	"context"
	"errors"
	"math"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

type fakeBackend struct {
	calls []domain.Action
}

func (f *fakeBackend) Execute(ctx context.Context, action domain.Action, artifactDir string) (*domain.ExecResult, error) {
	f.calls = append(f.calls, action)
	return &domain.ExecResult{OK: true, Artifact: "shot.png"}, nil
}

func (f *fakeBackend) Ready() error { return nil }

func shell(t *testing.T, script string) Command {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return Command{Name: "sh", Args: []string{"-c", script, "executor"}}
}

func TestLocalExecutorWaitHonoursContext(t *testing.T) {
	l := NewLocalExecutor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Execute(ctx, domain.Wait{Ms: 5000}, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)

	start := time.Now()
	res, err := l.Execute(context.Background(), domain.Wait{Ms: 10}, t.TempDir())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestLocalExecutorWaitCapped(t *testing.T) {
	l := NewLocalExecutor(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := l.Execute(ctx, domain.Wait{Ms: math.MaxInt}, t.TempDir())
	assert.ErrorIs(t, err, context.DeadlineExceeded, "an oversized wait must still block, not overflow to zero")
}

func TestLocalExecutorClipboard(t *testing.T) {
	var written string
	orig := clipboardWriteAll
	clipboardWriteAll = func(text string) error {
		written = text
		return nil
	}
	t.Cleanup(func() { clipboardWriteAll = orig })

	backend := &fakeBackend{}
	l := NewLocalExecutor(backend)
	_, err := l.Execute(context.Background(), domain.ClipboardSet{Text: "hello"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "hello", written)
	assert.Empty(t, backend.calls)

	clipboardWriteAll = func(string) error { return errors.New("no display") }
	_, err = l.Execute(context.Background(), domain.ClipboardSet{Text: "x"}, t.TempDir())
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "no display")
}

func TestLocalExecutorDelegates(t *testing.T) {
	backend := &fakeBackend{}
	l := NewLocalExecutor(backend)
	res, err := l.Execute(context.Background(), domain.Screenshot{Name: "desktop"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "shot.png", res.Artifact)
	assert.Len(t, backend.calls, 1)

	_, err = NewLocalExecutor(nil).Execute(context.Background(), domain.Key{Combo: "A"}, t.TempDir())
	assert.ErrorIs(t, err, domain.ErrExecutorUnavailable)
	assert.ErrorIs(t, NewLocalExecutor(nil).Ready(), domain.ErrExecutorUnavailable)
}

func TestProcessExecutorParsesReply(t *testing.T) {
	cmd := shell(t, `echo '{"ok":true,"artifact":"desktop.png","artifactType":"screenshot"}'`)
	p := NewProcessExecutor(cmd, nil)
	require.NoError(t, p.Ready())

	res, err := p.Execute(context.Background(), domain.Screenshot{Name: "desktop"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "desktop.png", res.Artifact)
	assert.Equal(t, domain.ArtifactTypeScreenshot, res.ArtifactType)
}

func TestProcessExecutorPassesActionJSON(t *testing.T) {
	cmd := shell(t, `echo "$2"`)
	p := NewProcessExecutor(cmd, nil)

	res, err := p.Execute(context.Background(), domain.Key{Combo: "CTRL+S"}, t.TempDir())
	require.NoError(t, err)
	// The reply is the action payload itself, which carries no ok field.
	assert.True(t, res.OK)
}

func TestProcessExecutorEmptyAndRawOutput(t *testing.T) {
	res, err := NewProcessExecutor(shell(t, `true`), nil).Execute(context.Background(), domain.Key{Combo: "A"}, t.TempDir())
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = NewProcessExecutor(shell(t, `echo done`), nil).Execute(context.Background(), domain.Key{Combo: "A"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "done", res.Raw)
}

func TestProcessExecutorFailure(t *testing.T) {
	p := NewProcessExecutor(shell(t, `echo "window not found" >&2; exit 3`), nil)
	_, err := p.Execute(context.Background(), domain.Key{Combo: "A"}, t.TempDir())

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "window not found", execErr.Message)
	assert.Equal(t, 3, execErr.ExitCode)

	p = NewProcessExecutor(shell(t, `exit 2`), nil)
	_, err = p.Execute(context.Background(), domain.Key{Combo: "A"}, t.TempDir())
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "desktop_action_failed", execErr.Message)

	p = NewProcessExecutor(shell(t, `echo '{"ok":false,"error":"uia_element_not_found"}'`), nil)
	_, err = p.Execute(context.Background(), domain.Key{Combo: "A"}, t.TempDir())
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "uia_element_not_found", execErr.Message)
}

func TestProcessExecutorNotReady(t *testing.T) {
	p := NewProcessExecutor(Command{}, nil)
	assert.ErrorIs(t, p.Ready(), domain.ErrExecutorUnavailable)

	p = NewProcessExecutor(Command{Name: "sh", Args: []string{"-File", "/nonexistent/desktop_action.ps1"}}, nil)
	assert.ErrorIs(t, p.Ready(), domain.ErrExecutorUnavailable)
}

func TestProcessOCR(t *testing.T) {
	ocr := NewProcessOCR(shell(t, `echo "text from $1 in $4"`))
	text, err := ocr.Recognize(context.Background(), "/tmp/shot.png", "deu")
	require.NoError(t, err)
	assert.Equal(t, "text from /tmp/shot.png in deu", text)
}
