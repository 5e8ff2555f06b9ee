package recorder

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/deskrunner/internal/adapter/executor"
	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

func shellRecorder(t *testing.T, script string) *ProcessRecorder {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return NewProcessRecorder(executor.Command{Name: "sh", Args: []string{"-c", script, "recorder"}})
}

func TestRecordDecodesPayload(t *testing.T) {
	r := shellRecorder(t, `echo '{"events":[{"type":"char","value":"a","delayMs":0},{"type":"key","combo":"ENTER","delayMs":80}],"startedAt":"s","stoppedAt":"e","durationMs":900}'`)

	rec, err := r.Record(context.Background(), RecordOptions{})
	require.NoError(t, err)
	assert.Len(t, rec.Events, 2)
	assert.Equal(t, int64(900), rec.DurationMs)
	assert.Equal(t, DefaultStopKey, rec.Options.StopKey)
	assert.Equal(t, DefaultSampleMs, rec.Options.SampleMs)
}

func TestRecordPassesOptions(t *testing.T) {
	r := shellRecorder(t, `if [ "$2" = "F9" ] && [ "$4" = "15" ] && [ "$7" = "-IncludeMouseMoves" ]; then echo '{"events":[]}'; else echo "bad args $*" >&2; exit 1; fi`)

	rec, err := r.Record(context.Background(), RecordOptions{StopKey: "F9", SampleMs: 15, IncludeMoves: true})
	require.NoError(t, err)
	assert.Empty(t, rec.Events)
}

func TestRecordErrors(t *testing.T) {
	_, err := shellRecorder(t, `true`).Record(context.Background(), RecordOptions{})
	assert.ErrorIs(t, err, domain.ErrRecordingEmpty)

	_, err = shellRecorder(t, `echo not-json`).Record(context.Background(), RecordOptions{})
	assert.ErrorIs(t, err, domain.ErrRecordingInvalidJSON)

	_, err = shellRecorder(t, `echo "hook failed" >&2; exit 4`).Record(context.Background(), RecordOptions{})
	var execErr *executor.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 4, execErr.ExitCode)

	_, err = NewProcessRecorder(executor.Command{}).Record(context.Background(), RecordOptions{})
	assert.ErrorIs(t, err, domain.ErrRecorderUnavailable)
}
