package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

func TestStreamURL(t *testing.T) {
	got, err := streamURL("http://localhost:8080/", "run_1")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/v1/runs/run_1/stream", got)

	got, err = streamURL("https://runner.local/api", "run_2")
	require.NoError(t, err)
	assert.Equal(t, "wss://runner.local/api/v1/runs/run_2/stream", got)
}

func TestFormatEvent(t *testing.T) {
	ev := domain.Event{Ts: 0, Type: "run_started"}
	assert.Contains(t, formatEvent(ev), "run_started")

	ev.Payload = json.RawMessage(`{"step":1}`)
	assert.Contains(t, formatEvent(ev), `run_started {"step":1}`)
}

func TestReadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"task_name":"t","actions":[{"type":"wait","ms":10}]}`), 0o644))

	plan, err := readPlan(path)
	require.NoError(t, err)
	assert.Equal(t, "t", plan.TaskName)
	assert.Len(t, plan.Actions, 1)

	_, err = readPlan(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/runs/run_ok":
			_, _ = w.Write([]byte(`{"id":"run_ok","status":"completed"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"run_not_found","message":"run_not_found"}`))
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")

	out, err := client.Do(http.MethodGet, "/v1/runs/run_ok", nil)
	require.NoError(t, err)
	var run domain.Run
	require.NoError(t, json.Unmarshal(out, &run))
	assert.Equal(t, domain.RunStatusCompleted, run.Status)

	_, err = client.Do(http.MethodGet, "/v1/runs/nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run_not_found (404)")
}
