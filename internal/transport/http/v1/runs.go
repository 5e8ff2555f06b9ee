package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// AssessPlan classifies a plan without running it.
// POST /v1/plans/assess
func (h *Handler) AssessPlan(c echo.Context) error {
	var req domain.AssessRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	assessment, err := h.service.AssessPlan(c.Request().Context(), req.Plan, req.WorkspaceID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, assessment)
}

// CreateRun creates a run for a plan and starts it.
// POST /v1/runs
func (h *Handler) CreateRun(c echo.Context) error {
	var req domain.CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	rc := domain.RunContext{WorkspaceID: req.WorkspaceID, UserID: req.UserID}
	run, err := h.service.RunPlan(c.Request().Context(), req.Plan, rc, req.Async)
	if err != nil {
		return errorJSON(c, err)
	}
	if req.Async && run.Status == domain.RunStatusRunning {
		return c.JSON(http.StatusAccepted, domain.RunStartResponse{RunID: run.ID, Status: run.Status})
	}
	return c.JSON(http.StatusOK, run)
}

// ListRuns lists recent runs.
// GET /v1/runs?limit=
func (h *Handler) ListRuns(c echo.Context) error {
	runs, err := h.service.ListRuns(c.Request().Context(), queryInt(c, "limit", 0))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetRun returns a run with its timeline and artifacts.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	run, err := h.service.GetRun(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// GetRunEvents returns the stored events of a run.
// GET /v1/runs/:run_id/events?after_ts=&limit=
func (h *Handler) GetRunEvents(c echo.Context) error {
	runID := c.Param("run_id")
	afterTs, _ := strconv.ParseInt(c.QueryParam("after_ts"), 10, 64)

	events, err := h.service.GetRunEvents(c.Request().Context(), runID, afterTs, queryInt(c, "limit", 0))
	if err != nil {
		return errorJSON(c, err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"events": events,
	})
}

// StreamRun upgrades to a websocket that replays the stored events of a
// run and then pushes new ones as they are recorded.
// GET /v1/runs/:run_id/stream
func (h *Handler) StreamRun(c echo.Context) error {
	if h.hub == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "streaming disabled"})
	}
	runID := c.Param("run_id")
	events, err := h.service.GetRunEvents(c.Request().Context(), runID, 0, 0)
	if err != nil {
		return errorJSON(c, err)
	}

	backlog := make([][]byte, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		backlog = append(backlog, data)
	}
	return h.hub.Serve(c.Response(), c.Request(), runID, backlog)
}

// ContinueRun resumes a run whose approval was granted.
// POST /v1/runs/:run_id/continue?async=true
func (h *Handler) ContinueRun(c echo.Context) error {
	runID := c.Param("run_id")
	ctx := c.Request().Context()

	if queryBool(c, "async") {
		run, err := h.service.ContinueRunAsync(ctx, runID)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusAccepted, domain.RunStartResponse{RunID: run.ID, Status: run.Status})
	}

	run, err := h.service.ContinueRun(ctx, runID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// StopRun requests a run to stop.
// POST /v1/runs/:run_id/stop
func (h *Handler) StopRun(c echo.Context) error {
	run, err := h.service.RequestStop(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func queryBool(c echo.Context, name string) bool {
	v, err := strconv.ParseBool(c.QueryParam(name))
	return err == nil && v
}
