// Package v1 provides the public HTTP handlers of the desktop runner.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/deskrunner/internal/hub"
	"github.com/xiaot623/gogo/deskrunner/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	hub     *hub.Hub
}

// NewHandler creates a new handler. streams may be nil, in which case the
// websocket stream endpoint reports 503.
func NewHandler(service *service.Service, streams *hub.Hub) *Handler {
	return &Handler{
		service: service,
		hub:     streams,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Plans and runs
	e.POST("/v1/plans/assess", h.AssessPlan)
	e.POST("/v1/runs", h.CreateRun)
	e.GET("/v1/runs", h.ListRuns)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
	e.GET("/v1/runs/:run_id/stream", h.StreamRun)
	e.POST("/v1/runs/:run_id/continue", h.ContinueRun)
	e.POST("/v1/runs/:run_id/stop", h.StopRun)

	// Approvals
	e.GET("/v1/approvals", h.ListApprovals)
	e.GET("/v1/approvals/:approval_id", h.GetApproval)
	e.POST("/v1/approvals/:approval_id/decide", h.DecideApproval)

	// Trust list and kill switch
	e.GET("/v1/trust/:workspace_id", h.ListTrusted)
	e.POST("/v1/trust/:workspace_id", h.RecordTrusted)
	e.DELETE("/v1/trust/:workspace_id", h.ResetTrusted)
	e.GET("/v1/kill-switch", h.GetKillSwitch)
	e.POST("/v1/kill-switch", h.SetKillSwitch)

	// Recordings and macros
	e.POST("/v1/recordings", h.Record)
	e.POST("/v1/recordings/compile", h.CompileRecording)
	e.GET("/v1/macros", h.ListMacros)
	e.POST("/v1/macros", h.SaveMacro)
	e.POST("/v1/macros/params", h.MacroParams)
	e.GET("/v1/macros/:macro_id", h.GetMacro)
	e.DELETE("/v1/macros/:macro_id", h.DeleteMacro)
	e.POST("/v1/macros/:macro_id/run", h.RunMacro)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
