package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// ListTrusted returns the trusted apps of a workspace.
// GET /v1/trust/:workspace_id
func (h *Handler) ListTrusted(c echo.Context) error {
	workspaceID := c.Param("workspace_id")
	apps, err := h.service.ListTrusted(c.Request().Context(), workspaceID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"workspace_id": workspaceID, "apps": apps})
}

// RecordTrusted adds apps to a workspace's trust list.
// POST /v1/trust/:workspace_id
func (h *Handler) RecordTrusted(c echo.Context) error {
	var req domain.TrustRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Apps) == 0 {
		return badRequest(c, "apps is required")
	}
	workspaceID := c.Param("workspace_id")
	apps, err := h.service.RecordTrusted(c.Request().Context(), workspaceID, req.Apps)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"workspace_id": workspaceID, "apps": apps})
}

// ResetTrusted empties a workspace's trust list.
// DELETE /v1/trust/:workspace_id
func (h *Handler) ResetTrusted(c echo.Context) error {
	if err := h.service.ResetTrusted(c.Request().Context(), c.Param("workspace_id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// GetKillSwitch returns the kill switch state.
// GET /v1/kill-switch
func (h *Handler) GetKillSwitch(c echo.Context) error {
	state, err := h.service.KillSwitchState(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// SetKillSwitch toggles the kill switch.
// POST /v1/kill-switch
func (h *Handler) SetKillSwitch(c echo.Context) error {
	var req domain.KillSwitchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	state, err := h.service.SetKillSwitch(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, state)
}
