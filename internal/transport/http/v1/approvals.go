package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// ListApprovals lists approvals.
// GET /v1/approvals?status=&limit=
func (h *Handler) ListApprovals(c echo.Context) error {
	status := domain.ApprovalStatus(c.QueryParam("status"))
	approvals, err := h.service.ListApprovals(c.Request().Context(), status, queryInt(c, "limit", 0))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"approvals": approvals})
}

// GetApproval returns one approval.
// GET /v1/approvals/:approval_id
func (h *Handler) GetApproval(c echo.Context) error {
	approval, err := h.service.GetApproval(c.Request().Context(), c.Param("approval_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, approval)
}

// DecideApproval approves or rejects a pending approval.
// POST /v1/approvals/:approval_id/decide
func (h *Handler) DecideApproval(c echo.Context) error {
	var req domain.ApprovalDecisionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	approval, err := h.service.DecideApproval(c.Request().Context(), c.Param("approval_id"), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, approval)
}
