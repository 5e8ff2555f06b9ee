package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrRunNotFound, http.StatusNotFound},
	{domain.ErrApprovalNotFound, http.StatusNotFound},
	{domain.ErrMacroNotFound, http.StatusNotFound},
	{domain.ErrRunBusy, http.StatusConflict},
	{domain.ErrRunTerminal, http.StatusConflict},
	{domain.ErrNoPendingApproval, http.StatusConflict},
	{domain.ErrApprovalNotApproved, http.StatusConflict},
	{domain.ErrApprovalNotPending, http.StatusConflict},
	{domain.ErrKillSwitchActive, http.StatusConflict},
	{domain.ErrPlanTooLarge, http.StatusBadRequest},
	{domain.ErrPlanBlocked, http.StatusBadRequest},
	{domain.ErrActionsRequired, http.StatusBadRequest},
	{domain.ErrActionInvalid, http.StatusBadRequest},
	{domain.ErrMacroNameRequired, http.StatusBadRequest},
	{domain.ErrMacroActionsRequired, http.StatusBadRequest},
	{domain.ErrInvalidDecision, http.StatusBadRequest},
	{domain.ErrExecutorUnavailable, http.StatusServiceUnavailable},
	{domain.ErrRecorderUnavailable, http.StatusServiceUnavailable},
	{domain.ErrRecordingEmpty, http.StatusBadGateway},
	{domain.ErrRecordingInvalidJSON, http.StatusBadGateway},
}

// errorStatus maps a service error to its HTTP status and stable code.
func errorStatus(err error) (int, string) {
	for _, entry := range errorStatuses {
		if errors.Is(err, entry.err) {
			return entry.status, entry.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func errorJSON(c echo.Context, err error) error {
	status, code := errorStatus(err)
	return c.JSON(status, map[string]string{"error": code, "message": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
