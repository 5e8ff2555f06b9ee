package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// Record captures a live recording. It blocks until the stop key is pressed.
// POST /v1/recordings
func (h *Handler) Record(c echo.Context) error {
	var req domain.RecordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	resp, err := h.service.RecordMacro(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// CompileRecording compiles supplied events into actions.
// POST /v1/recordings/compile
func (h *Handler) CompileRecording(c echo.Context) error {
	var req domain.CompileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return c.JSON(http.StatusOK, h.service.CompileRecording(req))
}

func (h *Handler) ListMacros(c echo.Context) error {
	macros, err := h.service.ListMacros(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"macros": macros})
}

// SaveMacro creates or replaces a macro.
// POST /v1/macros
func (h *Handler) SaveMacro(c echo.Context) error {
	var m domain.Macro
	if err := c.Bind(&m); err != nil {
		return badRequest(c, "invalid request body")
	}
	saved, err := h.service.SaveMacro(c.Request().Context(), m)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

// MacroParams lists the parameters a macro body references.
// POST /v1/macros/params
func (h *Handler) MacroParams(c echo.Context) error {
	var m domain.Macro
	if err := c.Bind(&m); err != nil {
		return badRequest(c, "invalid request body")
	}
	return c.JSON(http.StatusOK, domain.MacroParamsResponse{Params: h.service.MacroParams(m)})
}

func (h *Handler) GetMacro(c echo.Context) error {
	m, err := h.service.GetMacro(c.Request().Context(), c.Param("macro_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMacro(c echo.Context) error {
	if err := h.service.DeleteMacro(c.Request().Context(), c.Param("macro_id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// RunMacro renders a macro with parameters and runs it.
// POST /v1/macros/:macro_id/run
func (h *Handler) RunMacro(c echo.Context) error {
	var req domain.MacroRunRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	run, err := h.service.RunMacro(c.Request().Context(), c.Param("macro_id"), req)
	if err != nil {
		return errorJSON(c, err)
	}
	if req.Async && run.Status == domain.RunStatusRunning {
		return c.JSON(http.StatusAccepted, domain.RunStartResponse{RunID: run.ID, Status: run.Status})
	}
	return c.JSON(http.StatusOK, run)
}
