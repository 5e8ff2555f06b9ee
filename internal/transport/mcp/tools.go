package mcp

import (
	"context"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

func (s *Server) registerTools() {
	planArg := mcplib.WithObject("plan",
		mcplib.Description(`Desktop plan: {"task_name": "...", "actions": [{"type": "launch", "target": "notepad.exe"}, ...], "safety": {"approval_mode": "per_run|per_step", "max_actions": 40, "require_approval_for": ["launch", ...]}}`),
		mcplib.Required(),
	)
	workspaceArg := mcplib.WithString("workspace_id", mcplib.Description("Workspace whose trust list applies. Defaults to \"default\"."))

	s.mcpServer.AddTool(
		mcplib.NewTool("desktop_assess",
			mcplib.WithDescription("Classify a desktop plan: risk tags, new apps, whether approval is needed and whether it fits the action limit. Nothing is executed."),
			mcplib.WithReadOnlyHintAnnotation(true),
			planArg,
			workspaceArg,
		),
		s.handleAssess,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("desktop_run",
			mcplib.WithDescription("Run a desktop plan. Plans over the action limit are rejected before anything runs. Risky plans stop in approval_required until an operator approves; then call desktop_continue."),
			mcplib.WithDestructiveHintAnnotation(true),
			planArg,
			workspaceArg,
			mcplib.WithString("user_id", mcplib.Description("Who is starting the run")),
			mcplib.WithBoolean("async", mcplib.Description("Return as soon as the run has started")),
		),
		s.handleRun,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("desktop_get_run",
			mcplib.WithDescription("Get a run with its timeline, artifacts and pending approval."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithString("run_id", mcplib.Description("Run identifier"), mcplib.Required()),
		),
		s.handleGetRun,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("desktop_continue",
			mcplib.WithDescription("Resume a run whose pending approval was approved."),
			mcplib.WithString("run_id", mcplib.Description("Run identifier"), mcplib.Required()),
			mcplib.WithBoolean("async", mcplib.Description("Return as soon as the run has resumed")),
		),
		s.handleContinue,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("desktop_stop",
			mcplib.WithDescription("Request a run to stop. It stops before its next step."),
			mcplib.WithString("run_id", mcplib.Description("Run identifier"), mcplib.Required()),
		),
		s.handleStop,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("desktop_compile_recording",
			mcplib.WithDescription("Compile recorded input events into a compact action list."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithArray("events", mcplib.Description(`Recorded events, e.g. {"type": "char", "value": "a", "delayMs": 120}`), mcplib.Required()),
			mcplib.WithObject("options", mcplib.Description("Compiler options: merge_window_ms, max_wait_ms, max_actions")),
		),
		s.handleCompileRecording,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("desktop_macro_list",
			mcplib.WithDescription("List saved desktop macros."),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleMacroList,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("desktop_macro_run",
			mcplib.WithDescription("Run a saved macro, filling its {{param}} placeholders."),
			mcplib.WithDestructiveHintAnnotation(true),
			mcplib.WithString("macro_id", mcplib.Description("Macro identifier"), mcplib.Required()),
			mcplib.WithObject("params", mcplib.Description("Template parameters")),
			workspaceArg,
			mcplib.WithBoolean("async", mcplib.Description("Return as soon as the run has started")),
		),
		s.handleMacroRun,
	)
}

func (s *Server) handleAssess(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	var plan domain.Plan
	if err := decodeArg(request, "plan", &plan); err != nil {
		return errorResult(err.Error()), nil
	}
	assessment, err := s.service.AssessPlan(ctx, plan, request.GetString("workspace_id", ""))
	if err != nil {
		return errorResult(fmt.Sprintf("assessment failed: %v", err)), nil
	}
	return jsonResult(assessment)
}

func (s *Server) handleRun(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	var plan domain.Plan
	if err := decodeArg(request, "plan", &plan); err != nil {
		return errorResult(err.Error()), nil
	}
	if len(plan.Actions) == 0 {
		return errorResult(domain.ErrActionsRequired.Error()), nil
	}

	rc := domain.RunContext{
		WorkspaceID: request.GetString("workspace_id", ""),
		UserID:      request.GetString("user_id", ""),
	}
	assessment, err := s.service.AssessPlan(ctx, plan, rc.WorkspaceID)
	if err != nil {
		return errorResult(fmt.Sprintf("assessment failed: %v", err)), nil
	}
	if assessment.TotalActions > assessment.MaxActions {
		return errorResult(fmt.Sprintf("%s: %d actions, limit %d", domain.ErrPlanTooLarge, assessment.TotalActions, assessment.MaxActions)), nil
	}

	run, err := s.service.RunPlan(ctx, plan, rc, request.GetBool("async", false))
	if err != nil {
		return errorResult(fmt.Sprintf("run failed: %v", err)), nil
	}
	s.logger.Info("mcp: desktop run", "run_id", run.ID, "status", run.Status)
	return jsonResult(map[string]any{
		"run":        run,
		"assessment": assessment,
	})
}

func (s *Server) handleGetRun(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}
	run, err := s.service.GetRun(ctx, runID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(run)
}

func (s *Server) handleContinue(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}
	var (
		run *domain.Run
		err error
	)
	if request.GetBool("async", false) {
		run, err = s.service.ContinueRunAsync(ctx, runID)
	} else {
		run, err = s.service.ContinueRun(ctx, runID)
	}
	if err != nil {
		if errors.Is(err, domain.ErrApprovalNotApproved) {
			return errorResult("approval is still pending or was rejected: " + err.Error()), nil
		}
		return errorResult(err.Error()), nil
	}
	return jsonResult(run)
}

func (s *Server) handleStop(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}
	run, err := s.service.RequestStop(ctx, runID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(run)
}

func (s *Server) handleCompileRecording(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	var req domain.CompileRequest
	if err := decodeArg(request, "events", &req.Events); err != nil {
		return errorResult(err.Error()), nil
	}
	if _, ok := request.GetArguments()["options"]; ok {
		if err := decodeArg(request, "options", &req.Options); err != nil {
			return errorResult(err.Error()), nil
		}
	}
	return jsonResult(s.service.CompileRecording(req))
}

func (s *Server) handleMacroList(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	macros, err := s.service.ListMacros(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	out := make([]map[string]any, 0, len(macros))
	for _, m := range macros {
		out = append(out, map[string]any{
			"id":          m.ID,
			"name":        m.Name,
			"description": m.Description,
			"actions":     len(m.Actions),
			"params":      s.service.MacroParams(m),
		})
	}
	return jsonResult(map[string]any{"macros": out, "total": len(out)})
}

func (s *Server) handleMacroRun(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	macroID := request.GetString("macro_id", "")
	if macroID == "" {
		return errorResult("macro_id is required"), nil
	}
	req := domain.MacroRunRequest{
		WorkspaceID: request.GetString("workspace_id", ""),
		Async:       request.GetBool("async", false),
	}
	if _, ok := request.GetArguments()["params"]; ok {
		if err := decodeArg(request, "params", &req.Params); err != nil {
			return errorResult(err.Error()), nil
		}
	}
	run, err := s.service.RunMacro(ctx, macroID, req)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(run)
}
