// Package executor runs desktop actions, OCR and recordings by spawning the
// configured external programs.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// ExecError is a failure reported by an external program.
type ExecError struct {
	Message  string
	ExitCode int
}

func (e *ExecError) Error() string {
	return e.Message
}

// Command is a program plus its fixed leading arguments.
type Command struct {
	Name string
	Args []string
}

// ParseCommand builds a Command from a program name and a whitespace
// separated argument string.
func ParseCommand(name, args string) Command {
	return Command{Name: strings.TrimSpace(name), Args: strings.Fields(args)}
}

// Ready reports whether the program and its script (the argument following
// -File, if any) can be found.
func (c Command) Ready() error {
	if c.Name == "" {
		return errors.New("command not configured")
	}
	if _, err := exec.LookPath(c.Name); err != nil {
		return err
	}
	for i, arg := range c.Args {
		if strings.EqualFold(arg, "-File") && i+1 < len(c.Args) {
			if _, err := os.Stat(c.Args[i+1]); err != nil {
				return fmt.Errorf("script missing: %w", err)
			}
		}
	}
	return nil
}

// Run executes the command with extra arguments and returns trimmed stdout.
// A non-zero exit becomes an *ExecError carrying stderr, or fallback when
// stderr is empty.
func (c Command) Run(ctx context.Context, fallback string, extra ...string) (string, error) {
	args := append(append([]string{}, c.Args...), extra...)
	cmd := exec.CommandContext(ctx, c.Name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = fallback
			}
			return "", &ExecError{Message: msg, ExitCode: exitErr.ExitCode()}
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ProcessExecutor hands each action to an external program as
// -ActionJson <json> -ArtifactDir <dir>.
type ProcessExecutor struct {
	cmd    Command
	logger *slog.Logger
}

// NewProcessExecutor creates an executor for cmd.
func NewProcessExecutor(cmd Command, logger *slog.Logger) *ProcessExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessExecutor{cmd: cmd, logger: logger}
}

// Ready reports whether the executor program is available.
func (p *ProcessExecutor) Ready() error {
	if err := p.cmd.Ready(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExecutorUnavailable, err)
	}
	return nil
}

type processResult struct {
	OK           *bool  `json:"ok"`
	Artifact     string `json:"artifact"`
	ArtifactType string `json:"artifactType"`
	Error        string `json:"error"`
}

// Execute runs one action and parses the program's JSON reply.
func (p *ProcessExecutor) Execute(ctx context.Context, action domain.Action, artifactDir string) (*domain.ExecResult, error) {
	payload, err := json.Marshal(domain.EncodeAction(action))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action: %w", err)
	}
	stdout, err := p.cmd.Run(ctx, "desktop_action_failed", "-ActionJson", string(payload), "-ArtifactDir", artifactDir)
	if err != nil {
		return nil, err
	}
	if stdout == "" {
		return &domain.ExecResult{OK: true}, nil
	}

	var res processResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		p.logger.Debug("executor returned non-JSON output", "type", action.Kind(), "output", stdout)
		return &domain.ExecResult{OK: true, Raw: stdout}, nil
	}
	if res.OK != nil && !*res.OK {
		msg := res.Error
		if msg == "" {
			msg = "desktop_action_failed"
		}
		return nil, &ExecError{Message: msg}
	}
	return &domain.ExecResult{
		OK:           true,
		Artifact:     res.Artifact,
		ArtifactType: domain.ArtifactType(res.ArtifactType),
	}, nil
}
