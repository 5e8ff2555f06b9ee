package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

const killSwitchFlag = "kill_switch"

// FlagStore persists runtime flags.
type FlagStore interface {
	GetFlag(ctx context.Context, key string) (json.RawMessage, error)
	SetFlag(ctx context.Context, key string, value json.RawMessage) error
}

// KillSwitch is the process-wide emergency stop. Running controllers poll it
// between steps.
type KillSwitch struct {
	flags  FlagStore
	logger *slog.Logger
}

func NewKillSwitch(flags FlagStore, logger *slog.Logger) *KillSwitch {
	if logger == nil {
		logger = slog.Default()
	}
	return &KillSwitch{flags: flags, logger: logger}
}

// State returns the stored kill switch state. An unset flag is disabled.
func (k *KillSwitch) State(ctx context.Context) (domain.KillSwitchState, error) {
	var state domain.KillSwitchState
	raw, err := k.flags.GetFlag(ctx, killSwitchFlag)
	if err != nil {
		return state, fmt.Errorf("failed to read kill switch: %w", err)
	}
	if raw == nil {
		return state, nil
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("failed to decode kill switch: %w", err)
	}
	return state, nil
}

// Set enables or disables the kill switch.
func (k *KillSwitch) Set(ctx context.Context, req domain.KillSwitchRequest) (domain.KillSwitchState, error) {
	state := domain.KillSwitchState{
		Enabled:     req.Enabled,
		Reason:      req.Reason,
		ActivatedBy: req.ActivatedBy,
	}
	if req.Enabled {
		now := time.Now().UTC()
		state.ActivatedAt = &now
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return state, fmt.Errorf("failed to encode kill switch: %w", err)
	}
	if err := k.flags.SetFlag(ctx, killSwitchFlag, raw); err != nil {
		return state, fmt.Errorf("failed to store kill switch: %w", err)
	}
	k.logger.Warn("kill switch changed", "enabled", state.Enabled, "reason", state.Reason, "by", state.ActivatedBy)
	return state, nil
}

// IsEnabled reports whether the kill switch is on. Read failures count as
// enabled.
func (k *KillSwitch) IsEnabled(ctx context.Context) bool {
	state, err := k.State(ctx)
	if err != nil {
		k.logger.Error("kill switch unreadable, treating as enabled", "error", err)
		return true
	}
	return state.Enabled
}
