package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

// recordEvent persists an event and pushes it to live subscribers.
func (s *Service) recordEvent(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   runID,
		Ts:      time.Now().UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	if s.events != nil {
		if err := s.events.BroadcastJSON(runID, event); err != nil {
			s.logger.Warn("failed to publish event", "run_id", runID, "type", eventType, "error", err)
		}
	}
	return nil
}

// emit records an event and logs instead of failing the caller.
func (s *Service) emit(ctx context.Context, runID string, eventType domain.EventType, payload interface{}) {
	if err := s.recordEvent(ctx, runID, eventType, payload); err != nil {
		s.logger.Error("failed to record event", "run_id", runID, "type", eventType, "error", err)
	}
}

// GetRunEvents returns the stored events of a run.
func (s *Service) GetRunEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.Event, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	events, err := s.store.GetEvents(ctx, runID, afterTs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}
