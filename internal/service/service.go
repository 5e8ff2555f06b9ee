// Package service implements the run controller and the operations built
// around it: approvals, macros, recordings and trust management.
package service

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/xiaot623/gogo/deskrunner/internal/config"
	"github.com/xiaot623/gogo/deskrunner/internal/risk"
	"github.com/xiaot623/gogo/deskrunner/internal/telemetry"
	"github.com/xiaot623/gogo/deskrunner/internal/trust"
)

const instrumentationName = "github.com/xiaot623/gogo/deskrunner/internal/service"

// Deps are the collaborators of a Service. Store, Assessor, Trust and
// Executor are required; the rest may be nil.
type Deps struct {
	Config     *config.Config
	Store      Store
	Assessor   *risk.Assessor
	Trust      trust.Store
	Executor   Executor
	OCR        OCR
	Recorder   Recorder
	Approvals  ApprovalGateway
	KillSwitch KillSwitch
	Events     EventPublisher
	Logger     *slog.Logger
}

type Service struct {
	cfg        *config.Config
	store      Store
	assessor   *risk.Assessor
	trust      trust.Store
	executor   Executor
	ocr        OCR
	recorder   Recorder
	approvals  ApprovalGateway
	killSwitch KillSwitch
	events     EventPublisher
	logger     *slog.Logger
	metrics    *runMetrics
	tracer     trace.Tracer

	mu     sync.Mutex
	active map[string]bool
	wg     sync.WaitGroup
}

func New(deps Deps) *Service {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	approvals := deps.Approvals
	if approvals == nil {
		approvals = NewLocalApprovalGateway(deps.Store)
	}
	return &Service{
		cfg:        cfg,
		store:      deps.Store,
		assessor:   deps.Assessor,
		trust:      deps.Trust,
		executor:   deps.Executor,
		ocr:        deps.OCR,
		recorder:   deps.Recorder,
		approvals:  approvals,
		killSwitch: deps.KillSwitch,
		events:     deps.Events,
		logger:     logger,
		metrics:    newRunMetrics(telemetry.Meter(instrumentationName), logger),
		tracer:     telemetry.Tracer(instrumentationName),
		active:     make(map[string]bool),
	}
}

// acquire claims the run loop of runID. Only one loop per run is ever in
// flight.
func (s *Service) acquire(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[runID] {
		return false
	}
	s.active[runID] = true
	return true
}

func (s *Service) release(runID string) {
	s.mu.Lock()
	delete(s.active, runID)
	s.mu.Unlock()
}

// Wait blocks until every background run loop has returned or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) killSwitchEnabled(ctx context.Context) bool {
	return s.killSwitch != nil && s.killSwitch.IsEnabled(ctx)
}
