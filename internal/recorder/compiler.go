// Package recorder captures raw input recordings and compiles them into
// compact, bounded action lists.
package recorder

import (
	"math"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

const (
	DefaultMergeWindowMs = 450
	DefaultMaxWaitMs     = 30000
	DefaultMaxActions    = 140
)

// Options tunes Compile. MaxWaitMs <= 0 disables wait capping.
type Options struct {
	MergeWindowMs float64
	MaxWaitMs     float64
	MaxActions    int
}

// DefaultOptions returns the compiler defaults.
func DefaultOptions() Options {
	return Options{
		MergeWindowMs: DefaultMergeWindowMs,
		MaxWaitMs:     DefaultMaxWaitMs,
		MaxActions:    DefaultMaxActions,
	}
}

// WithOverrides applies the non-nil request options on top of o.
func (o Options) WithOverrides(req domain.CompileOptions) Options {
	if req.MergeWindowMs != nil {
		o.MergeWindowMs = *req.MergeWindowMs
	}
	if req.MaxWaitMs != nil {
		o.MaxWaitMs = *req.MaxWaitMs
	}
	if req.MaxActions != nil {
		o.MaxActions = *req.MaxActions
	}
	return o
}

// Result is the compiled action list.
type Result struct {
	Actions []domain.RawAction
	Stats   domain.CompileStats
}

// Compile turns a recorded event stream into actions. Consecutive char
// events closer than MergeWindowMs merge into one type action; every other
// event is preceded by a wait for its delay. Waits longer than MaxWaitMs
// are capped, non-positive waits are omitted. The output never holds more
// than MaxActions actions: a wait and the action it precedes are emitted
// together or not at all, and the first refused emission stops
// consumption and marks the result truncated.
func Compile(events []domain.RecordedEvent, opts Options) Result {
	c := &compiler{opts: opts, actions: []domain.RawAction{}}
	for _, ev := range events {
		delay := normalizeDelay(ev.DelayMs)
		if ev.Type == domain.RecordedEventChar {
			switch {
			case c.text == "":
				c.text = ev.Value
				c.textDelay = delay
			case delay <= opts.MergeWindowMs:
				c.text += ev.Value
			default:
				if !c.flush() {
					return c.result()
				}
				c.text = ev.Value
				c.textDelay = delay
			}
			continue
		}

		if !c.flush() {
			return c.result()
		}
		if !c.emit(delay, eventAction(ev)) {
			return c.result()
		}
	}
	c.flush()
	return c.result()
}

type compiler struct {
	opts      Options
	actions   []domain.RawAction
	stats     domain.CompileStats
	text      string
	textDelay float64
}

func (c *compiler) result() Result {
	return Result{Actions: c.actions, Stats: c.stats}
}

func (c *compiler) flush() bool {
	if c.text == "" {
		return true
	}
	ok := c.emit(c.textDelay, domain.RawAction{"type": string(domain.ActionTypeType), "text": c.text})
	c.text = ""
	c.textDelay = 0
	return ok
}

// emit appends an optional wait followed by action (which may be nil).
func (c *compiler) emit(delay float64, action domain.RawAction) bool {
	group := make([]domain.RawAction, 0, 2)
	capped := false
	if delay > 0 {
		ms := delay
		if c.opts.MaxWaitMs > 0 && ms > c.opts.MaxWaitMs {
			ms = c.opts.MaxWaitMs
			capped = true
		}
		group = append(group, domain.RawAction{"type": string(domain.ActionTypeWait), "ms": int(math.Round(ms))})
	}
	if action != nil {
		group = append(group, action)
	}
	if len(group) == 0 {
		return true
	}
	if len(c.actions)+len(group) > c.opts.MaxActions {
		c.stats.Truncated = true
		return false
	}
	c.actions = append(c.actions, group...)
	if capped {
		c.stats.WaitsCapped++
	}
	return true
}

func eventAction(ev domain.RecordedEvent) domain.RawAction {
	switch ev.Type {
	case domain.RecordedEventMouseClick:
		button := ev.Button
		if button == "" {
			button = "left"
		}
		count := ev.Count
		if count == 0 {
			count = 1
		}
		return domain.RawAction{"type": string(domain.ActionTypeMouseClick), "x": ev.X, "y": ev.Y, "button": button, "count": count}
	case domain.RecordedEventMouseMove:
		return domain.RawAction{"type": string(domain.ActionTypeMouseMove), "x": ev.X, "y": ev.Y}
	case domain.RecordedEventKey:
		return domain.RawAction{"type": string(domain.ActionTypeKey), "combo": ev.Combo}
	case domain.RecordedEventText:
		return domain.RawAction{"type": string(domain.ActionTypeType), "text": ev.Text}
	}
	return nil
}

func normalizeDelay(ms float64) float64 {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms <= 0 {
		return 0
	}
	return math.Round(ms)
}
