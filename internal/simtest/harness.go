package simtest

import (
	"strings"
	"testing"

	"linecook.ai/internal/game"
	"linecook.ai/internal/planner/executor"
	"linecook.ai/internal/planner/plan"
	"linecook.ai/internal/planner/record"
	"linecook.ai/internal/sim"
)

// Harness drives a reference kitchen with a planner Bot, one Step per tick:
// Before runs, every agent plays, then the kitchen advances. Decisions land in
// Rec for assertions.
type Harness struct {
	T   *testing.T
	K   *sim.Kitchen
	Bot *executor.Bot
	Rec *record.Memory

	// Before, if set, runs at the start of every Step; tests use it to inject
	// world events at precise plan positions.
	Before func(h *Harness)
}

func New(t *testing.T, rows []string, kcfg sim.KitchenConfig, ecfg executor.Config) *Harness {
	t.Helper()
	l, err := game.ParseMap(strings.NewReader(strings.Join(rows, "\n")))
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	kcfg.Layout = l
	if kcfg.Catalog == nil {
		kcfg.Catalog = ecfg.Catalog
	}
	k, err := sim.NewKitchen(kcfg)
	if err != nil {
		t.Fatalf("NewKitchen: %v", err)
	}
	rec := &record.Memory{}
	if ecfg.Recorder == nil {
		ecfg.Recorder = rec
	} else {
		ecfg.Recorder = record.Multi{rec, ecfg.Recorder}
	}
	return &Harness{T: t, K: k, Bot: executor.NewBot(ecfg), Rec: rec}
}

func (h *Harness) Step() {
	if h.Before != nil {
		h.Before(h)
	}
	h.Bot.Tick(h.K)
	h.K.Advance()
}

func (h *Harness) StepFor(n int) {
	for i := 0; i < n; i++ {
		h.Step()
	}
}

// RunUntil steps until done reports true and returns the number of steps, or
// fails the test after limit steps.
func (h *Harness) RunUntil(limit int, done func() bool) int {
	h.T.Helper()
	for i := 1; i <= limit; i++ {
		h.Step()
		if done() {
			return i
		}
	}
	h.T.Fatalf("condition not met after %d ticks (tick=%d)", limit, h.K.Tick())
	return 0
}

func (h *Harness) Exec(agent int) *executor.Executor {
	h.T.Helper()
	for _, e := range h.Bot.Executors() {
		if e.Agent() == agent {
			return e
		}
	}
	h.T.Fatalf("no executor for agent %d", agent)
	return nil
}

// Plan is the agent's current plan, nil between plans and before the agent's
// first tick.
func (h *Harness) Plan(agent int) *plan.Plan {
	for _, e := range h.Bot.Executors() {
		if e.Agent() == agent {
			return e.PlannerState().Plan
		}
	}
	return nil
}

func (h *Harness) Holding(agent int) *game.Item {
	h.T.Helper()
	st, ok := h.K.Agent(agent)
	if !ok {
		h.T.Fatalf("agent %d missing", agent)
	}
	return st.Holding
}

func (h *Harness) Fulfilled(orderID int) bool {
	for _, id := range h.K.Stats().Fulfilled {
		if id == orderID {
			return true
		}
	}
	return false
}

// Selected lists the order ids chosen by agent, in order.
func (h *Harness) Selected(agent int) []int {
	var out []int
	for _, e := range h.Rec.EventsOf(record.EventSelect) {
		if e.Agent == agent {
			out = append(out, e.OrderID)
		}
	}
	return out
}
