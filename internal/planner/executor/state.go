package executor

import (
	"linecook.ai/internal/game"
	"linecook.ai/internal/planner/command"
	"linecook.ai/internal/planner/plan"
	"linecook.ai/internal/planner/selector"
)

type State string

const (
	StateIdle      State = "idle"
	StateSelecting State = "selecting"
	StateExecuting State = "executing"
	StateCompleted State = "completed"
	StateExpired   State = "expired"
	StateStuck     State = "stuck"
	StateCleaning  State = "cleaning"
)

// PlannerState is everything one agent's planner remembers between ticks.
// Plan, Attempt and Cleaning are dropped whenever an order ends; Reset clears
// the rest when the map or team changes.
type PlannerState struct {
	State     State
	Stations  *game.Stations
	Team      []int
	Processed map[int]bool

	Plan    *plan.Plan
	Attempt selector.Candidate
	Started int // tick the plan was compiled

	Cleaning *Cleaning
	// LastErr is the reason the previous plan ended, nil after a completion.
	LastErr error
}

func NewPlannerState() *PlannerState {
	return &PlannerState{State: StateIdle, Processed: map[int]bool{}}
}

func (s *PlannerState) Reset() {
	*s = *NewPlannerState()
}

// BoundOrder is the order this agent is pursuing, if any.
func (s *PlannerState) BoundOrder() (int, bool) {
	if s.Plan == nil {
		return 0, false
	}
	return s.Plan.OrderID, true
}

// Cleaning tracks the workspace cleanup run after a plan ends.
type Cleaning struct {
	Started int
	// Scope limits which stations may be cleared; nil means every station.
	Scope map[game.Pos]bool
	cmd   *command.Command
	skip  map[game.Pos]bool
}
