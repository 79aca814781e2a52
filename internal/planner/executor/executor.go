package executor

import (
	"fmt"
	"io"
	"log"

	"linecook.ai/internal/game"
	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/planner/command"
	"linecook.ai/internal/planner/plan"
	"linecook.ai/internal/planner/record"
	"linecook.ai/internal/planner/selector"
	"linecook.ai/internal/planner/tuning"
)

type Config struct {
	Catalog  *catalog.Catalog
	Tuning   tuning.Tuning
	Logger   *log.Logger     // nil discards
	Recorder record.Recorder // nil discards
	RunID    string
}

func (c Config) withDefaults() Config {
	if c.Catalog == nil {
		c.Catalog = catalog.Defaults()
	}
	if c.Tuning.MatchTicks == 0 {
		c.Tuning = tuning.Defaults()
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	if c.Recorder == nil {
		c.Recorder = record.Discard{}
	}
	return c
}

// Executor drives one agent: it selects an order, compiles a plan, steps one
// command per tick, and cleans up after every plan ends. It is the only code
// that creates, advances, or drops plans.
type Executor struct {
	agent int
	cfg   Config
	ps    *PlannerState

	// exclude reports orders bound to teammates and claimed the cells their
	// plans have staged items on; both set by Bot.
	exclude func() map[int]bool
	claimed func() map[game.Pos]bool
}

func New(agent int, cfg Config) *Executor {
	return &Executor{agent: agent, cfg: cfg.withDefaults(), ps: NewPlannerState()}
}

func (e *Executor) Agent() int                  { return e.agent }
func (e *Executor) State() State                { return e.ps.State }
func (e *Executor) PlannerState() *PlannerState { return e.ps }

func (e *Executor) env(w game.World, memo *command.Memo) command.Env {
	return command.Env{
		World:    w,
		Agent:    e.agent,
		Stations: e.ps.Stations,
		Catalog:  e.cfg.Catalog,
		Tuning:   e.cfg.Tuning,
		Memo:     memo,
	}
}

// Tick runs the planner for one simulation tick and issues at most one
// action. Nothing here fails outward: every failure ends in Cleaning.
func (e *Executor) Tick(w game.World) {
	if _, ok := w.Agent(e.agent); !ok {
		return
	}
	e.syncContext(w)

	switch e.ps.State {
	case StateIdle, StateSelecting:
		// A held plate is reused by the next plan; anything else has to go
		// before a new order is started.
		if st, _ := w.Agent(e.agent); st.Holding != nil && !st.Holding.CleanEmptyPlate() {
			e.beginCleaning(w)
			e.clean(w)
			return
		}
		if !e.selectOrder(w) {
			return
		}
		e.execute(w)
	case StateExecuting:
		e.execute(w)
	case StateCompleted, StateExpired, StateStuck:
		e.beginCleaning(w)
		e.clean(w)
	case StateCleaning:
		e.clean(w)
	}
}

// syncContext rebuilds the station cache and forgets everything else when the
// map or the team changes.
func (e *Executor) syncContext(w game.World) {
	team := w.TeamAgents()
	if e.ps.Stations.Matches(w) && sameInts(team, e.ps.Team) {
		return
	}
	if e.ps.Stations != nil {
		e.cfg.Logger.Printf("agent=%d context changed; planner state reset", e.agent)
	}
	e.ps.Reset()
	e.ps.Stations = game.ScanStations(w)
	e.ps.Team = append([]int(nil), team...)
}

func (e *Executor) selectOrder(w game.World) bool {
	e.ps.State = StateSelecting
	var exclude map[int]bool
	if e.exclude != nil {
		exclude = e.exclude()
	}
	d := selector.Select(selector.Input{
		World:    w,
		Agent:    e.agent,
		Stations: e.ps.Stations,
		Catalog:  e.cfg.Catalog,
		Tuning:   e.cfg.Tuning,
		Exclude:  exclude,
	}, e.ps.Processed)

	now := w.Tick()
	for _, r := range d.Rejected {
		e.event(now, record.EventReject, r.OrderID, "", "", "", r.Reason)
	}
	if d.Chosen == nil {
		e.ps.State = StateIdle
		return false
	}

	c := *d.Chosen
	env := e.env(w, nil)
	if e.claimed != nil {
		env.Claimed = e.claimed()
	}
	p := plan.Compile(c.Order, env)
	e.ps.Plan = p
	e.ps.Attempt = c
	e.ps.Started = now
	e.ps.LastErr = nil
	e.ps.State = StateExecuting
	e.cfg.Logger.Printf("agent=%d tick=%d select order=%d est=%d cost=%d reward=%d strategy=%s staging=%s",
		e.agent, now, c.Order.ID, c.Estimated, c.Cost, c.Order.Reward, p.Strategy, p.Staging)
	e.event(now, record.EventSelect, c.Order.ID, "", "", "", p.String())
	return true
}

func (e *Executor) execute(w game.World) {
	p := e.ps.Plan
	now := w.Tick()
	if p == nil {
		e.ps.State = StateIdle
		return
	}
	if _, ok := game.ActiveOrder(w, p.OrderID); !ok {
		e.finish(w, StateExpired, fmt.Errorf("%w: order %d left the active set with %d commands to go",
			command.ErrOrderExpired, p.OrderID, p.Remaining()))
		e.beginCleaning(w)
		e.clean(w)
		return
	}

	c := p.Current()
	env := e.env(w, &p.Memo)
	if stuck, err := c.Stuck(env); stuck {
		e.finish(w, StateStuck, err)
		e.beginCleaning(w)
		e.clean(w)
		return
	}
	c.Step(env)
	if !c.IsComplete(env) {
		return
	}
	e.event(now, record.EventCommand, p.OrderID, c.String(), "", "", fmt.Sprintf("ticks=%d retries=%d", c.Ticks(), c.Retries()))
	if !p.Advance() {
		e.finish(w, StateCompleted, nil)
	}
}

// finish ends the current plan and records the attempt. The plan itself is
// kept until Cleaning starts, which scopes the cleanup by its memo.
func (e *Executor) finish(w game.World, st State, err error) {
	p := e.ps.Plan
	now := w.Tick()
	a := record.Attempt{
		RunID:       e.cfg.RunID,
		OrderID:     p.OrderID,
		Agent:       e.agent,
		StartedTick: e.ps.Started,
		EndedTick:   now,
		Estimated:   e.ps.Attempt.Estimated,
		Cost:        e.ps.Attempt.Cost,
		Code:        command.Code(err),
	}
	cmd := ""
	if c := p.Current(); c != nil {
		cmd = c.String()
	}
	switch st {
	case StateCompleted:
		a.Outcome = record.OutcomeCompleted
		a.Reward = e.ps.Attempt.Order.Reward
		e.cfg.Logger.Printf("agent=%d tick=%d complete order=%d ticks=%d est=%d", e.agent, now, p.OrderID, a.Ticks(), a.Estimated)
		e.event(now, record.EventComplete, p.OrderID, "", string(st), "", "")
	case StateExpired:
		a.Outcome = record.OutcomeExpired
		e.cfg.Logger.Printf("agent=%d tick=%d abort order=%d: %v", e.agent, now, p.OrderID, err)
		e.event(now, record.EventAbort, p.OrderID, cmd, string(st), a.Code, err.Error())
	default:
		a.Outcome = record.OutcomeStuck
		e.cfg.Logger.Printf("agent=%d tick=%d abort order=%d at %s: %v", e.agent, now, p.OrderID, cmd, err)
		e.event(now, record.EventAbort, p.OrderID, cmd, string(st), a.Code, err.Error())
	}
	e.cfg.Recorder.RecordAttempt(a)

	e.ps.Processed[p.OrderID] = true
	e.ps.LastErr = err
	e.ps.State = st
}

func (e *Executor) event(tick int, kind string, orderID int, cmd, state, code, detail string) {
	e.cfg.Recorder.RecordEvent(record.Event{
		RunID:   e.cfg.RunID,
		Tick:    tick,
		Agent:   e.agent,
		Kind:    kind,
		OrderID: orderID,
		Command: cmd,
		State:   state,
		Code:    code,
		Detail:  detail,
	})
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
