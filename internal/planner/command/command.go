package command

import (
	"fmt"

	"linecook.ai/internal/game"
	"linecook.ai/internal/planner/nav"
)

type Kind string

const (
	KindBuy        Kind = "BUY"
	KindPlace      Kind = "PLACE"
	KindChop       Kind = "CHOP"
	KindStartCook  Kind = "START_COOK"
	KindFinishCook Kind = "FINISH_COOK"
	KindAddToPlate Kind = "ADD_TO_PLATE"
	KindPickup     Kind = "PICKUP"
	KindSubmit     Kind = "SUBMIT"
	KindDispose    Kind = "DISPOSE"
)

// Kinds lists every command kind; the set is closed.
var Kinds = []Kind{
	KindBuy, KindPlace, KindChop, KindStartCook, KindFinishCook,
	KindAddToPlate, KindPickup, KindSubmit, KindDispose,
}

type Phase string

const (
	PhaseLocate   Phase = "locate"
	PhaseNavigate Phase = "navigate"
	PhaseInteract Phase = "interact"
	PhaseWait     Phase = "wait"
	PhaseDone     Phase = "done"
)

type fingerprint struct {
	phase   Phase
	stage   int
	pos     game.Pos
	holding game.ItemKind
}

// Command is one atomic, multi-tick, self-verifying interaction. Kind selects
// the behaviour; the remaining exported fields parameterize it.
//
// Step performs at most one move or one world-mutating action per call and
// re-reads state after every action: progress is only recorded when the
// expected effect is observed.
type Command struct {
	Kind    Kind
	Item    string    // BUY: shop item; START_COOK, FINISH_COOK, ADD_TO_PLATE: food name
	Station game.Tile // PLACE, PICKUP: station type
	At      *game.Pos // PICKUP: fixed cell, overrides Station search
	OrderID int       // SUBMIT: informational

	phase     Phase
	stage     int
	target    game.Pos
	hasTarget bool
	retries   int
	ticks     int
	idle      int
	last      fingerprint
	waiting   bool
	verified  bool
	baseline  int
	err       error
}

func Buy(item string) *Command            { return &Command{Kind: KindBuy, Item: item} }
func Place(station game.Tile) *Command    { return &Command{Kind: KindPlace, Station: station} }
func Chop() *Command                      { return &Command{Kind: KindChop} }
func StartCook(food string) *Command      { return &Command{Kind: KindStartCook, Item: food} }
func FinishCook(food string) *Command     { return &Command{Kind: KindFinishCook, Item: food} }
func AddToPlate(food string) *Command     { return &Command{Kind: KindAddToPlate, Item: food} }
func PickupPlate(from game.Tile) *Command { return &Command{Kind: KindPickup, Station: from} }
func Submit(orderID int) *Command         { return &Command{Kind: KindSubmit, OrderID: orderID} }
func Dispose() *Command                   { return &Command{Kind: KindDispose} }

// PickupAt picks up whatever occupies p.
func PickupAt(p game.Pos) *Command {
	return &Command{Kind: KindPickup, At: &p}
}

func (c *Command) String() string {
	switch c.Kind {
	case KindBuy, KindStartCook, KindFinishCook, KindAddToPlate:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Item)
	case KindPlace:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Station)
	case KindPickup:
		if c.At != nil {
			return fmt.Sprintf("%s(%v)", c.Kind, *c.At)
		}
		return fmt.Sprintf("%s(%s)", c.Kind, c.Station)
	case KindSubmit:
		return fmt.Sprintf("%s(order=%d)", c.Kind, c.OrderID)
	}
	return string(c.Kind)
}

func (c *Command) Phase() Phase {
	if c.phase == "" {
		return PhaseLocate
	}
	return c.phase
}

func (c *Command) Ticks() int   { return c.ticks }
func (c *Command) Retries() int { return c.retries }

// Err is the fatal failure recorded by the command, if any.
func (c *Command) Err() error { return c.err }

// Stuck reports a fatal failure, a tick ceiling overrun, or an unchanged
// fingerprint for longer than the idle budget. It returns the reason.
func (c *Command) Stuck(env Env) (bool, error) {
	if c.err != nil {
		return true, c.err
	}
	if limit := c.ceiling(env); c.ticks > limit {
		return true, fmt.Errorf("%w: %s ran %d ticks (ceiling %d)", ErrStuck, c, c.ticks, limit)
	}
	if c.idle > env.Tuning.StuckTicks {
		return true, fmt.Errorf("%w: %s made no progress for %d ticks in %s", ErrStuck, c, c.idle, c.Phase())
	}
	return false, nil
}

func (c *Command) ceiling(env Env) int {
	cl := env.Tuning.Ceilings
	switch c.Kind {
	case KindBuy:
		return cl.Buy
	case KindPlace:
		return cl.Place
	case KindChop:
		return cl.Chop
	case KindStartCook:
		return cl.StartCook
	case KindFinishCook:
		return cl.FinishCook
	case KindPickup:
		return cl.Pickup
	case KindAddToPlate:
		return cl.AddToPlate
	case KindSubmit:
		return cl.Submit
	case KindDispose:
		return cl.Dispose
	}
	return cl.Default
}

// Step advances the command by at most one action.
func (c *Command) Step(env Env) {
	if c.err != nil || c.phase == PhaseDone {
		return
	}
	st, ok := env.self()
	if !ok {
		return
	}
	c.ticks++
	c.track(st)

	switch c.Kind {
	case KindBuy:
		c.stepBuy(env, st)
	case KindPlace:
		c.stepPlace(env, st)
	case KindChop:
		c.stepChop(env, st)
	case KindStartCook:
		c.stepStartCook(env, st)
	case KindFinishCook:
		c.stepFinishCook(env, st)
	case KindAddToPlate:
		c.stepAddToPlate(env, st)
	case KindPickup:
		c.stepPickup(env, st)
	case KindSubmit:
		c.stepSubmit(env, st)
	case KindDispose:
		c.stepDispose(env, st)
	default:
		c.fail(fmt.Errorf("unknown command kind %q", c.Kind))
	}
}

// IsComplete is decided from observed agent/world state, gated on the command
// having verified its own interaction.
func (c *Command) IsComplete(env Env) bool {
	if !c.verified || c.err != nil {
		return false
	}
	st, ok := env.self()
	if !ok {
		return false
	}
	h := st.Holding
	switch c.Kind {
	case KindBuy:
		return holdsBought(h, c.Item)
	case KindPlace, KindStartCook, KindSubmit:
		return h == nil
	case KindChop:
		return h.IsFood() && h.Food.Chopped
	case KindFinishCook:
		return h.FoodNamed(c.Item) && h.Food.CookStage == game.StageCooked
	case KindAddToPlate:
		if c.stage == 1 {
			return c.platedAtTarget(env)
		}
		return h.IsPlate() && len(h.Contents) > c.baseline
	case KindPickup:
		if c.At != nil {
			return h != nil
		}
		return h.IsPlate()
	case KindDispose:
		return disposed(h)
	}
	return false
}

// track updates the stuck fingerprint. Waiting on an in-world timer (cooking)
// does not count as idling; the tick ceiling still applies.
func (c *Command) track(st game.AgentState) {
	fp := fingerprint{phase: c.Phase(), stage: c.stage, pos: st.Pos, holding: game.KindOf(st.Holding)}
	if fp == c.last && !c.waiting {
		c.idle++
	} else {
		c.idle = 0
	}
	c.last = fp
	c.waiting = false
}

func (c *Command) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Command) done() {
	c.verified = true
	c.phase = PhaseDone
}

// reject records a failed attempt while keeping the current target. Past the
// retry budget it escalates to ErrStuck.
func (c *Command) reject(env Env, cause error, what string) {
	c.retries++
	if c.retries > env.Tuning.MaxRetries {
		c.fail(fmt.Errorf("%w: %s: %s after %d retries: %w", ErrStuck, c, what, c.retries-1, cause))
	}
}

// retry is reject plus dropping the target, so the next tick locates afresh.
func (c *Command) retry(env Env, cause error, what string) {
	c.hasTarget = false
	c.phase = PhaseLocate
	c.reject(env, cause, what)
}

func (c *Command) setTarget(p game.Pos) {
	c.target = p
	c.hasTarget = true
	c.phase = PhaseNavigate
}

// approach moves one step toward the target and reports whether the agent is
// already adjacent to it.
func (c *Command) approach(env Env, st game.AgentState) bool {
	step := nav.NextStep(env.World, st.Pos, c.target, nav.Occupied(env.World, env.Agent))
	switch step.Outcome {
	case nav.Arrived:
		c.phase = PhaseInteract
		return true
	case nav.Move:
		env.World.Move(env.Agent, step.DX, step.DY)
		c.phase = PhaseNavigate
	case nav.Unreachable:
		c.retry(env, ErrUnreachable, "no path to "+c.target.String())
	}
	return false
}

// locate picks the closest station of type t accepted by keep, failing when the
// map has no such station at all and retrying when all of them are unsuitable.
func (c *Command) locate(env Env, st game.AgentState, t game.Tile, keep func(game.Pos) bool) bool {
	if env.Stations.Count(t) == 0 {
		c.fail(fmt.Errorf("%w: %s needs a %s", ErrMissingStation, c, t))
		return false
	}
	p, ok := env.Stations.Closest(t, st.Pos, keep)
	if !ok {
		c.retry(env, ErrActionRejected, "no usable "+string(t))
		return false
	}
	c.setTarget(p)
	return true
}

func holdsBought(h *game.Item, item string) bool {
	switch item {
	case game.ItemPlate:
		return h.IsPlate()
	case game.ItemPan:
		return h.IsPan()
	}
	return h.FoodNamed(item)
}
