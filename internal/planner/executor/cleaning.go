package executor

import (
	"fmt"

	"linecook.ai/internal/game"
	"linecook.ai/internal/planner/command"
	"linecook.ai/internal/planner/record"
	"linecook.ai/internal/planner/selector"
)

// beginCleaning drops the finished plan. With teammates around, only the cells
// the plan itself used may be cleared, and none without a plan; alone, every
// station is fair game.
func (e *Executor) beginCleaning(w game.World) {
	cl := &Cleaning{Started: w.Tick(), skip: map[game.Pos]bool{}}
	if len(e.ps.Team) > 1 {
		cl.Scope = map[game.Pos]bool{}
	}
	if p := e.ps.Plan; p != nil && cl.Scope != nil {
		m := p.Memo
		if m.HasPlate {
			cl.Scope[m.Plate] = true
		}
		if m.HasFood {
			cl.Scope[m.Food] = true
		}
		if m.HasCooker {
			cl.Scope[m.Cooker] = true
		}
	}
	e.ps.Plan = nil
	e.ps.Attempt = selector.Candidate{}
	e.ps.Cleaning = cl
	e.ps.State = StateCleaning
}

// clean runs one tick of the cleanup: finish the current cleanup command or
// start the next one, until nothing is left or the tick cap is hit.
func (e *Executor) clean(w game.World) {
	cl := e.ps.Cleaning
	if cl == nil {
		e.ps.State = StateIdle
		return
	}
	now := w.Tick()
	if now-cl.Started >= e.cfg.Tuning.CleaningMaxTicks {
		e.endCleaning(now, fmt.Sprintf("gave up after %d ticks", now-cl.Started))
		return
	}
	env := e.env(w, nil)
	if cl.cmd != nil {
		stuck, err := cl.cmd.Stuck(env)
		if !stuck {
			cl.cmd.Step(env)
			if cl.cmd.IsComplete(env) {
				cl.cmd = nil
			}
			return
		}
		e.cfg.Logger.Printf("agent=%d tick=%d cleanup %s dropped: %v", e.agent, now, cl.cmd, err)
		if cl.cmd.At != nil {
			cl.skip[*cl.cmd.At] = true
		}
		cl.cmd = nil
	}

	next := e.nextCleanup(w, cl)
	if next == nil {
		e.endCleaning(now, "workspace clear")
		return
	}
	cl.cmd = next
	next.Step(env)
	if next.IsComplete(env) {
		cl.cmd = nil
	}
}

func (e *Executor) endCleaning(now int, detail string) {
	e.ps.Cleaning = nil
	e.ps.State = StateIdle
	e.event(now, record.EventClean, 0, "", string(StateIdle), "", detail)
}

// nextCleanup picks what to do about the held item first, then about items
// left on stations: loose food, then used plates, then food in pans.
func (e *Executor) nextCleanup(w game.World, cl *Cleaning) *command.Command {
	st, ok := w.Agent(e.agent)
	if !ok {
		return nil
	}
	stations := e.ps.Stations
	h := st.Holding
	switch {
	case h == nil:
	case h.CleanEmptyPlate():
		if _, ok := stations.Closest(game.TileCounter, st.Pos, game.Empty(w)); ok {
			return command.Place(game.TileCounter)
		}
		boxOK := func(p game.Pos) bool {
			top := w.ItemAt(p)
			return top == nil || top.SameStack(h)
		}
		if _, ok := stations.Closest(game.TileBox, st.Pos, boxOK); ok {
			return command.Place(game.TileBox)
		}
		return nil
	case h.IsPan() && h.Food == nil:
		if _, ok := stations.Closest(game.TileCooker, st.Pos, game.Empty(w)); ok {
			return command.Place(game.TileCooker)
		}
		panOK := func(p game.Pos) bool {
			top := w.ItemAt(p)
			return top == nil || top.SameStack(h)
		}
		if _, ok := stations.Closest(game.TileBox, st.Pos, panOK); ok {
			return command.Place(game.TileBox)
		}
		if _, ok := stations.Closest(game.TileCounter, st.Pos, game.Empty(w)); ok {
			return command.Place(game.TileCounter)
		}
		return nil
	default:
		return command.Dispose()
	}

	usable := func(pred func(*game.Item) bool) func(game.Pos) bool {
		return func(p game.Pos) bool {
			if cl.skip[p] || (cl.Scope != nil && !cl.Scope[p]) {
				return false
			}
			it := w.ItemAt(p)
			return it != nil && pred(it)
		}
	}
	looseFood := usable((*game.Item).IsFood)
	usedPlate := usable(func(it *game.Item) bool { return it.IsPlate() && !it.CleanEmptyPlate() })
	panFood := usable(func(it *game.Item) bool {
		_, ok := it.PanFood()
		return ok
	})

	for _, q := range []struct {
		tile game.Tile
		keep func(game.Pos) bool
	}{
		{game.TileCounter, looseFood},
		{game.TileBox, looseFood},
		{game.TileCounter, usedPlate},
		{game.TileBox, usedPlate},
		{game.TileCooker, panFood},
	} {
		if p, ok := stations.Closest(q.tile, st.Pos, q.keep); ok {
			return command.PickupAt(p)
		}
	}
	return nil
}
