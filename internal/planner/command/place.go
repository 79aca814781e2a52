package command

import (
	"fmt"

	"linecook.ai/internal/game"
)

func (c *Command) stepPlace(env Env, st game.AgentState) {
	if st.Holding == nil {
		c.fail(fmt.Errorf("%w: %s with empty hands", ErrActionRejected, c))
		return
	}
	keep := c.placeFilter(env, st.Holding)
	if c.hasTarget && !keep(c.target) {
		c.retry(env, ErrActionRejected, c.target.String()+" taken")
		return
	}
	if !c.hasTarget && !c.locate(env, st, c.Station, keep) {
		return
	}
	if !c.approach(env, st) {
		return
	}

	held := st.Holding.Clone()
	env.World.Place(env.Agent, c.target)
	if after, ok := env.self(); ok && after.Holding == nil && env.World.ItemAt(c.target) != nil {
		env.Memo.notePlaced(c.target, held)
		c.done()
		return
	}
	c.retry(env, ErrActionRejected, "place on "+c.target.String())
}

// placeFilter selects stations that can take held: boxes accept an identical
// stack, cookers accept a pan when bare, everything else must be empty.
func (c *Command) placeFilter(env Env, held *game.Item) func(game.Pos) bool {
	w := env.World
	switch c.Station {
	case game.TileBox:
		return func(p game.Pos) bool {
			top := w.ItemAt(p)
			return top == nil || top.SameStack(held)
		}
	case game.TileCooker:
		if held.IsPan() {
			return game.Empty(w)
		}
		return barePan(w)
	}
	return game.Empty(w)
}
