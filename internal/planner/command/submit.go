package command

import (
	"fmt"

	"linecook.ai/internal/game"
)

func (c *Command) stepSubmit(env Env, st game.AgentState) {
	if !st.Holding.IsPlate() {
		c.fail(fmt.Errorf("%w: %s while holding %s", ErrActionRejected, c, st.Holding))
		return
	}
	if !c.hasTarget && !c.locate(env, st, game.TileSubmit, nil) {
		return
	}
	if !c.approach(env, st) {
		return
	}
	env.World.Submit(env.Agent, c.target)
	if after, ok := env.self(); ok && after.Holding == nil {
		c.done()
		return
	}
	c.reject(env, ErrActionRejected, "submit order")
}

// stepDispose trashes whatever is held. Clean empty plates cannot be destroyed
// and bare pans are worth keeping, so holding one of those (or nothing) already
// counts as disposed.
func (c *Command) stepDispose(env Env, st game.AgentState) {
	if disposed(st.Holding) {
		c.done()
		return
	}
	if !c.hasTarget && !c.locate(env, st, game.TileTrash, nil) {
		return
	}
	if !c.approach(env, st) {
		return
	}
	env.World.Trash(env.Agent, c.target)
	if after, ok := env.self(); ok && disposed(after.Holding) {
		c.done()
		return
	}
	c.reject(env, ErrActionRejected, "trash "+st.Holding.String())
}

func disposed(h *game.Item) bool {
	if h == nil || h.CleanEmptyPlate() {
		return true
	}
	_, cooking := h.PanFood()
	return h.IsPan() && !cooking
}
