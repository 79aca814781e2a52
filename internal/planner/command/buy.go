package command

import (
	"fmt"

	"linecook.ai/internal/game"
)

func (c *Command) stepBuy(env Env, st game.AgentState) {
	if st.Holding != nil {
		c.fail(fmt.Errorf("%w: %s with full hands (%s)", ErrActionRejected, c, st.Holding))
		return
	}
	cost, ok := env.Catalog.BuyCost(c.Item)
	if !ok {
		c.fail(fmt.Errorf("%s: unknown shop item %q", c, c.Item))
		return
	}
	if !c.hasTarget && !c.locate(env, st, game.TileShop, nil) {
		return
	}
	if !c.approach(env, st) {
		return
	}
	// Funds may still arrive from a teammate's submit; the idle budget bounds
	// the wait.
	if env.World.Money() < cost {
		return
	}

	env.World.Buy(env.Agent, c.Item, c.target)
	if after, ok := env.self(); ok && holdsBought(after.Holding, c.Item) {
		c.done()
		return
	}
	c.reject(env, ErrActionRejected, "buy "+c.Item)
}
