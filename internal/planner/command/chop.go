package command

import (
	"fmt"

	"linecook.ai/internal/game"
)

// Chop stages: 0 put the held food on an empty counter, 1 chop it there,
// 2 pick it back up.
func (c *Command) stepChop(env Env, st game.AgentState) {
	switch c.stage {
	case 0:
		h := st.Holding
		if !h.IsFood() {
			c.fail(fmt.Errorf("%w: %s while holding %s", ErrActionRejected, c, h))
			return
		}
		if h.Food.Chopped {
			c.done()
			return
		}
		if c.hasTarget && env.World.ItemAt(c.target) != nil {
			c.retry(env, ErrActionRejected, c.target.String()+" taken")
			return
		}
		if !c.hasTarget && !c.locate(env, st, game.TileCounter, game.Empty(env.World)) {
			return
		}
		if !c.approach(env, st) {
			return
		}
		env.World.Place(env.Agent, c.target)
		if after, ok := env.self(); ok && after.Holding == nil && env.World.ItemAt(c.target).IsFood() {
			c.stage = 1
			return
		}
		c.retry(env, ErrActionRejected, "stage food on "+c.target.String())

	case 1:
		it := env.World.ItemAt(c.target)
		if !it.IsFood() {
			c.fail(fmt.Errorf("%w: food vanished from %v", ErrActionRejected, c.target))
			return
		}
		if it.Food.Chopped {
			c.stage = 2
			return
		}
		if !c.approach(env, st) {
			return
		}
		env.World.Chop(env.Agent, c.target)
		if after := env.World.ItemAt(c.target); after.IsFood() && after.Food.Chopped {
			c.stage = 2
			return
		}
		c.reject(env, ErrActionRejected, "chop at "+c.target.String())

	case 2:
		it := env.World.ItemAt(c.target)
		if !it.IsFood() || !it.Food.Chopped {
			c.fail(fmt.Errorf("%w: chopped food vanished from %v", ErrActionRejected, c.target))
			return
		}
		if st.Holding != nil {
			c.fail(fmt.Errorf("%w: %s cannot pick up, holding %s", ErrActionRejected, c, st.Holding))
			return
		}
		if !c.approach(env, st) {
			return
		}
		env.World.Pickup(env.Agent, c.target)
		if after, ok := env.self(); ok && after.Holding.IsFood() && after.Holding.Food.Chopped {
			c.done()
			return
		}
		c.reject(env, ErrActionRejected, "pick up chopped food")
	}
}
