package command

import (
	"fmt"

	"linecook.ai/internal/game"
)

func panWith(w game.World, food string) func(game.Pos) bool {
	return func(p game.Pos) bool {
		f, ok := w.ItemAt(p).PanFood()
		return ok && f.Name == food
	}
}

func barePan(w game.World) func(game.Pos) bool {
	return func(p game.Pos) bool {
		it := w.ItemAt(p)
		_, cooking := it.PanFood()
		return it.IsPan() && !cooking
	}
}

func (c *Command) stepStartCook(env Env, st game.AgentState) {
	if !st.Holding.FoodNamed(c.Item) {
		c.fail(fmt.Errorf("%w: %s while holding %s", ErrActionRejected, c, st.Holding))
		return
	}
	keep := barePan(env.World)
	if c.hasTarget && !keep(c.target) {
		c.retry(env, ErrActionRejected, "pan at "+c.target.String()+" busy")
		return
	}
	if !c.hasTarget && !c.locate(env, st, game.TileCooker, keep) {
		return
	}
	if !c.approach(env, st) {
		return
	}

	env.World.Place(env.Agent, c.target)
	after, ok := env.self()
	if ok && after.Holding == nil && panWith(env.World, c.Item)(c.target) {
		if env.Memo != nil {
			env.Memo.Cooker, env.Memo.HasCooker = c.target, true
		}
		c.done()
		return
	}
	c.retry(env, ErrActionRejected, "start cooking at "+c.target.String())
}

// stepFinishCook waits beside the pan and takes the food out at exactly the
// cooked stage. A burnt or missing ingredient is lost: no retry.
func (c *Command) stepFinishCook(env Env, st game.AgentState) {
	if st.Holding != nil {
		c.fail(fmt.Errorf("%w: %s with full hands (%s)", ErrActionRejected, c, st.Holding))
		return
	}
	w := env.World
	if !c.hasTarget {
		keep := panWith(w, c.Item)
		if m := env.Memo; m != nil && m.HasCooker && keep(m.Cooker) {
			c.setTarget(m.Cooker)
		} else if p, ok := env.Stations.Closest(game.TileCooker, st.Pos, keep); ok {
			c.setTarget(p)
		} else {
			c.fail(fmt.Errorf("%w: no pan is cooking %s", ErrResourceBurnt, c.Item))
			return
		}
	}

	food, ok := w.ItemAt(c.target).PanFood()
	if !ok || food.Name != c.Item {
		c.fail(fmt.Errorf("%w: %s vanished from %v", ErrResourceBurnt, c.Item, c.target))
		return
	}
	if food.Burnt() {
		c.fail(fmt.Errorf("%w: %s reached stage %d at %v", ErrResourceBurnt, c.Item, food.CookStage, c.target))
		return
	}
	if !c.approach(env, st) {
		return
	}
	if food.CookStage < game.StageCooked {
		c.phase = PhaseWait
		c.waiting = true
		return
	}

	w.TakeFromPan(env.Agent, c.target)
	after, ok := env.self()
	if ok && after.Holding.FoodNamed(c.Item) && after.Holding.Food.CookStage == game.StageCooked {
		c.done()
		return
	}
	c.reject(env, ErrActionRejected, "take "+c.Item+" from pan")
}
