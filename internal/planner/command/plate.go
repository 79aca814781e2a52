package command

import (
	"fmt"

	"linecook.ai/internal/game"
)

// stepAddToPlate adds one staged food to the held plate. The food is looked for
// where this plan staged it first, then on counters, then in boxes. Holding the
// food instead, it goes onto the staged plate.
func (c *Command) stepAddToPlate(env Env, st game.AgentState) {
	h := st.Holding
	if c.stage == 1 || h.FoodNamed(c.Item) {
		c.stepPlateHeldFood(env, st)
		return
	}
	if !h.IsPlate() {
		c.fail(fmt.Errorf("%w: %s while holding %s", ErrActionRejected, c, h))
		return
	}
	w := env.World
	keep := func(p game.Pos) bool { return w.ItemAt(p).FoodNamed(c.Item) }
	if c.hasTarget && !keep(c.target) {
		c.retry(env, ErrActionRejected, c.Item+" gone from "+c.target.String())
		return
	}
	if !c.hasTarget {
		if m := env.Memo; m != nil && m.HasFood && m.FoodName == c.Item && keep(m.Food) {
			c.setTarget(m.Food)
		} else if p, ok := env.Stations.Closest(game.TileCounter, st.Pos, keep); ok {
			c.setTarget(p)
		} else if p, ok := env.Stations.Closest(game.TileBox, st.Pos, keep); ok {
			c.setTarget(p)
		} else {
			c.retry(env, ErrActionRejected, "no staged "+c.Item)
			return
		}
	}
	if !c.approach(env, st) {
		return
	}

	c.baseline = len(h.Contents)
	w.AddFoodToPlate(env.Agent, c.target)
	if after, ok := env.self(); ok && after.Holding.IsPlate() && len(after.Holding.Contents) > c.baseline {
		if m := env.Memo; m != nil && m.HasFood && m.Food == c.target && w.ItemAt(c.target) == nil {
			m.HasFood = false
		}
		c.done()
		return
	}
	c.retry(env, ErrActionRejected, "add "+c.Item+" to plate")
}

func (c *Command) stepPlateHeldFood(env Env, st game.AgentState) {
	c.stage = 1
	if !st.Holding.FoodNamed(c.Item) {
		c.fail(fmt.Errorf("%w: %s while holding %s", ErrActionRejected, c, st.Holding))
		return
	}
	w := env.World
	keep := func(p game.Pos) bool {
		it := w.ItemAt(p)
		return it.IsPlate() && !it.Dirty
	}
	if c.hasTarget && !keep(c.target) {
		c.retry(env, ErrActionRejected, "plate gone from "+c.target.String())
		return
	}
	if !c.hasTarget {
		if m := env.Memo; m != nil && m.HasPlate && keep(m.Plate) {
			c.setTarget(m.Plate)
		} else if p, ok := env.Stations.Closest(game.TileCounter, st.Pos, keep); ok {
			c.setTarget(p)
		} else if p, ok := env.Stations.Closest(game.TileBox, st.Pos, keep); ok {
			c.setTarget(p)
		} else {
			c.retry(env, ErrActionRejected, "no staged plate")
			return
		}
	}
	if !c.approach(env, st) {
		return
	}

	c.baseline = len(w.ItemAt(c.target).Contents)
	w.AddFoodToPlate(env.Agent, c.target)
	if c.platedAtTarget(env) {
		c.done()
		return
	}
	c.retry(env, ErrActionRejected, "put "+c.Item+" on plate")
}

func (c *Command) platedAtTarget(env Env) bool {
	after, ok := env.self()
	if !ok || after.Holding != nil {
		return false
	}
	plate := env.World.ItemAt(c.target)
	return plate.IsPlate() && len(plate.Contents) > c.baseline
}

// stepPickup picks up the plate this plan staged (or the closest plate on a
// Station tile), or whatever sits on At when it is set.
func (c *Command) stepPickup(env Env, st game.AgentState) {
	if st.Holding != nil {
		c.fail(fmt.Errorf("%w: %s with full hands (%s)", ErrActionRejected, c, st.Holding))
		return
	}
	w := env.World
	if c.At != nil {
		if !c.hasTarget {
			c.setTarget(*c.At)
		}
		if w.ItemAt(c.target) == nil {
			c.fail(fmt.Errorf("%w: nothing to pick up at %v", ErrActionRejected, c.target))
			return
		}
	} else {
		keep := game.Holding(w, (*game.Item).IsPlate)
		if c.hasTarget && !keep(c.target) {
			c.retry(env, ErrActionRejected, "plate gone from "+c.target.String())
			return
		}
		if !c.hasTarget {
			if m := env.Memo; m != nil && m.HasPlate && keep(m.Plate) {
				c.setTarget(m.Plate)
			} else if !c.locate(env, st, c.Station, keep) {
				return
			}
		}
	}
	if !c.approach(env, st) {
		return
	}

	w.Pickup(env.Agent, c.target)
	after, ok := env.self()
	if ok && after.Holding != nil && (c.At != nil || after.Holding.IsPlate()) {
		c.done()
		return
	}
	c.reject(env, ErrActionRejected, "pick up at "+c.target.String())
}
