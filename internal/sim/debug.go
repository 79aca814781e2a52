package sim

import "linecook.ai/internal/game"

// Debug hooks for tests and scripted scenarios. They bypass the action rules.

// SetCookStage forces the stage of the food cooking at p.
func (k *Kitchen) SetCookStage(p game.Pos, stage int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	pan := k.top(p)
	if !pan.IsPan() || pan.Food == nil {
		return false
	}
	pan.Food.CookStage = stage
	k.cook[p] = stage * k.cfg.CookTicks
	return true
}

// ExpireOrder expires an active order now, charging its penalty.
func (k *Kitchen) ExpireOrder(id int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, o := range k.orders {
		if o.ID == id && o.Active {
			k.expire(o)
			return true
		}
	}
	return false
}

func (k *Kitchen) SetMoney(n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.money = n
}

// RefuseNext silently refuses the next n non-move actions.
func (k *Kitchen) RefuseNext(n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.refuse = n
}

// AddOrder releases an order immediately and returns its id.
func (k *Kitchen) AddOrder(required []string, reward, penalty, duration int) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.addOrder(required, reward, penalty, duration)
}

// PutItem places it on the station at p, stacking in boxes.
func (k *Kitchen) PutItem(p game.Pos, it *game.Item) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.push(p, it.Clone())
	if f, ok := it.PanFood(); ok && k.layout.TileAt(p) == game.TileCooker {
		k.cook[p] = f.CookStage * k.cfg.CookTicks
	}
}

// Teleport moves an agent to a free walkable cell.
func (k *Kitchen) Teleport(id int, p game.Pos) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	a := k.agent(id)
	if a == nil || !k.layout.Walkable(p) || (a.pos != p && k.occupied(p)) {
		return false
	}
	a.pos = p
	return true
}

// Give replaces what an agent holds.
func (k *Kitchen) Give(id int, it *game.Item) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	a := k.agent(id)
	if a == nil {
		return false
	}
	a.holding = it.Clone()
	return true
}
