package sim

import (
	"sort"

	"linecook.ai/internal/game"
)

// begin returns the agent if it may perform a world-mutating action on at this
// tick, or nil when the action must be refused.
func (k *Kitchen) begin(id int, at game.Pos) *agent {
	a := k.agent(id)
	if a == nil || a.acted || !game.InBounds(k.layout, at) || !a.pos.Adjacent(at) {
		return nil
	}
	if k.refuse > 0 {
		k.refuse--
		return nil
	}
	return a
}

func (k *Kitchen) Move(id, dx, dy int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	a := k.agent(id)
	if a == nil || a.moved || (dx == 0 && dy == 0) || dx < -1 || dx > 1 || dy < -1 || dy > 1 {
		return false
	}
	to := a.pos.Add(dx, dy)
	if !k.layout.Walkable(to) || k.occupied(to) {
		return false
	}
	a.pos = to
	a.moved = true
	return true
}

func (k *Kitchen) Buy(id int, item string, at game.Pos) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.layout.TileAt(at) != game.TileShop {
		return false
	}
	cost, ok := k.cat.BuyCost(item)
	if !ok {
		return false
	}
	a := k.begin(id, at)
	if a == nil || a.holding != nil || k.money < cost {
		return false
	}
	switch item {
	case game.ItemPlate:
		a.holding = game.NewPlate()
	case game.ItemPan:
		a.holding = game.NewPan()
	default:
		a.holding = game.NewFood(item)
	}
	k.money -= cost
	k.stats.Spent += cost
	a.acted = true
	return true
}

func (k *Kitchen) Place(id int, at game.Pos) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	a := k.begin(id, at)
	if a == nil || a.holding == nil {
		return false
	}
	top := k.top(at)
	switch k.layout.TileAt(at) {
	case game.TileCounter:
		if top != nil {
			return false
		}
	case game.TileBox:
		if top != nil && !top.SameStack(a.holding) {
			return false
		}
	case game.TileCooker:
		switch {
		case top == nil && a.holding.IsPan():
		case top.IsPan() && top.Food == nil && a.holding.IsFood() && k.cat.NeedsCook(a.holding.Food.Name):
			f := *a.holding.Food
			top.Food = &f
			k.cook[at] = f.CookStage * k.cfg.CookTicks
			a.holding = nil
			a.acted = true
			return true
		default:
			return false
		}
	default:
		return false
	}
	k.push(at, a.holding)
	if pan := a.holding; pan.IsPan() && pan.Food != nil {
		k.cook[at] = pan.Food.CookStage * k.cfg.CookTicks
	}
	a.holding = nil
	a.acted = true
	return true
}

func (k *Kitchen) Pickup(id int, at game.Pos) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	a := k.begin(id, at)
	if a == nil || a.holding != nil || k.top(at) == nil {
		return false
	}
	a.holding = k.pop(at)
	delete(k.cook, at)
	a.acted = true
	return true
}

func (k *Kitchen) Chop(id int, at game.Pos) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.layout.TileAt(at) != game.TileCounter {
		return false
	}
	a := k.begin(id, at)
	if a == nil || a.holding != nil {
		return false
	}
	it := k.top(at)
	if !it.IsFood() || it.Food.Chopped || !k.cat.NeedsChop(it.Food.Name) {
		return false
	}
	it.Food.Chopped = true
	a.acted = true
	return true
}

func (k *Kitchen) TakeFromPan(id int, at game.Pos) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.layout.TileAt(at) != game.TileCooker {
		return false
	}
	a := k.begin(id, at)
	if a == nil || a.holding != nil {
		return false
	}
	pan := k.top(at)
	if !pan.IsPan() || pan.Food == nil {
		return false
	}
	f := *pan.Food
	a.holding = &game.Item{Kind: game.KindFood, Food: &f}
	pan.Food = nil
	delete(k.cook, at)
	a.acted = true
	return true
}

// AddFoodToPlate moves food between the held item and the station at: a held
// plate takes loose food from the station, or held food goes onto a plate
// sitting on the station.
func (k *Kitchen) AddFoodToPlate(id int, at game.Pos) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	a := k.begin(id, at)
	if a == nil || a.holding == nil {
		return false
	}
	top := k.top(at)
	switch {
	case a.holding.IsPlate() && !a.holding.Dirty && top.IsFood():
		f := *k.pop(at).Food
		a.holding.Contents = append(a.holding.Contents, f)
	case a.holding.IsPlate() && !a.holding.Dirty && top.IsPan() && top.Food != nil && k.layout.TileAt(at) == game.TileCooker:
		a.holding.Contents = append(a.holding.Contents, *top.Food)
		top.Food = nil
		delete(k.cook, at)
	case a.holding.IsFood() && top.IsPlate() && !top.Dirty:
		top.Contents = append(top.Contents, *a.holding.Food)
		a.holding = nil
	default:
		return false
	}
	a.acted = true
	return true
}

func (k *Kitchen) Submit(id int, at game.Pos) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.layout.TileAt(at) != game.TileSubmit {
		return false
	}
	a := k.begin(id, at)
	if a == nil || !a.holding.IsPlate() || a.holding.Dirty {
		return false
	}
	o := k.matchOrder(a.holding.Contents)
	if o == nil {
		return false
	}
	o.Active = false
	k.money += o.Reward
	k.stats.Rewards += o.Reward
	k.stats.Fulfilled = append(k.stats.Fulfilled, o.ID)
	a.holding = nil
	a.acted = true
	return true
}

// matchOrder finds the oldest active order whose required multiset equals the
// plate contents, every item processed exactly as the catalog asks.
func (k *Kitchen) matchOrder(contents []game.Food) *game.Order {
	names := make([]string, 0, len(contents))
	for _, f := range contents {
		if !k.cat.Ready(f) {
			return nil
		}
		names = append(names, f.Name)
	}
	sort.Strings(names)
	for _, o := range k.orders {
		if !o.Active || len(o.Required) != len(names) {
			continue
		}
		req := append([]string(nil), o.Required...)
		sort.Strings(req)
		same := true
		for i := range req {
			if req[i] != names[i] {
				same = false
				break
			}
		}
		if same {
			return o
		}
	}
	return nil
}

// Trash destroys held food and pans, and empties plates. A clean empty plate
// cannot be trashed.
func (k *Kitchen) Trash(id int, at game.Pos) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.layout.TileAt(at) != game.TileTrash {
		return false
	}
	a := k.begin(id, at)
	if a == nil || a.holding == nil || a.holding.CleanEmptyPlate() {
		return false
	}
	switch {
	case a.holding.IsPlate():
		a.holding = game.NewPlate()
	case a.holding.IsPan() && a.holding.Food != nil:
		a.holding.Food = nil
	default:
		a.holding = nil
	}
	a.acted = true
	return true
}
