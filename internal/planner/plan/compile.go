package plan

import (
	"linecook.ai/internal/game"
	"linecook.ai/internal/planner/command"
)

// Compile expands an order into commands. The result depends only on the
// order, the station layout, whether any cooker already carries a pan, and
// where spare clean plates are.
//
// Per item the plan buys, chops and cooks as the catalog asks, stages the food
// on a counter, picks the plate up, adds the food and puts the plate back;
// finally it picks the plate up and submits it. With exactly one cooking item
// and at most one other item the cook is started first and finished last.
//
// On maps with a single counter and no box the plate occupies the only
// counter, so held food is put straight onto it instead.
//
// Cells listed in env.Claimed belong to teammates' plans and are never reused.
func Compile(o game.Order, env command.Env) *Plan {
	cat := env.Catalog
	p := &Plan{
		OrderID:  o.ID,
		Strategy: Sequential,
		Staging:  StagingTile(env.Stations),
		Direct:   DirectPlating(env.Stations),
	}

	var cooking, plain []string
	for _, name := range o.Required {
		if cat.NeedsCook(name) {
			cooking = append(cooking, name)
		} else {
			plain = append(plain, name)
		}
	}
	if len(cooking) == 1 && len(plain) <= 1 && CanOverlapCook(env.Stations) {
		p.Strategy = Parallel
	}

	add := func(cs ...*command.Command) { p.Commands = append(p.Commands, cs...) }
	prepare := func(name string) {
		add(command.Buy(name))
		if cat.NeedsChop(name) {
			add(command.Chop())
		}
	}
	assemble := func(name string) {
		if p.Direct {
			add(command.AddToPlate(name))
			return
		}
		add(
			command.Place(game.TileCounter),
			command.PickupPlate(p.Staging),
			command.AddToPlate(name),
			command.Place(p.Staging),
		)
	}

	plate := stagePlate(p, env)
	// A plate in hand goes down before the pan can be bought.
	if len(plate) > 0 && plate[0].Kind == command.KindPlace {
		add(plate...)
		plate = nil
	}
	if len(cooking) > 0 && !panOnCooker(env) {
		add(command.Buy(game.ItemPan), command.Place(game.TileCooker))
	}
	add(plate...)

	switch p.Strategy {
	case Parallel:
		food := cooking[0]
		prepare(food)
		add(command.StartCook(food))
		for _, name := range plain {
			prepare(name)
			assemble(name)
		}
		add(command.FinishCook(food))
		assemble(food)
	default:
		for _, name := range o.Required {
			prepare(name)
			if cat.NeedsCook(name) {
				add(command.StartCook(name), command.FinishCook(name))
			}
			assemble(name)
		}
	}

	add(command.PickupPlate(p.Staging), command.Submit(o.ID))
	return p
}

// stagePlate gets a clean plate onto the staging tile. In order of preference
// it uses the plate in hand, a spare one already on a staging counter, a spare
// one parked on another station, or a new one.
func stagePlate(p *Plan, env command.Env) []*command.Command {
	w := env.World
	st, ok := w.Agent(env.Agent)
	if !ok {
		return []*command.Command{command.Buy(game.ItemPlate), command.Place(p.Staging)}
	}
	if st.Holding.CleanEmptyPlate() {
		return []*command.Command{command.Place(p.Staging)}
	}
	spare := func(at game.Pos) bool {
		return !env.Claimed[at] && w.ItemAt(at).CleanEmptyPlate()
	}
	// Boxes may hold a stack, and a filled plate cannot go back on one.
	if p.Staging == game.TileCounter {
		if at, ok := env.Stations.Closest(game.TileCounter, st.Pos, spare); ok {
			p.Memo.Plate, p.Memo.HasPlate = at, true
			return nil
		}
	}
	for _, t := range []game.Tile{game.TileCounter, game.TileBox} {
		if t == p.Staging {
			continue
		}
		if at, ok := env.Stations.Closest(t, st.Pos, spare); ok {
			return []*command.Command{command.PickupAt(at), command.Place(p.Staging)}
		}
	}
	return []*command.Command{command.Buy(game.ItemPlate), command.Place(p.Staging)}
}

// CanOverlapCook reports layouts with room to stage food on one counter while
// the plate waits on another, which running a cook alongside other work needs.
func CanOverlapCook(st *game.Stations) bool {
	return StagingTile(st) == game.TileCounter && st.Count(game.TileCounter) >= 2
}

// StagingTile is BOX on maps with a single counter and at least one box, so
// the counter stays free for chopping and food staging; COUNTER otherwise.
func StagingTile(st *game.Stations) game.Tile {
	if st.Count(game.TileCounter) == 1 && st.Count(game.TileBox) >= 1 {
		return game.TileBox
	}
	return game.TileCounter
}

func panOnCooker(env command.Env) bool {
	for _, p := range env.Stations.All(game.TileCooker) {
		if env.World.ItemAt(p).IsPan() {
			return true
		}
	}
	return false
}

// DirectPlating reports maps whose only counter is needed for the plate.
func DirectPlating(st *game.Stations) bool {
	return st.Count(game.TileCounter) == 1 && st.Count(game.TileBox) == 0
}
