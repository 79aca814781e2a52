package command

import (
	"linecook.ai/internal/game"
	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/planner/tuning"
)

// Env is what a command sees when it is stepped: the kitchen, the agent it
// drives, the cached station layout, and the memo shared by its plan.
type Env struct {
	World    game.World
	Agent    int
	Stations *game.Stations
	Catalog  *catalog.Catalog
	Tuning   tuning.Tuning
	Memo     *Memo
	// Claimed cells hold items a teammate's plan still needs.
	Claimed map[game.Pos]bool
}

// Memo remembers which cells a plan has put things on, so later commands of the
// same plan go back to the same plate, food, and cooker instead of the nearest
// lookalike. Every field is a hint: commands re-check the cell before use.
type Memo struct {
	Plate     game.Pos
	HasPlate  bool
	Food      game.Pos
	FoodName  string
	HasFood   bool
	Cooker    game.Pos
	HasCooker bool
}

func (m *Memo) notePlaced(at game.Pos, it *game.Item) {
	if m == nil || it == nil {
		return
	}
	switch {
	case it.IsPlate():
		m.Plate, m.HasPlate = at, true
	case it.IsFood():
		m.Food, m.FoodName, m.HasFood = at, it.Food.Name, true
	}
}

func (e Env) self() (game.AgentState, bool) { return e.World.Agent(e.Agent) }
