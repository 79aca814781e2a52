package nav

import "linecook.ai/internal/game"

type Outcome int

const (
	// Move: take (DX, DY) this tick.
	Move Outcome = iota
	// Arrived: start is already adjacent to the goal.
	Arrived
	// Unreachable: no walkable path ends adjacent to the goal.
	Unreachable
)

func (o Outcome) String() string {
	switch o {
	case Move:
		return "move"
	case Arrived:
		return "arrived"
	case Unreachable:
		return "unreachable"
	}
	return "unknown"
}

type Step struct {
	DX, DY  int
	Outcome Outcome
}

// NextStep runs a breadth-first search over walkable cells in 8-connected
// adjacency from start until it dequeues a cell within Chebyshev distance 1 of
// goal, and returns only the first step of that path. Cells in occupied are
// treated as walls (start itself is never blocked).
//
// Neighbours are expanded in game.Dirs8 order; among equally short paths the
// one found first wins, which is not otherwise guaranteed to be unique.
// Paths are never cached: callers recompute every tick.
func NextStep(g game.Grid, start, goal game.Pos, occupied map[game.Pos]bool) Step {
	if start.Adjacent(goal) {
		return Step{Outcome: Arrived}
	}

	type qItem struct {
		p     game.Pos
		first game.Pos
	}

	w, h := g.Size()
	visited := make(map[game.Pos]bool, w*h)
	visited[start] = true
	queue := make([]qItem, 0, 64)

	for _, d := range game.Dirs8 {
		np := start.Add(d.X, d.Y)
		if !passable(g, np, occupied) {
			continue
		}
		visited[np] = true
		queue = append(queue, qItem{p: np, first: d})
	}

	for head := 0; head < len(queue); head++ {
		it := queue[head]
		if it.p.Adjacent(goal) {
			return Step{DX: it.first.X, DY: it.first.Y, Outcome: Move}
		}
		for _, d := range game.Dirs8 {
			np := it.p.Add(d.X, d.Y)
			if visited[np] || !passable(g, np, occupied) {
				continue
			}
			visited[np] = true
			queue = append(queue, qItem{p: np, first: it.first})
		}
	}
	return Step{Outcome: Unreachable}
}

func passable(g game.Grid, p game.Pos, occupied map[game.Pos]bool) bool {
	if !game.InBounds(g, p) || !g.Walkable(p) {
		return false
	}
	return !occupied[p]
}

// Reachable flood-fills the walkable cells connected to start. Other agents
// are ignored: they move, walls do not.
func Reachable(g game.Grid, start game.Pos) map[game.Pos]bool {
	out := map[game.Pos]bool{start: true}
	queue := []game.Pos{start}
	for head := 0; head < len(queue); head++ {
		p := queue[head]
		for _, d := range game.Dirs8 {
			np := p.Add(d.X, d.Y)
			if out[np] || !passable(g, np, nil) {
				continue
			}
			out[np] = true
			queue = append(queue, np)
		}
	}
	return out
}

// Accessible reports whether an agent at from could interact with target
// given the reachable set computed from from.
func Accessible(reach map[game.Pos]bool, from, target game.Pos) bool {
	if from.Adjacent(target) {
		return true
	}
	for _, d := range game.Dirs8 {
		if reach[target.Add(d.X, d.Y)] {
			return true
		}
	}
	return false
}

// Occupied returns the cells of every team agent other than self.
func Occupied(w game.World, self int) map[game.Pos]bool {
	out := map[game.Pos]bool{}
	for _, id := range w.TeamAgents() {
		if id == self {
			continue
		}
		if st, ok := w.Agent(id); ok {
			out[st.Pos] = true
		}
	}
	return out
}
