package game

import "fmt"

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Pos) Add(dx, dy int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy} }

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Chebyshev is the 8-connected grid distance.
func (p Pos) Chebyshev(q Pos) int {
	dx := p.X - q.X
	if dx < 0 {
		dx = -dx
	}
	dy := p.Y - q.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// Adjacent reports whether p can interact with q (including p == q).
func (p Pos) Adjacent(q Pos) bool { return p.Chebyshev(q) <= 1 }

// Dirs8 is the fixed neighbour enumeration order used everywhere a grid is expanded.
var Dirs8 = [8]Pos{
	{X: -1, Y: -1}, {X: -1, Y: 0}, {X: -1, Y: 1},
	{X: 0, Y: -1}, {X: 0, Y: 1},
	{X: 1, Y: -1}, {X: 1, Y: 0}, {X: 1, Y: 1},
}
