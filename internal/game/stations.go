package game

// Stations caches station positions by tile type. Layouts are static, so a
// Stations value is built once per map and reused; occupants are not cached.
type Stations struct {
	width  int
	height int
	byTile map[Tile][]Pos
}

// ScanStations indexes every non-floor tile of g in column-major order
// (x outer, y inner), which fixes the tie-break order of Closest.
func ScanStations(g Grid) *Stations {
	w, h := g.Size()
	s := &Stations{width: w, height: h, byTile: map[Tile][]Pos{}}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			p := Pos{X: x, Y: y}
			t := g.TileAt(p)
			if t == TileFloor || t == TileWall {
				continue
			}
			s.byTile[t] = append(s.byTile[t], p)
		}
	}
	return s
}

// Matches reports whether the cache was built for a grid of the same size.
func (s *Stations) Matches(g Grid) bool {
	if s == nil {
		return false
	}
	w, h := g.Size()
	return w == s.width && h == s.height
}

func (s *Stations) All(t Tile) []Pos { return s.byTile[t] }

func (s *Stations) Count(t Tile) int { return len(s.byTile[t]) }

func (s *Stations) First(t Tile) (Pos, bool) {
	ps := s.byTile[t]
	if len(ps) == 0 {
		return Pos{}, false
	}
	return ps[0], true
}

// Closest returns the station of type t nearest to from (Chebyshev) that
// satisfies keep. A nil keep accepts every station.
func (s *Stations) Closest(t Tile, from Pos, keep func(Pos) bool) (Pos, bool) {
	best := Pos{}
	bestDist := -1
	for _, p := range s.byTile[t] {
		if keep != nil && !keep(p) {
			continue
		}
		d := p.Chebyshev(from)
		if bestDist < 0 || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, bestDist >= 0
}

// Empty is a Closest filter selecting stations with no occupant.
func Empty(w World) func(Pos) bool {
	return func(p Pos) bool { return w.ItemAt(p) == nil }
}

// Holding is a Closest filter selecting stations whose occupant satisfies pred.
func Holding(w World, pred func(*Item) bool) func(Pos) bool {
	return func(p Pos) bool {
		it := w.ItemAt(p)
		return it != nil && pred(it)
	}
}
