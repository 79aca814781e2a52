package game

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Layout is a parsed map: a static grid plus agent spawns and the order
// schedule. It implements Grid.
type Layout struct {
	Width  int
	Height int
	Tiles  [][]Tile // [x][y]
	Spawns []Pos
	Orders []ScheduledOrder
}

type ScheduledOrder struct {
	Start    int
	Duration int
	Required []string
	Reward   int
	Penalty  int
}

func (l *Layout) Size() (int, int) { return l.Width, l.Height }

func (l *Layout) TileAt(p Pos) Tile {
	if !InBounds(l, p) {
		return TileWall
	}
	return l.Tiles[p.X][p.Y]
}

func (l *Layout) Walkable(p Pos) bool { return l.TileAt(p).Walkable() }

func LoadMap(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	l, err := ParseMap(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// ParseMap reads the text map format. Rows are listed top to bottom, so the
// first row is y = height-1. A 'b' marks an agent spawn on a floor cell.
func ParseMap(r io.Reader) (*Layout, error) {
	var rows []string
	var orderLines []string
	inOrders := false

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "ORDERS:" {
			inOrders = true
			continue
		}
		if inOrders {
			if strings.TrimSpace(line) != "" {
				orderLines = append(orderLines, line)
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("map has no rows")
	}

	width := len(rows[0])
	height := len(rows)
	l := &Layout{Width: width, Height: height, Tiles: make([][]Tile, width)}
	for x := range l.Tiles {
		l.Tiles[x] = make([]Tile, height)
	}
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d: width %d, want %d", i, len(row), width)
		}
		y := height - 1 - i
		for x := 0; x < width; x++ {
			c := row[x]
			if c == 'b' {
				l.Tiles[x][y] = TileFloor
				l.Spawns = append(l.Spawns, Pos{X: x, Y: y})
				continue
			}
			t, ok := TileFromChar(c)
			if !ok {
				return nil, fmt.Errorf("row %d col %d: unknown tile %q", i, x, c)
			}
			l.Tiles[x][y] = t
		}
	}

	for _, line := range orderLines {
		o, err := parseOrderLine(line)
		if err != nil {
			return nil, fmt.Errorf("orders: %q: %w", line, err)
		}
		l.Orders = append(l.Orders, o)
	}
	return l, nil
}

func parseOrderLine(line string) (ScheduledOrder, error) {
	o := ScheduledOrder{Reward: 5, Penalty: 2}
	seen := map[string]bool{}
	for _, field := range strings.Fields(line) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			return o, fmt.Errorf("bad field %q", field)
		}
		seen[k] = true
		if k == "required" {
			for _, name := range strings.Split(v, ",") {
				if name = strings.TrimSpace(name); name != "" {
					o.Required = append(o.Required, strings.ToUpper(name))
				}
			}
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return o, fmt.Errorf("%s: %w", k, err)
		}
		switch k {
		case "start":
			o.Start = n
		case "duration":
			o.Duration = n
		case "reward":
			o.Reward = n
		case "penalty":
			o.Penalty = n
		default:
			return o, fmt.Errorf("unknown field %q", k)
		}
	}
	if !seen["start"] || !seen["duration"] {
		return o, fmt.Errorf("missing start or duration")
	}
	if o.Duration < 0 {
		return o, fmt.Errorf("negative duration")
	}
	if len(o.Required) == 0 {
		return o, fmt.Errorf("empty required list")
	}
	return o, nil
}
