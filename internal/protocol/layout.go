package protocol

import (
	"fmt"
	"strings"

	"linecook.ai/internal/game"
)

// EncodeMap renders a grid in the text map format used by WELCOME.
func EncodeMap(g game.Grid) MapParams {
	w, h := g.Size()
	rows := make([]string, 0, h)
	for y := h - 1; y >= 0; y-- {
		var b strings.Builder
		for x := 0; x < w; x++ {
			b.WriteByte(g.TileAt(game.Pos{X: x, Y: y}).Char())
		}
		rows = append(rows, b.String())
	}
	return MapParams{Width: w, Height: h, Rows: rows}
}

// DecodeMap rebuilds the grid sent in WELCOME.
func DecodeMap(m MapParams) (*game.Layout, error) {
	if len(m.Rows) != m.Height {
		return nil, fmt.Errorf("map: %d rows, want %d", len(m.Rows), m.Height)
	}
	l, err := game.ParseMap(strings.NewReader(strings.Join(m.Rows, "\n")))
	if err != nil {
		return nil, err
	}
	if l.Width != m.Width {
		return nil, fmt.Errorf("map: width %d, want %d", l.Width, m.Width)
	}
	return l, nil
}
