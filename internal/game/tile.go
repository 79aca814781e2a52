package game

type Tile string

const (
	TileFloor     Tile = "FLOOR"
	TileWall      Tile = "WALL"
	TileCounter   Tile = "COUNTER"
	TileCooker    Tile = "COOKER"
	TileSink      Tile = "SINK"
	TileSinkTable Tile = "SINKTABLE"
	TileTrash     Tile = "TRASH"
	TileSubmit    Tile = "SUBMIT"
	TileShop      Tile = "SHOP"
	TileBox       Tile = "BOX"
)

// Walkable reports whether agents may stand on the tile. Stations are
// interacted with from an adjacent floor cell, never stood on.
func (t Tile) Walkable() bool { return t == TileFloor }

// Holds reports whether the tile can carry an occupant item.
func (t Tile) Holds() bool {
	switch t {
	case TileCounter, TileCooker, TileBox, TileSink, TileSinkTable:
		return true
	}
	return false
}

var tileByChar = map[byte]Tile{
	'.': TileFloor,
	'#': TileWall,
	'C': TileCounter,
	'K': TileCooker,
	'S': TileSink,
	'T': TileSinkTable,
	'R': TileTrash,
	'U': TileSubmit,
	'$': TileShop,
	'B': TileBox,
}

func TileFromChar(c byte) (Tile, bool) {
	t, ok := tileByChar[c]
	return t, ok
}

func (t Tile) Char() byte {
	for c, tt := range tileByChar {
		if tt == t {
			return c
		}
	}
	return '?'
}
