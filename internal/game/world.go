package game

// Grid is the static layout of a kitchen. Tile types never change during a
// match; occupant items are read through World.ItemAt.
type Grid interface {
	Size() (width, height int)
	TileAt(p Pos) Tile
	Walkable(p Pos) bool
}

// World is everything the planner consumes from the kitchen it plays in.
// Reads return snapshots; mutating them has no effect on the kitchen.
//
// Action methods report success, but a kitchen may refuse an action and still
// report nothing useful, so callers verify effects by re-reading state.
type World interface {
	Grid

	Tick() int
	ItemAt(p Pos) *Item
	TeamAgents() []int
	Agent(id int) (AgentState, bool)
	Orders() []Order
	Money() int

	Actions
}

type Actions interface {
	Move(agent, dx, dy int) bool
	Buy(agent int, item string, at Pos) bool
	Place(agent int, at Pos) bool
	Pickup(agent int, at Pos) bool
	Chop(agent int, at Pos) bool
	TakeFromPan(agent int, at Pos) bool
	AddFoodToPlate(agent int, at Pos) bool
	Submit(agent int, at Pos) bool
	Trash(agent int, at Pos) bool
}

type AgentState struct {
	ID      int   `json:"id"`
	Pos     Pos   `json:"pos"`
	Holding *Item `json:"holding,omitempty"`
}

type Order struct {
	ID          int      `json:"order_id"`
	Required    []string `json:"required"`
	Reward      int      `json:"reward"`
	Penalty     int      `json:"penalty"`
	CreatedTick int      `json:"created_tick"`
	ExpiresTick int      `json:"expires_tick"`
	Active      bool     `json:"is_active"`
}

// Remaining is the number of ticks left before the order expires.
func (o Order) Remaining(now int) int { return o.ExpiresTick - now }

// ActiveOrder looks up an order id among the active orders.
func ActiveOrder(w World, id int) (Order, bool) {
	for _, o := range w.Orders() {
		if o.ID == id && o.Active {
			return o, true
		}
	}
	return Order{}, false
}

// InBounds reports whether p lies on g.
func InBounds(g Grid, p Pos) bool {
	w, h := g.Size()
	return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h
}
