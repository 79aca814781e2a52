package sim

import (
	"fmt"
	"sort"
	"sync"

	"linecook.ai/internal/game"
	"linecook.ai/internal/game/catalog"
)

// Kitchen is an in-memory kitchen with the rules the planner plays against.
// Refused actions return false and leave state untouched. It is safe for
// concurrent use.
type Kitchen struct {
	mu sync.Mutex

	layout *game.Layout
	cat    *catalog.Catalog
	cfg    KitchenConfig

	tick   int
	money  int
	agents []*agent
	cells  map[game.Pos][]*game.Item // boxes stack, other stations hold one
	cook   map[game.Pos]int          // cook progress of the food in the pan

	orders   []*game.Order
	schedule []game.ScheduledOrder
	nextID   int

	refuse int
	stats  Stats
}

type agent struct {
	id      int
	pos     game.Pos
	holding *game.Item
	moved   bool
	acted   bool
}

type Stats struct {
	Fulfilled []int `json:"fulfilled"`
	Expired   []int `json:"expired"`
	Rewards   int   `json:"rewards"`
	Penalties int   `json:"penalties"`
	Spent     int   `json:"spent"`
}

func NewKitchen(cfg KitchenConfig) (*Kitchen, error) {
	cfg = cfg.withDefaults()
	if cfg.Layout == nil {
		return nil, fmt.Errorf("kitchen: missing layout")
	}
	if len(cfg.Layout.Spawns) == 0 {
		return nil, fmt.Errorf("kitchen: layout has no agent spawn")
	}
	k := &Kitchen{
		layout:   cfg.Layout,
		cat:      cfg.Catalog,
		cfg:      cfg,
		money:    cfg.StartMoney,
		cells:    map[game.Pos][]*game.Item{},
		cook:     map[game.Pos]int{},
		schedule: append([]game.ScheduledOrder(nil), cfg.Layout.Orders...),
		nextID:   1,
	}
	for i, p := range cfg.Layout.Spawns {
		k.agents = append(k.agents, &agent{id: i + 1, pos: p})
	}
	sort.SliceStable(k.schedule, func(i, j int) bool { return k.schedule[i].Start < k.schedule[j].Start })
	k.releaseScheduled()
	return k, nil
}

func (k *Kitchen) Size() (int, int)           { return k.layout.Size() }
func (k *Kitchen) TileAt(p game.Pos) game.Tile { return k.layout.TileAt(p) }
func (k *Kitchen) Walkable(p game.Pos) bool    { return k.layout.Walkable(p) }

func (k *Kitchen) Layout() *game.Layout { return k.layout }

func (k *Kitchen) Tick() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tick
}

func (k *Kitchen) Money() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.money
}

func (k *Kitchen) ItemAt(p game.Pos) *game.Item {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.top(p).Clone()
}

func (k *Kitchen) TeamAgents() []int {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]int, 0, len(k.agents))
	for _, a := range k.agents {
		out = append(out, a.id)
	}
	return out
}

func (k *Kitchen) Agent(id int) (game.AgentState, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	a := k.agent(id)
	if a == nil {
		return game.AgentState{}, false
	}
	return game.AgentState{ID: a.id, Pos: a.pos, Holding: a.holding.Clone()}, true
}

// Orders returns every order released so far, active or not.
func (k *Kitchen) Orders() []game.Order {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]game.Order, 0, len(k.orders))
	for _, o := range k.orders {
		c := *o
		c.Required = append([]string(nil), o.Required...)
		out = append(out, c)
	}
	return out
}

// Items maps every occupied station to a copy of its top item.
func (k *Kitchen) Items() map[game.Pos]*game.Item {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[game.Pos]*game.Item, len(k.cells))
	for p := range k.cells {
		if it := k.top(p); it != nil {
			out[p] = it.Clone()
		}
	}
	return out
}

func (k *Kitchen) Stats() Stats {
	k.mu.Lock()
	defer k.mu.Unlock()
	s := k.stats
	s.Fulfilled = append([]int(nil), s.Fulfilled...)
	s.Expired = append([]int(nil), s.Expired...)
	return s
}

// Over reports whether the match tick limit has been reached.
func (k *Kitchen) Over() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cfg.MatchTicks > 0 && k.tick >= k.cfg.MatchTicks
}

// Advance ends the current tick: cooking progresses, due orders expire with
// their penalty, scheduled orders are released, and agents may act again.
func (k *Kitchen) Advance() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cfg.MatchTicks > 0 && k.tick >= k.cfg.MatchTicks {
		return
	}
	k.tick++

	for p, progress := range k.cook {
		pan := k.top(p)
		if !pan.IsPan() || pan.Food == nil {
			delete(k.cook, p)
			continue
		}
		progress++
		k.cook[p] = progress
		pan.Food.CookStage = k.stageFor(progress)
	}

	for _, o := range k.orders {
		if o.Active && k.tick >= o.ExpiresTick {
			k.expire(o)
		}
	}
	k.releaseScheduled()

	for _, a := range k.agents {
		a.moved, a.acted = false, false
	}
}

func (k *Kitchen) stageFor(progress int) int {
	stage := progress / k.cfg.CookTicks
	if stage > game.StageBurnt {
		stage = game.StageBurnt
	}
	return stage
}

func (k *Kitchen) expire(o *game.Order) {
	o.Active = false
	k.money -= o.Penalty
	k.stats.Penalties += o.Penalty
	k.stats.Expired = append(k.stats.Expired, o.ID)
}

func (k *Kitchen) releaseScheduled() {
	n := 0
	for _, s := range k.schedule {
		if s.Start > k.tick {
			k.schedule[n] = s
			n++
			continue
		}
		k.addOrder(s.Required, s.Reward, s.Penalty, s.Duration)
	}
	k.schedule = k.schedule[:n]
}

func (k *Kitchen) addOrder(required []string, reward, penalty, duration int) int {
	o := &game.Order{
		ID:          k.nextID,
		Required:    append([]string(nil), required...),
		Reward:      reward,
		Penalty:     penalty,
		CreatedTick: k.tick,
		ExpiresTick: k.tick + duration,
		Active:      true,
	}
	k.nextID++
	k.orders = append(k.orders, o)
	return o.ID
}

func (k *Kitchen) agent(id int) *agent {
	for _, a := range k.agents {
		if a.id == id {
			return a
		}
	}
	return nil
}

func (k *Kitchen) top(p game.Pos) *game.Item {
	st := k.cells[p]
	if len(st) == 0 {
		return nil
	}
	return st[len(st)-1]
}

func (k *Kitchen) push(p game.Pos, it *game.Item) {
	k.cells[p] = append(k.cells[p], it)
}

func (k *Kitchen) pop(p game.Pos) *game.Item {
	st := k.cells[p]
	if len(st) == 0 {
		return nil
	}
	it := st[len(st)-1]
	if len(st) == 1 {
		delete(k.cells, p)
	} else {
		k.cells[p] = st[:len(st)-1]
	}
	return it
}

func (k *Kitchen) occupied(p game.Pos) bool {
	for _, a := range k.agents {
		if a.pos == p {
			return true
		}
	}
	return false
}
