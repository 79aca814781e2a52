package selector

import (
	"fmt"
	"sort"

	"linecook.ai/internal/game"
	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/planner/nav"
	"linecook.ai/internal/planner/plan"
	"linecook.ai/internal/planner/tuning"
)

type Input struct {
	World    game.World
	Agent    int
	Stations *game.Stations
	Catalog  *catalog.Catalog
	Tuning   tuning.Tuning
	// Exclude holds orders already bound to other agents of the team.
	Exclude map[int]bool
}

type Candidate struct {
	Order     game.Order
	Estimated int // ticks
	Cost      int // ingredients, plate, and a pan when none is on a cooker
	Profit    int // reward - cost
	Rate      float64
}

type Verdict struct {
	OrderID int
	Reason  string
}

type Decision struct {
	Chosen *Candidate
	Ranked []Candidate
	// Rejected orders failed a check that cannot recover; they were added to
	// the processed set.
	Rejected []Verdict
	// Deferred orders were skipped this time only.
	Deferred []Verdict
	Late     bool
}

// Select picks at most one active order to pursue. Orders that fail the time,
// profit, or station checks are marked processed and never evaluated again;
// orders skipped for lack of funds stay eligible because funds can grow.
//
// Early in the match candidates are ranked by profit per estimated tick, late
// by estimated ticks then profit. Equal scores go to the lower order id.
func Select(in Input, processed map[int]bool) Decision {
	w := in.World
	now := w.Tick()
	var d Decision
	d.Late = in.Tuning.LatePhase(now)
	mult := in.Tuning.Multiplier(now)

	self, ok := w.Agent(in.Agent)
	if !ok {
		return d
	}
	reach := nav.Reachable(w, self.Pos)
	panReady := panOnCooker(w, in.Stations)
	money := w.Money()

	reject := func(id int, format string, args ...any) {
		processed[id] = true
		d.Rejected = append(d.Rejected, Verdict{OrderID: id, Reason: fmt.Sprintf(format, args...)})
	}
	deferOrder := func(id int, reason string) {
		d.Deferred = append(d.Deferred, Verdict{OrderID: id, Reason: reason})
	}

	for _, o := range w.Orders() {
		if !o.Active || processed[o.ID] {
			continue
		}
		if in.Exclude[o.ID] {
			deferOrder(o.ID, "bound to a teammate")
			continue
		}
		s := ShapeOf(o.Required, in.Catalog)
		if len(s.Unknown) > 0 || s.Items == 0 {
			reject(o.ID, "unknown items %v", s.Unknown)
			continue
		}
		remaining := o.Remaining(now)
		if floor := MinRemaining(s, in.Tuning.Estimate); remaining < floor {
			reject(o.ID, "%d ticks left, floor %d", remaining, floor)
			continue
		}
		est := Estimate(s, plan.CanOverlapCook(in.Stations), in.Tuning.Estimate)
		if float64(est)*mult > float64(remaining) {
			reject(o.ID, "needs %d x %.2f ticks, %d left", est, mult, remaining)
			continue
		}
		cost, _ := in.Catalog.OrderCost(o.Required)
		if s.Cooks > 0 && !panReady {
			cost += in.Catalog.PanCost
		}
		if cost >= o.Reward+o.Penalty {
			reject(o.ID, "cost %d >= reward %d + penalty %d", cost, o.Reward, o.Penalty)
			continue
		}
		if t, ok := missingStation(in.Stations, reach, self.Pos, s); ok {
			reject(o.ID, "%s not accessible", t)
			continue
		}
		if s.Chops > 0 && plan.DirectPlating(in.Stations) {
			reject(o.ID, "no counter free for chopping")
			continue
		}
		if cost > money {
			deferOrder(o.ID, fmt.Sprintf("cost %d > funds %d", cost, money))
			continue
		}
		profit := o.Reward - cost
		d.Ranked = append(d.Ranked, Candidate{
			Order:     o,
			Estimated: est,
			Cost:      cost,
			Profit:    profit,
			Rate:      float64(profit) / float64(est),
		})
	}

	sort.SliceStable(d.Ranked, func(i, j int) bool {
		a, b := d.Ranked[i], d.Ranked[j]
		if d.Late {
			if a.Estimated != b.Estimated {
				return a.Estimated < b.Estimated
			}
			if a.Profit != b.Profit {
				return a.Profit > b.Profit
			}
		} else if a.Rate != b.Rate {
			return a.Rate > b.Rate
		}
		return a.Order.ID < b.Order.ID
	})
	if len(d.Ranked) > 0 {
		c := d.Ranked[0]
		d.Chosen = &c
	}
	return d
}

// missingStation returns the first station type the order needs that has no
// instance the agent can reach.
func missingStation(st *game.Stations, reach map[game.Pos]bool, from game.Pos, s Shape) (game.Tile, bool) {
	need := []game.Tile{game.TileShop, game.TileCounter, game.TileSubmit}
	if s.Cooks > 0 {
		need = append(need, game.TileCooker)
	}
	for _, t := range need {
		found := false
		for _, p := range st.All(t) {
			if nav.Accessible(reach, from, p) {
				found = true
				break
			}
		}
		if !found {
			return t, true
		}
	}
	return "", false
}

func panOnCooker(w game.World, st *game.Stations) bool {
	for _, p := range st.All(game.TileCooker) {
		if w.ItemAt(p).IsPan() {
			return true
		}
	}
	return false
}
