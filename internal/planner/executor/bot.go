package executor

import (
	"sort"

	"linecook.ai/internal/game"
)

// Bot runs one Executor per agent of the team, in ascending agent id order.
// Teammates' cells are navigation obstacles, and an order bound to one agent
// is hidden from the others' selection; there is no station reservation.
type Bot struct {
	cfg   Config
	execs []*Executor
}

func NewBot(cfg Config) *Bot {
	return &Bot{cfg: cfg.withDefaults()}
}

func (b *Bot) Executors() []*Executor { return b.execs }

// Tick plays one simulation tick for every team agent.
func (b *Bot) Tick(w game.World) {
	b.syncTeam(w.TeamAgents())
	for _, e := range b.execs {
		e.Tick(w)
	}
}

func (b *Bot) syncTeam(team []int) {
	ids := append([]int(nil), team...)
	sort.Ints(ids)
	if len(ids) == len(b.execs) {
		same := true
		for i, e := range b.execs {
			if e.agent != ids[i] {
				same = false
				break
			}
		}
		if same {
			return
		}
	}
	b.execs = b.execs[:0]
	for _, id := range ids {
		e := New(id, b.cfg)
		e.exclude = b.boundExcept(id)
		e.claimed = b.claimedExcept(id)
		b.execs = append(b.execs, e)
	}
}

func (b *Bot) boundExcept(self int) func() map[int]bool {
	return func() map[int]bool {
		out := map[int]bool{}
		for _, e := range b.execs {
			if e.agent == self {
				continue
			}
			if id, ok := e.ps.BoundOrder(); ok {
				out[id] = true
			}
		}
		return out
	}
}

func (b *Bot) claimedExcept(self int) func() map[game.Pos]bool {
	return func() map[game.Pos]bool {
		out := map[game.Pos]bool{}
		for _, e := range b.execs {
			if e.agent == self || e.ps.Plan == nil {
				continue
			}
			m := e.ps.Plan.Memo
			if m.HasPlate {
				out[m.Plate] = true
			}
			if m.HasFood {
				out[m.Food] = true
			}
			if m.HasCooker {
				out[m.Cooker] = true
			}
		}
		return out
	}
}
