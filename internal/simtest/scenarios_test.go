package simtest

import (
	"strings"
	"testing"

	"linecook.ai/internal/game"
	"linecook.ai/internal/planner/command"
	"linecook.ai/internal/planner/executor"
	"linecook.ai/internal/planner/record"
	"linecook.ai/internal/sim"
)

// y=2: # $ C R U #
// y=1: # b . . . #
var oneCounter = []string{
	"#$CRU#",
	"#b...#",
	"######",
}

// y=2: # $ C C K R U #
// y=1: # b . . . . . #
var fullKitchen = []string{
	"#$CCKRU#",
	"#b.....#",
	"########",
}

var cooker = game.Pos{X: 4, Y: 2}

func playSauce(t *testing.T) (int, *Harness, int) {
	h := New(t, oneCounter, sim.KitchenConfig{}, executor.Config{})
	id := h.K.AddOrder([]string{"SAUCE"}, 30, 5, 400)
	ticks := h.RunUntil(60, func() bool { return h.Fulfilled(id) })
	return ticks, h, id
}

func TestScenarioA_SinglePlainOrderCompletes(t *testing.T) {
	ticks, h, id := playSauce(t)
	again, _, _ := playSauce(t)
	if ticks != again {
		t.Fatalf("non-deterministic: %d vs %d ticks", ticks, again)
	}
	if got := h.Selected(1); len(got) != 1 || got[0] != id {
		t.Fatalf("selected=%v want [%d]", got, id)
	}

	h.RunUntil(10, func() bool { return h.Exec(1).State() == executor.StateIdle })
	as := h.Rec.Attempts
	if len(as) != 1 || as[0].Outcome != record.OutcomeCompleted || as[0].Reward != 30 {
		t.Fatalf("attempts=%+v", as)
	}
	if got := h.K.Money(); got != 150-12+30 {
		t.Fatalf("money=%d want %d", got, 150-12+30)
	}
}

func TestScenarioB_BurntFoodAbortsAndIsTrashed(t *testing.T) {
	h := New(t, fullKitchen, sim.KitchenConfig{}, executor.Config{})
	id := h.K.AddOrder([]string{"EGG"}, 60, 5, 400)
	burnt := false
	h.Before = func(h *Harness) {
		p := h.Plan(1)
		if burnt || p == nil || p.Current() == nil || p.Current().Kind != command.KindFinishCook {
			return
		}
		burnt = h.K.SetCookStage(cooker, game.StageBurnt)
	}

	h.RunUntil(80, func() bool {
		return len(h.Rec.Attempts) == 1 && h.Exec(1).State() == executor.StateIdle
	})
	if !burnt {
		t.Fatalf("finish-cook never became current")
	}
	a := h.Rec.Attempts[0]
	if a.OrderID != id || a.Outcome != record.OutcomeStuck || a.Code != command.CodeBurnt {
		t.Fatalf("attempt=%+v want stuck with %s", a, command.CodeBurnt)
	}
	if pan := h.K.ItemAt(cooker); !pan.IsPan() || pan.Food != nil {
		t.Fatalf("cooker=%v want a bare pan after cleaning", pan)
	}
	if it := h.Holding(1); it != nil && !it.CleanEmptyPlate() {
		t.Fatalf("agent still holds %v", it)
	}
	if !h.Exec(1).PlannerState().Processed[id] {
		t.Fatalf("aborted order should be processed")
	}
}

func TestScenarioC_ExpiryMidPlanDisposesAndNeverReselects(t *testing.T) {
	h := New(t, fullKitchen, sim.KitchenConfig{}, executor.Config{})
	id := h.K.AddOrder([]string{"SAUCE"}, 30, 5, 400)
	expired := false
	h.Before = func(h *Harness) {
		if p := h.Plan(1); !expired && p != nil && p.Remaining() == 3 {
			expired = h.K.ExpireOrder(id)
		}
	}

	h.RunUntil(60, func() bool {
		return expired && h.Exec(1).State() == executor.StateIdle
	})
	a := h.Rec.Attempts[0]
	if a.Outcome != record.OutcomeExpired || a.Code != command.CodeExpired {
		t.Fatalf("attempt=%+v want expired", a)
	}
	if it := h.Holding(1); it != nil && !it.CleanEmptyPlate() {
		t.Fatalf("held item %v should have been disposed", it)
	}
	for p, it := range h.K.Items() {
		if !it.CleanEmptyPlate() {
			t.Fatalf("leftover %v at %v after cleaning", it, p)
		}
	}

	h.StepFor(30)
	if got := h.Selected(1); len(got) != 1 {
		t.Fatalf("expired order re-selected: %v", got)
	}
}

func TestOrderAfterAbortReusesParkedPlate(t *testing.T) {
	h := New(t, fullKitchen, sim.KitchenConfig{}, executor.Config{})
	first := h.K.AddOrder([]string{"SAUCE"}, 30, 5, 400)
	expired := false
	h.Before = func(h *Harness) {
		if p := h.Plan(1); !expired && p != nil && p.Remaining() == 3 {
			expired = h.K.ExpireOrder(first)
		}
	}
	h.RunUntil(60, func() bool {
		return expired && h.Exec(1).State() == executor.StateIdle
	})

	second := h.K.AddOrder([]string{"SAUCE"}, 30, 5, 400)
	h.RunUntil(80, func() bool { return h.Fulfilled(second) })

	if len(h.Rec.Attempts) != 2 || h.Rec.Attempts[1].Outcome != record.OutcomeCompleted {
		t.Fatalf("attempts=%+v want the second order completed", h.Rec.Attempts)
	}
	selects := h.Rec.EventsOf(record.EventSelect)
	if last := selects[len(selects)-1]; strings.Contains(last.Detail, "BUY(PLATE)") {
		t.Fatalf("second plan bought a plate instead of reusing the parked one: %s", last.Detail)
	}
	for p, it := range h.K.Items() {
		if it.IsPlate() {
			t.Fatalf("plate %v left at %v", it, p)
		}
	}
}

func TestScenarioD_FeasibleOrderWins(t *testing.T) {
	h := New(t, fullKitchen, sim.KitchenConfig{}, executor.Config{})
	cheap := h.K.AddOrder([]string{"SAUCE"}, 15, 2, 60)
	rich := h.K.AddOrder([]string{"MEAT", "EGG"}, 500, 50, 80)

	h.RunUntil(60, func() bool { return h.Fulfilled(cheap) })
	if got := h.Selected(1); len(got) == 0 || got[0] != cheap {
		t.Fatalf("selected=%v want %d first", got, cheap)
	}
	for _, e := range h.Rec.EventsOf(record.EventSelect) {
		if e.OrderID == rich {
			t.Fatalf("infeasible order %d was selected", rich)
		}
	}
}

func TestParallelCookingCompletes(t *testing.T) {
	h := New(t, fullKitchen, sim.KitchenConfig{}, executor.Config{})
	h.K.PutItem(cooker, game.NewPan())
	id := h.K.AddOrder([]string{"ONIONS", "EGG"}, 120, 10, 300)
	h.RunUntil(150, func() bool { return h.Fulfilled(id) })
}

func TestTwoAgentsPursueDifferentOrders(t *testing.T) {
	h := New(t, []string{
		"#$CCRUKCC$#",
		"#b........#",
		"#........b#",
		"###########",
	}, sim.KitchenConfig{StartMoney: 300}, executor.Config{})
	a := h.K.AddOrder([]string{"SAUCE"}, 40, 5, 300)
	b := h.K.AddOrder([]string{"NOODLES"}, 80, 5, 300)
	h.Step()

	first, second := h.Selected(1), h.Selected(2)
	if len(first) != 1 || len(second) != 1 || first[0] == second[0] {
		t.Fatalf("agent 1 selected %v, agent 2 selected %v; want distinct orders", first, second)
	}
	h.RunUntil(200, func() bool { return h.Fulfilled(a) && h.Fulfilled(b) })
}
