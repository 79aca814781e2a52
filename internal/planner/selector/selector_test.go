package selector

import (
	"strings"
	"testing"

	"linecook.ai/internal/game"
	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/planner/tuning"
	"linecook.ai/internal/sim"
)

var kitchenRows = []string{
	"#$CCKRU#",
	"#b.....#",
	"########",
}

func newInput(t *testing.T, rows ...string) (*sim.Kitchen, Input) {
	t.Helper()
	if len(rows) == 0 {
		rows = kitchenRows
	}
	l, err := game.ParseMap(strings.NewReader(strings.Join(rows, "\n")))
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	k, err := sim.NewKitchen(sim.KitchenConfig{Layout: l})
	if err != nil {
		t.Fatalf("NewKitchen: %v", err)
	}
	return k, Input{
		World:    k,
		Agent:    1,
		Stations: game.ScanStations(k),
		Catalog:  catalog.Defaults(),
		Tuning:   tuning.Defaults(),
	}
}

func TestEstimate(t *testing.T) {
	cat := catalog.Defaults()
	est := tuning.Defaults().Estimate
	cases := []struct {
		required []string
		want     int
	}{
		{[]string{"SAUCE"}, 35},
		{[]string{"ONIONS"}, 42},
		{[]string{"EGG"}, 53},
		{[]string{"EGG", "SAUCE"}, 63},
		{[]string{"EGG", "SAUCE", "NOODLES"}, 83},
		{[]string{"EGG", "MEAT"}, 108},
	}
	for _, tc := range cases {
		if got := Estimate(ShapeOf(tc.required, cat), true, est); got != tc.want {
			t.Fatalf("Estimate(%v)=%d want %d", tc.required, got, tc.want)
		}
	}
}

func TestEstimate_NoOverlapWithoutTwoStagingCounters(t *testing.T) {
	cat := catalog.Defaults()
	est := tuning.Defaults().Estimate
	if got := Estimate(ShapeOf([]string{"EGG"}, cat), false, est); got != 63 {
		t.Fatalf("sequential EGG estimate=%d want 63", got)
	}

	// One counter and a box: the plate is staged in the box and the cook runs
	// in sequence, so the selector must not price the overlap in.
	k, in := newInput(t,
		"#$CBKRU#",
		"#b.....#",
		"########",
	)
	k.AddOrder([]string{"EGG"}, 100, 10, 300)
	d := Select(in, map[int]bool{})
	if d.Chosen == nil {
		t.Fatalf("no order chosen: %+v", d.Rejected)
	}
	if d.Chosen.Estimated != 63 {
		t.Fatalf("estimate=%d want 63 on a box-staging map", d.Chosen.Estimated)
	}
}

// Scenario D: the cheap order that fits its deadline wins over the lucrative
// one that cannot be finished in time.
func TestSelect_FeasibleBeatsLucrativeButLate(t *testing.T) {
	k, in := newInput(t)
	cheap := k.AddOrder([]string{"SAUCE"}, 15, 2, 60)
	rich := k.AddOrder([]string{"MEAT", "EGG"}, 500, 50, 80)

	processed := map[int]bool{}
	d := Select(in, processed)
	if d.Chosen == nil || d.Chosen.Order.ID != cheap {
		t.Fatalf("chosen=%+v want order %d", d.Chosen, cheap)
	}
	if !processed[rich] {
		t.Fatalf("infeasible order %d should be marked processed", rich)
	}
	if processed[cheap] {
		t.Fatalf("chosen order should not be marked processed")
	}
}

func TestSelect_NeverPicksOverBudgetOrders(t *testing.T) {
	k, in := newInput(t)
	for _, dur := range []int{10, 30, 40, 41, 60, 120} {
		k.AddOrder([]string{"SAUCE"}, 100, 5, dur)
	}
	k.AddOrder([]string{"SAUCE"}, 8, 4, 200)
	mult := in.Tuning.Multiplier(k.Tick())

	d := Select(in, map[int]bool{})
	for _, c := range d.Ranked {
		if float64(c.Estimated)*mult > float64(c.Order.Remaining(k.Tick())) {
			t.Fatalf("order %d ranked with %d ticks left, needs %d", c.Order.ID, c.Order.Remaining(k.Tick()), c.Estimated)
		}
		if c.Cost >= c.Order.Reward+c.Order.Penalty {
			t.Fatalf("unprofitable order %d ranked", c.Order.ID)
		}
	}
	if len(d.Ranked) != 3 {
		t.Fatalf("ranked %d orders want 3", len(d.Ranked))
	}
}

func TestSelect_InsufficientFundsDefers(t *testing.T) {
	k, in := newInput(t)
	k.SetMoney(5)
	id := k.AddOrder([]string{"SAUCE"}, 30, 5, 200)
	processed := map[int]bool{}
	d := Select(in, processed)
	if d.Chosen != nil || processed[id] || len(d.Deferred) != 1 {
		t.Fatalf("decision=%+v processed=%v want deferral", d, processed)
	}
	k.SetMoney(50)
	if d := Select(in, processed); d.Chosen == nil || d.Chosen.Order.ID != id {
		t.Fatalf("order should be selectable once funds arrive")
	}
}

func TestSelect_RanksByRateThenLowerID(t *testing.T) {
	k, in := newInput(t)
	a := k.AddOrder([]string{"SAUCE"}, 50, 5, 200)
	b := k.AddOrder([]string{"SAUCE"}, 50, 5, 200)
	c := k.AddOrder([]string{"SAUCE"}, 90, 5, 200)
	d := Select(in, map[int]bool{})
	var got []int
	for _, r := range d.Ranked {
		got = append(got, r.Order.ID)
	}
	want := []int{c, a, b}
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("ranking=%v want %v", got, want)
	}
}

func TestSelect_LatePhasePrefersSpeed(t *testing.T) {
	k, in := newInput(t)
	slow := k.AddOrder([]string{"NOODLES", "SAUCE"}, 300, 5, 200)
	fast := k.AddOrder([]string{"SAUCE"}, 20, 5, 200)

	if d := Select(in, map[int]bool{}); d.Chosen == nil || d.Chosen.Order.ID != slow {
		t.Fatalf("early phase should pick the better rate (order %d)", slow)
	}
	in.Tuning.LatePhaseTicks = in.Tuning.MatchTicks + 1
	d := Select(in, map[int]bool{})
	if !d.Late || d.Chosen == nil || d.Chosen.Order.ID != fast {
		t.Fatalf("late phase should pick the quicker order %d, got %+v", fast, d.Chosen)
	}
}

func TestSelect_InaccessibleCookerRejects(t *testing.T) {
	k, in := newInput(t,
		"#$CCU#K#",
		"#b...#.#",
		"########",
	)
	egg := k.AddOrder([]string{"EGG"}, 100, 5, 200)
	sauce := k.AddOrder([]string{"SAUCE"}, 30, 5, 200)
	processed := map[int]bool{}
	d := Select(in, processed)
	if !processed[egg] {
		t.Fatalf("order needing the walled-off cooker should be rejected: %+v", d.Rejected)
	}
	if d.Chosen == nil || d.Chosen.Order.ID != sauce {
		t.Fatalf("chosen=%+v want %d", d.Chosen, sauce)
	}
}

func TestSelect_SkipsProcessedAndExcluded(t *testing.T) {
	k, in := newInput(t)
	a := k.AddOrder([]string{"SAUCE"}, 30, 5, 200)
	b := k.AddOrder([]string{"SAUCE"}, 30, 5, 200)
	in.Exclude = map[int]bool{b: true}
	if d := Select(in, map[int]bool{a: true}); d.Chosen != nil {
		t.Fatalf("chosen=%+v want none", d.Chosen)
	}
}

func TestSelect_NoChoppingWhenThePlateHoldsTheOnlyCounter(t *testing.T) {
	k, in := newInput(t,
		"#$CRU#",
		"#b...#",
		"######",
	)
	onions := k.AddOrder([]string{"ONIONS"}, 100, 5, 200)
	processed := map[int]bool{}
	if d := Select(in, processed); d.Chosen != nil || !processed[onions] {
		t.Fatalf("chopping order should be rejected, chosen=%+v", d.Chosen)
	}
}
