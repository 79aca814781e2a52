package plan

import (
	"reflect"
	"strings"
	"testing"

	"linecook.ai/internal/game"
	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/planner/command"
	"linecook.ai/internal/planner/tuning"
	"linecook.ai/internal/sim"
)

const (
	B  = command.KindBuy
	P  = command.KindPlace
	CH = command.KindChop
	SC = command.KindStartCook
	FC = command.KindFinishCook
	AD = command.KindAddToPlate
	PU = command.KindPickup
	SU = command.KindSubmit
)

func newEnv(t *testing.T, rows ...string) (*sim.Kitchen, command.Env) {
	t.Helper()
	l, err := game.ParseMap(strings.NewReader(strings.Join(rows, "\n")))
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	k, err := sim.NewKitchen(sim.KitchenConfig{Layout: l})
	if err != nil {
		t.Fatalf("NewKitchen: %v", err)
	}
	return k, command.Env{
		World:    k,
		Agent:    1,
		Stations: game.ScanStations(k),
		Catalog:  catalog.Defaults(),
		Tuning:   tuning.Defaults(),
	}
}

var twoCounters = []string{
	"#$CCKRU#",
	"#b.....#",
	"########",
}

func order(id int, required ...string) game.Order {
	return game.Order{ID: id, Required: required, Reward: 100, Penalty: 10, ExpiresTick: 500, Active: true}
}

func TestCompile_SinglePlainItem(t *testing.T) {
	_, env := newEnv(t, twoCounters...)
	p := Compile(order(3, "SAUCE"), env)
	want := []command.Kind{B, P, B, P, PU, AD, P, PU, SU}
	if got := p.Kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds=%v want %v", got, want)
	}
	if p.Strategy != Sequential || p.Staging != game.TileCounter {
		t.Fatalf("strategy=%s staging=%s", p.Strategy, p.Staging)
	}
	if last := p.Commands[len(p.Commands)-1]; last.OrderID != 3 {
		t.Fatalf("submit bound to order %d", last.OrderID)
	}
}

func TestCompile_IsDeterministic(t *testing.T) {
	_, env := newEnv(t, twoCounters...)
	o := order(1, "MEAT", "ONIONS", "EGG", "SAUCE")
	a, b := Compile(o, env), Compile(o, env)
	if a.String() != b.String() {
		t.Fatalf("compile differs:\n%s\n%s", a, b)
	}
}

func TestCompile_ParallelCookStartsFirstAndFinishesLast(t *testing.T) {
	k, env := newEnv(t, twoCounters...)
	k.PutItem(game.Pos{X: 4, Y: 2}, game.NewPan())
	p := Compile(order(1, "ONIONS", "EGG"), env)
	if p.Strategy != Parallel {
		t.Fatalf("strategy=%s want parallel", p.Strategy)
	}
	want := []command.Kind{
		B, P, // plate
		B, SC, // egg on
		B, CH, P, PU, AD, P, // onions
		FC, P, PU, AD, P, // egg off
		PU, SU,
	}
	if got := p.Kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds=%v\nwant %v", got, want)
	}
}

func TestCompile_TwoCookingItemsFallBackToSequential(t *testing.T) {
	k, env := newEnv(t, twoCounters...)
	k.PutItem(game.Pos{X: 4, Y: 2}, game.NewPan())
	p := Compile(order(1, "EGG", "MEAT"), env)
	if p.Strategy != Sequential {
		t.Fatalf("strategy=%s want sequential", p.Strategy)
	}
	want := []command.Kind{
		B, P,
		B, SC, FC, P, PU, AD, P,
		B, CH, SC, FC, P, PU, AD, P,
		PU, SU,
	}
	if got := p.Kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds=%v\nwant %v", got, want)
	}
}

func TestCompile_ProvisionsPanWhenNoCookerHasOne(t *testing.T) {
	_, env := newEnv(t, twoCounters...)
	p := Compile(order(1, "EGG"), env)
	if p.Commands[0].Kind != B || p.Commands[0].Item != game.ItemPan {
		t.Fatalf("first command %s, want BUY(PAN)", p.Commands[0])
	}
	if p.Commands[1].Kind != P || p.Commands[1].Station != game.TileCooker {
		t.Fatalf("second command %s, want PLACE(COOKER)", p.Commands[1])
	}

	plain := Compile(order(2, "SAUCE"), env)
	if plain.Commands[0].Item != game.ItemPlate {
		t.Fatalf("orders without cooking need no pan, got %s", plain.Commands[0])
	}
}

func TestCompile_BoxStagingOnSingleCounterMaps(t *testing.T) {
	_, env := newEnv(t,
		"#$CBKRU#",
		"#b.....#",
		"########",
	)
	p := Compile(order(1, "SAUCE", "EGG"), env)
	if p.Staging != game.TileBox || p.Strategy != Sequential {
		t.Fatalf("staging=%s strategy=%s want BOX sequential", p.Staging, p.Strategy)
	}
	for _, c := range p.Commands {
		if c.Kind == PU && c.Station != game.TileBox {
			t.Fatalf("%s should pick the plate from the box", c)
		}
	}
}

func TestPlan_Cursor(t *testing.T) {
	_, env := newEnv(t, twoCounters...)
	p := Compile(order(1, "SAUCE"), env)
	n := len(p.Commands)
	for i := 0; i < n-1; i++ {
		if !p.Advance() {
			t.Fatalf("advance %d reported exhaustion", i)
		}
	}
	if p.Advance() || !p.Done() || p.Current() != nil || p.Remaining() != 0 {
		t.Fatalf("plan should be exhausted: cursor=%d", p.Cursor())
	}
}

func TestCompile_DirectPlatingOnSingleCounterWithoutBox(t *testing.T) {
	_, env := newEnv(t,
		"#$CRU#",
		"#b...#",
		"######",
	)
	p := Compile(order(4, "SAUCE"), env)
	if !p.Direct {
		t.Fatalf("single counter without box should plate directly")
	}
	want := []command.Kind{B, P, B, AD, PU, SU}
	if got := p.Kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds=%v want %v", got, want)
	}
}

func TestCompile_ReusesSpareCleanPlate(t *testing.T) {
	k, env := newEnv(t, twoCounters...)
	spare := game.Pos{X: 3, Y: 2}
	k.PutItem(spare, game.NewPlate())

	p := Compile(order(1, "SAUCE"), env)
	want := []command.Kind{B, P, PU, AD, P, PU, SU}
	if got := p.Kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds=%v want %v", got, want)
	}
	if !p.Memo.HasPlate || p.Memo.Plate != spare {
		t.Fatalf("memo plate=%v/%v want %v", p.Memo.Plate, p.Memo.HasPlate, spare)
	}

	env.Claimed = map[game.Pos]bool{spare: true}
	if p := Compile(order(2, "SAUCE"), env); p.Commands[0].Item != game.ItemPlate {
		t.Fatalf("a teammate's plate was reused: %s", p)
	}
}

func TestCompile_PlacesHeldPlate(t *testing.T) {
	k, env := newEnv(t, twoCounters...)
	k.Give(1, game.NewPlate())
	p := Compile(order(1, "SAUCE"), env)
	want := []command.Kind{P, B, P, PU, AD, P, PU, SU}
	if got := p.Kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds=%v want %v", got, want)
	}

	cook := Compile(order(2, "EGG"), env)
	if c := cook.Commands[0]; c.Kind != P || c.Station != game.TileCounter {
		t.Fatalf("first command %s, want the held plate placed before BUY(PAN)", c)
	}
	if c := cook.Commands[1]; c.Kind != B || c.Item != game.ItemPan {
		t.Fatalf("second command %s, want BUY(PAN)", c)
	}
}

func TestCompile_MovesParkedPlateToBoxStaging(t *testing.T) {
	k, env := newEnv(t,
		"#$CBKRU#",
		"#b.....#",
		"########",
	)
	parked := game.Pos{X: 2, Y: 2}
	k.PutItem(parked, game.NewPlate())
	p := Compile(order(1, "SAUCE"), env)
	first, second := p.Commands[0], p.Commands[1]
	if first.Kind != PU || first.At == nil || *first.At != parked {
		t.Fatalf("first command %s, want PICKUP(%v)", first, parked)
	}
	if second.Kind != P || second.Station != game.TileBox {
		t.Fatalf("second command %s, want PLACE(BOX)", second)
	}
}

func TestCompile_NoOverlapWithBoxStaging(t *testing.T) {
	k, env := newEnv(t,
		"#$CBKRU#",
		"#b.....#",
		"########",
	)
	k.PutItem(game.Pos{X: 4, Y: 2}, game.NewPan())
	if CanOverlapCook(env.Stations) {
		t.Fatalf("single counter map cannot overlap a cook")
	}
	if p := Compile(order(1, "EGG"), env); p.Strategy != Sequential {
		t.Fatalf("strategy=%s want sequential", p.Strategy)
	}
}
