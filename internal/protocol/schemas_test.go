package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"linecook.ai/internal/game"
	"linecook.ai/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON round-trips v through encoding/json so the validator sees the same
// shapes a peer would decode.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func sampleObs() protocol.ObsMsg {
	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            12,
		Money:           138,
		Agents: []game.AgentState{
			{ID: 1, Pos: game.Pos{X: 2, Y: 1}, Holding: &game.Item{Kind: game.KindPlate, Contents: []game.Food{{Name: "ONIONS", Chopped: true}}}},
			{ID: 2, Pos: game.Pos{X: 3, Y: 1}},
		},
		Orders: []game.Order{
			{ID: 1, Required: []string{"ONIONS", "EGG"}, Reward: 60, Penalty: 5, CreatedTick: 0, ExpiresTick: 120, Active: true},
		},
		Items: []protocol.CellItem{
			{Pos: game.Pos{X: 4, Y: 0}, Item: game.Item{Kind: game.KindPan, Food: &game.Food{Name: "EGG", CookStage: 1}}},
		},
	}
}

func TestSchemas_ValidateMessages(t *testing.T) {
	cases := []struct {
		schema string
		msg    any
	}{
		{"hello.schema.json", protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AgentName: "bot1"}},
		{"welcome.schema.json", protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       "5f0c8e8a-2b1d-4a59-9a55-2c7f3c7f9b10",
			AgentID:         1,
			Team:            []int{1, 2},
			Map:             protocol.MapParams{Width: 5, Height: 2, Rows: []string{"#$CU#", "#..K#"}},
			CatalogDigest:   "builtin",
			MatchTicks:      500,
		}},
		{"obs.schema.json", sampleObs()},
		{"act.schema.json", protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Seq: 3, Tick: 12, Action: protocol.ActMove, Bot: 1, DX: -1, DY: 1}},
		{"act.schema.json", protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Seq: 4, Tick: 12, Action: protocol.ActBuy, Bot: 1, X: 1, Y: 2, Item: "PLATE"}},
		{"act_result.schema.json", protocol.ActResultMsg{Type: protocol.TypeActResult, ProtocolVersion: protocol.Version, Seq: 4, OK: false, Code: protocol.ErrStale, Obs: sampleObs()}},
		{"end_turn.schema.json", protocol.EndTurnMsg{Type: protocol.TypeEndTurn, ProtocolVersion: protocol.Version, Tick: 12}},
	}
	schemas := map[string]*jsonschema.Schema{}
	for _, c := range cases {
		s, ok := schemas[c.schema]
		if !ok {
			s = compile(t, c.schema)
			schemas[c.schema] = s
		}
		if err := s.Validate(asJSON(t, c.msg)); err != nil {
			t.Fatalf("%s: %v", c.schema, err)
		}
	}
}

func TestSchemas_RejectMalformed(t *testing.T) {
	act := compile(t, "act.schema.json")
	bad := []string{
		`{"type":"ACT","protocol_version":"1.0","seq":1,"tick":0,"action":"FLY","bot":1}`,
		`{"type":"ACT","protocol_version":"1.0","seq":1,"tick":0,"action":"BUY","bot":1,"x":1,"y":1}`,
		`{"type":"ACT","protocol_version":"1.0","seq":1,"tick":0,"action":"MOVE","bot":1,"dx":2}`,
	}
	for _, raw := range bad {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := act.Validate(v); err == nil {
			t.Fatalf("expected rejection: %s", raw)
		}
	}

	welcome := compile(t, "welcome.schema.json")
	var v any
	_ = json.Unmarshal([]byte(`{"type":"WELCOME","protocol_version":"1.0","session_id":"s","agent_id":1,"team":[1],"map":{"width":2,"height":1,"rows":["#x"]}}`), &v)
	if err := welcome.Validate(v); err == nil || !strings.Contains(err.Error(), "pattern") {
		t.Fatalf("expected pattern rejection, got %v", err)
	}
}

func TestMap_RoundTrip(t *testing.T) {
	l, err := game.ParseMap(strings.NewReader("#$CU#\n#b.K#\n#####"))
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	m := protocol.EncodeMap(l)
	if m.Rows[1] != "#..K#" {
		t.Fatalf("spawn must encode as floor: %q", m.Rows[1])
	}
	back, err := protocol.DecodeMap(m)
	if err != nil {
		t.Fatalf("DecodeMap: %v", err)
	}
	for x := 0; x < l.Width; x++ {
		for y := 0; y < l.Height; y++ {
			p := game.Pos{X: x, Y: y}
			if back.TileAt(p) != l.TileAt(p) {
				t.Fatalf("tile %v: %s want %s", p, back.TileAt(p), l.TileAt(p))
			}
		}
	}
	if _, err := protocol.DecodeMap(protocol.MapParams{Width: 5, Height: 3, Rows: m.Rows[:2]}); err == nil {
		t.Fatalf("expected row count mismatch error")
	}
}
