package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"linecook.ai/internal/game"
	"linecook.ai/internal/protocol"
)

var ErrMatchOver = errors.New("match over")

// Remote is a game.World backed by a kitchen server. It drives exactly one
// agent; reads come from the latest observation, and every action waits for
// its ACT_RESULT so callers can verify effects by re-reading state.
//
// Remote is not safe for concurrent use.
type Remote struct {
	conn    *websocket.Conn
	timeout time.Duration

	welcome protocol.WelcomeMsg
	layout  *game.Layout

	obs   protocol.ObsMsg
	items map[game.Pos]*game.Item
	seq   uint64
	err   error
}

// Dial connects, says HELLO and waits for WELCOME. Call Next before the first
// tick to receive the initial observation.
func Dial(ctx context.Context, url, name string) (*Remote, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	r := &Remote{conn: conn, timeout: 30 * time.Second, obs: protocol.ObsMsg{Tick: -1}}

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AgentName: name}
	if err := r.write(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}
	msg, base, err := r.read()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	if base.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, unexpected(msg, base)
	}
	if err := json.Unmarshal(msg, &r.welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("decode WELCOME: %w", err)
	}
	r.layout, err = protocol.DecodeMap(r.welcome.Map)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return r, nil
}

func (r *Remote) Close() error { return r.conn.Close() }

func (r *Remote) AgentID() int                 { return r.welcome.AgentID }
func (r *Remote) SessionID() string            { return r.welcome.SessionID }
func (r *Remote) Welcome() protocol.WelcomeMsg { return r.welcome }
func (r *Remote) Over() bool                   { return r.obs.Over }

// Err is the first transport error seen by an action; actions after it report
// false without touching the connection.
func (r *Remote) Err() error { return r.err }

// Next blocks until the observation for a tick later than the current one
// arrives. It returns ErrMatchOver once the server reports the match ended.
func (r *Remote) Next(ctx context.Context) error {
	if r.err != nil {
		return r.err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, base, err := r.read()
		if err != nil {
			r.err = err
			return err
		}
		if base.Type != protocol.TypeObs {
			if base.Type == protocol.TypeError {
				return unexpected(msg, base)
			}
			continue
		}
		var obs protocol.ObsMsg
		if err := json.Unmarshal(msg, &obs); err != nil {
			return fmt.Errorf("decode OBS: %w", err)
		}
		if obs.Tick <= r.obs.Tick {
			continue
		}
		r.setObs(obs)
		if obs.Over {
			return ErrMatchOver
		}
		return nil
	}
}

// EndTurn tells the server this agent is done with the current tick.
func (r *Remote) EndTurn() error {
	if r.err != nil {
		return r.err
	}
	if err := r.write(protocol.EndTurnMsg{Type: protocol.TypeEndTurn, ProtocolVersion: protocol.Version, Tick: r.obs.Tick}); err != nil {
		r.err = err
		return err
	}
	return nil
}

func (r *Remote) setObs(obs protocol.ObsMsg) {
	r.obs = obs
	r.items = make(map[game.Pos]*game.Item, len(obs.Items))
	for i := range obs.Items {
		it := obs.Items[i].Item
		r.items[obs.Items[i].Pos] = &it
	}
}

func (r *Remote) Size() (int, int)           { return r.layout.Size() }
func (r *Remote) TileAt(p game.Pos) game.Tile { return r.layout.TileAt(p) }
func (r *Remote) Walkable(p game.Pos) bool    { return r.layout.Walkable(p) }

func (r *Remote) Tick() int  { return r.obs.Tick }
func (r *Remote) Money() int { return r.obs.Money }

func (r *Remote) ItemAt(p game.Pos) *game.Item { return r.items[p].Clone() }

func (r *Remote) TeamAgents() []int { return append([]int(nil), r.welcome.Team...) }

func (r *Remote) Agent(id int) (game.AgentState, bool) {
	for _, a := range r.obs.Agents {
		if a.ID == id {
			a.Holding = a.Holding.Clone()
			return a, true
		}
	}
	return game.AgentState{}, false
}

func (r *Remote) Orders() []game.Order {
	out := make([]game.Order, 0, len(r.obs.Orders))
	for _, o := range r.obs.Orders {
		o.Required = append([]string(nil), o.Required...)
		out = append(out, o)
	}
	return out
}

// Actions. The agent argument must be this connection's agent.

func (r *Remote) Move(agent, dx, dy int) bool {
	return r.act(agent, protocol.ActMsg{Action: protocol.ActMove, DX: dx, DY: dy})
}

func (r *Remote) Buy(agent int, item string, at game.Pos) bool {
	return r.act(agent, protocol.ActMsg{Action: protocol.ActBuy, X: at.X, Y: at.Y, Item: item})
}

func (r *Remote) Place(agent int, at game.Pos) bool {
	return r.act(agent, protocol.ActMsg{Action: protocol.ActPlace, X: at.X, Y: at.Y})
}

func (r *Remote) Pickup(agent int, at game.Pos) bool {
	return r.act(agent, protocol.ActMsg{Action: protocol.ActPickup, X: at.X, Y: at.Y})
}

func (r *Remote) Chop(agent int, at game.Pos) bool {
	return r.act(agent, protocol.ActMsg{Action: protocol.ActChop, X: at.X, Y: at.Y})
}

func (r *Remote) TakeFromPan(agent int, at game.Pos) bool {
	return r.act(agent, protocol.ActMsg{Action: protocol.ActTakeFromPan, X: at.X, Y: at.Y})
}

func (r *Remote) AddFoodToPlate(agent int, at game.Pos) bool {
	return r.act(agent, protocol.ActMsg{Action: protocol.ActAddFoodToPlate, X: at.X, Y: at.Y})
}

func (r *Remote) Submit(agent int, at game.Pos) bool {
	return r.act(agent, protocol.ActMsg{Action: protocol.ActSubmit, X: at.X, Y: at.Y})
}

func (r *Remote) Trash(agent int, at game.Pos) bool {
	return r.act(agent, protocol.ActMsg{Action: protocol.ActTrash, X: at.X, Y: at.Y})
}

func (r *Remote) act(agent int, a protocol.ActMsg) bool {
	if r.err != nil || agent != r.welcome.AgentID {
		return false
	}
	r.seq++
	a.Type = protocol.TypeAct
	a.ProtocolVersion = protocol.Version
	a.Seq = r.seq
	a.Tick = r.obs.Tick
	a.Bot = agent
	if err := r.write(a); err != nil {
		r.err = err
		return false
	}
	for {
		msg, base, err := r.read()
		if err != nil {
			r.err = err
			return false
		}
		if base.Type != protocol.TypeActResult {
			continue
		}
		var res protocol.ActResultMsg
		if err := json.Unmarshal(msg, &res); err != nil {
			r.err = fmt.Errorf("decode ACT_RESULT: %w", err)
			return false
		}
		if res.Seq != a.Seq {
			continue
		}
		r.setObs(res.Obs)
		return res.OK
	}
}

func (r *Remote) write(v any) error {
	_ = r.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return r.conn.WriteJSON(v)
}

func (r *Remote) read() ([]byte, protocol.BaseMessage, error) {
	_ = r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	_, msg, err := r.conn.ReadMessage()
	if err != nil {
		return nil, protocol.BaseMessage{}, err
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return nil, protocol.BaseMessage{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, base, nil
}

func unexpected(msg []byte, base protocol.BaseMessage) error {
	if base.Type == protocol.TypeError {
		var e protocol.ErrorMsg
		if json.Unmarshal(msg, &e) == nil {
			return fmt.Errorf("server error %s: %s", e.Code, e.Message)
		}
	}
	return fmt.Errorf("unexpected %s message", base.Type)
}
