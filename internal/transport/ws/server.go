package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"linecook.ai/internal/game"
	"linecook.ai/internal/protocol"
	"linecook.ai/internal/sim"
)

type ServerConfig struct {
	CatalogDigest string
	MatchTicks    int
	Logger        *log.Logger
}

// Server hosts one kitchen for remote bots, one connection per team agent.
// The kitchen advances once every connected agent has sent END_TURN.
type Server struct {
	kitchen *sim.Kitchen
	cfg     ServerConfig
	log     *log.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[int]*session // by agent id
	ended    map[int]bool
}

type session struct {
	id    string
	agent int
	name  string
	out   chan []byte
	done  chan struct{}
	once  sync.Once
}

func (s *session) close() { s.once.Do(func() { close(s.done) }) }

func NewServer(k *sim.Kitchen, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}
	return &Server{
		kitchen: k,
		cfg:     cfg,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[int]*session{},
		ended:    map[int]bool{},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		defer s.leave(sess)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-sess.done:
					_ = conn.Close()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.send(sess, protocol.NewError(protocol.ErrProtoBadRequest, "bad json"))
				continue
			}
			switch base.Type {
			case protocol.TypeAct:
				var act protocol.ActMsg
				if err := json.Unmarshal(msg, &act); err != nil {
					s.send(sess, protocol.NewError(protocol.ErrProtoBadRequest, "bad ACT"))
					continue
				}
				s.send(sess, s.apply(sess, act))
			case protocol.TypeEndTurn:
				var et protocol.EndTurnMsg
				if err := json.Unmarshal(msg, &et); err != nil {
					s.send(sess, protocol.NewError(protocol.ErrProtoBadRequest, "bad END_TURN"))
					continue
				}
				s.endTurn(sess, et)
			default:
				s.send(sess, protocol.NewError(protocol.ErrProtoBadRequest, "unexpected "+base.Type))
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	reject := func(code, text string) *session {
		_ = writeJSON(conn, protocol.NewError(code, text))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, text), time.Now().Add(time.Second))
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		return reject(protocol.ErrProtoBadRequest, "expected HELLO")
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return reject(protocol.ErrProtoBadRequest, "bad HELLO")
	}
	if hello.ProtocolVersion != protocol.Version {
		return reject(protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if hello.AgentName == "" {
		hello.AgentName = "bot"
	}

	s.mu.Lock()
	agent := 0
	team := s.kitchen.TeamAgents()
	for _, id := range team {
		if _, taken := s.sessions[id]; !taken {
			agent = id
			break
		}
	}
	if agent == 0 {
		s.mu.Unlock()
		return reject(protocol.ErrFull, "no free agent")
	}
	sess := &session{
		id:    uuid.NewString(),
		agent: agent,
		name:  hello.AgentName,
		out:   make(chan []byte, 64),
		done:  make(chan struct{}),
	}
	s.sessions[agent] = sess
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		AgentID:         agent,
		Team:            team,
		Map:             protocol.EncodeMap(s.kitchen),
		CatalogDigest:   s.cfg.CatalogDigest,
		MatchTicks:      s.cfg.MatchTicks,
	}
	obs := Observe(s.kitchen)
	s.mu.Unlock()

	s.log.Printf("join session=%s agent=%d name=%s tick=%d", sess.id, agent, sess.name, obs.Tick)

	// Welcome and the current observation go out before the writer starts.
	if err := writeJSON(conn, welcome); err != nil {
		s.leave(sess)
		return nil
	}
	if err := writeJSON(conn, obs); err != nil {
		s.leave(sess)
		return nil
	}
	return sess
}

// Sessions is the number of connected agents.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) leave(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[sess.agent]; !ok || cur != sess {
		return
	}
	delete(s.sessions, sess.agent)
	delete(s.ended, sess.agent)
	sess.close()
	s.log.Printf("leave session=%s agent=%d tick=%d", sess.id, sess.agent, s.kitchen.Tick())
	s.maybeAdvanceLocked()
}

// apply runs one ACT against the kitchen and answers with the observation
// after it. Refused actions still answer ok=false with the unchanged state.
func (s *Server) apply(sess *session, a protocol.ActMsg) protocol.ActResultMsg {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := protocol.ActResultMsg{Type: protocol.TypeActResult, ProtocolVersion: protocol.Version, Seq: a.Seq}
	k := s.kitchen
	switch {
	case a.ProtocolVersion != protocol.Version:
		res.Code = protocol.ErrProtoBadRequest
	case a.Bot != sess.agent:
		res.Code = protocol.ErrBadRequest
	case a.Tick != k.Tick() || s.ended[sess.agent] || k.Over():
		res.Code = protocol.ErrStale
	default:
		ok, known := dispatch(k, sess.agent, a)
		if !known {
			res.Code = protocol.ErrBadRequest
		}
		res.OK = ok
	}
	res.Obs = Observe(k)
	return res
}

func dispatch(k *sim.Kitchen, agent int, a protocol.ActMsg) (ok, known bool) {
	at := game.Pos{X: a.X, Y: a.Y}
	switch a.Action {
	case protocol.ActMove:
		return k.Move(agent, a.DX, a.DY), true
	case protocol.ActBuy:
		return k.Buy(agent, a.Item, at), true
	case protocol.ActPlace:
		return k.Place(agent, at), true
	case protocol.ActPickup:
		return k.Pickup(agent, at), true
	case protocol.ActChop:
		return k.Chop(agent, at), true
	case protocol.ActTakeFromPan:
		return k.TakeFromPan(agent, at), true
	case protocol.ActAddFoodToPlate:
		return k.AddFoodToPlate(agent, at), true
	case protocol.ActSubmit:
		return k.Submit(agent, at), true
	case protocol.ActTrash:
		return k.Trash(agent, at), true
	}
	return false, false
}

func (s *Server) endTurn(sess *session, et protocol.EndTurnMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if et.Tick != s.kitchen.Tick() {
		s.sendLocked(sess, protocol.NewError(protocol.ErrStale, "END_TURN for a past tick"))
		return
	}
	s.ended[sess.agent] = true
	s.maybeAdvanceLocked()
}

// maybeAdvanceLocked advances the kitchen when every connected agent has
// ended its turn, then broadcasts the new observation.
func (s *Server) maybeAdvanceLocked() {
	if len(s.sessions) == 0 || s.kitchen.Over() {
		return
	}
	for id := range s.sessions {
		if !s.ended[id] {
			return
		}
	}
	s.kitchen.Advance()
	s.ended = map[int]bool{}
	obs := Observe(s.kitchen)
	for _, sess := range s.sessions {
		s.sendLocked(sess, obs)
	}
	if obs.Over {
		st := s.kitchen.Stats()
		s.log.Printf("match over tick=%d money=%d fulfilled=%d expired=%d", obs.Tick, obs.Money, len(st.Fulfilled), len(st.Expired))
	}
}

func (s *Server) send(sess *session, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked(sess, v)
}

// sendLocked queues v for the session writer. A client that stops reading is
// disconnected rather than allowed to stall the kitchen.
func (s *Server) sendLocked(sess *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case sess.out <- b:
	case <-sess.done:
	default:
		s.log.Printf("session=%s agent=%d outbox full; dropping connection", sess.id, sess.agent)
		sess.close()
	}
}

// Observe snapshots the volatile kitchen state. Items are sorted by cell so
// observations are deterministic.
func Observe(k *sim.Kitchen) protocol.ObsMsg {
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            k.Tick(),
		Money:           k.Money(),
		Agents:          []game.AgentState{},
		Orders:          k.Orders(),
		Over:            k.Over(),
	}
	for _, id := range k.TeamAgents() {
		if st, ok := k.Agent(id); ok {
			obs.Agents = append(obs.Agents, st)
		}
	}
	items := k.Items()
	obs.Items = make([]protocol.CellItem, 0, len(items))
	for p, it := range items {
		obs.Items = append(obs.Items, protocol.CellItem{Pos: p, Item: *it})
	}
	sort.Slice(obs.Items, func(i, j int) bool {
		a, b := obs.Items[i].Pos, obs.Items[j].Pos
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return obs
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
