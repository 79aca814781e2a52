package protocol

import "linecook.ai/internal/game"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`
}

// WELCOME (server -> client). The static layout is sent once; every later
// message carries only volatile state.
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	SessionID       string    `json:"session_id"`
	AgentID         int       `json:"agent_id"`
	Team            []int     `json:"team"`
	Map             MapParams `json:"map"`
	CatalogDigest   string    `json:"catalog_digest,omitempty"`
	MatchTicks      int       `json:"match_ticks,omitempty"`
}

// MapParams carries the grid in the text map format, top row first.
type MapParams struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Rows   []string `json:"rows"`
}

// OBS (server -> client): the kitchen at the start of a tick.
type ObsMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Tick            int               `json:"tick"`
	Money           int               `json:"money"`
	Agents          []game.AgentState `json:"agents"`
	Orders          []game.Order      `json:"orders"`
	Items           []CellItem        `json:"items"`
	Over            bool              `json:"over,omitempty"`
}

type CellItem struct {
	Pos  game.Pos  `json:"pos"`
	Item game.Item `json:"item"`
}

// Action names carried by ACT.
const (
	ActMove           = "MOVE"
	ActBuy            = "BUY"
	ActPlace          = "PLACE"
	ActPickup         = "PICKUP"
	ActChop           = "CHOP"
	ActTakeFromPan    = "TAKE_FROM_PAN"
	ActAddFoodToPlate = "ADD_FOOD_TO_PLATE"
	ActSubmit         = "SUBMIT"
	ActTrash          = "TRASH"
)

// ACT (client -> server): one action request. Move uses DX/DY; every other
// action targets the cell (X, Y); BUY also names the item.
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	Tick            int    `json:"tick"`
	Action          string `json:"action"`
	Bot             int    `json:"bot"`
	DX              int    `json:"dx,omitempty"`
	DY              int    `json:"dy,omitempty"`
	X               int    `json:"x,omitempty"`
	Y               int    `json:"y,omitempty"`
	Item            string `json:"item,omitempty"`
}

// ACT_RESULT (server -> client): the answer to one ACT, with the observation
// after it was applied (or refused).
type ActResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Obs             ObsMsg `json:"obs"`
}

// END_TURN (client -> server)
type EndTurnMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            int    `json:"tick"`
}

// ERROR (server -> client), sent before the server drops a connection.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
