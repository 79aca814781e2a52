package plan

import (
	"strings"

	"linecook.ai/internal/game"
	"linecook.ai/internal/planner/command"
)

type Strategy string

const (
	Sequential Strategy = "sequential"
	// Parallel starts the sole cooking item first and prepares the rest while
	// it cooks. Best effort: nothing guarantees the cook is collected before
	// it burns.
	Parallel Strategy = "parallel"
)

// Plan is the ordered command sequence fulfilling one order. Commands are
// consumed front to back; the executor is the only caller of Advance.
type Plan struct {
	OrderID  int
	Commands []*command.Command
	Strategy Strategy
	Staging  game.Tile // where the plate waits between additions
	Direct   bool      // food goes from hand onto the staged plate
	Memo     command.Memo

	cursor int
}

// Current is the head command, or nil once the plan is exhausted.
func (p *Plan) Current() *command.Command {
	if p == nil || p.cursor >= len(p.Commands) {
		return nil
	}
	return p.Commands[p.cursor]
}

// Advance moves past the head command and reports whether any remain.
func (p *Plan) Advance() bool {
	if p.cursor < len(p.Commands) {
		p.cursor++
	}
	return p.cursor < len(p.Commands)
}

func (p *Plan) Done() bool     { return p.cursor >= len(p.Commands) }
func (p *Plan) Cursor() int    { return p.cursor }
func (p *Plan) Remaining() int { return len(p.Commands) - p.cursor }

func (p *Plan) Kinds() []command.Kind {
	out := make([]command.Kind, 0, len(p.Commands))
	for _, c := range p.Commands {
		out = append(out, c.Kind)
	}
	return out
}

func (p *Plan) String() string {
	parts := make([]string, 0, len(p.Commands))
	for _, c := range p.Commands {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " > ")
}
