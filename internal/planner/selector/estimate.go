package selector

import (
	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/planner/tuning"
)

// Shape counts the processing an order needs.
type Shape struct {
	Items   int
	Chops   int
	Cooks   int
	Unknown []string
}

func ShapeOf(required []string, cat *catalog.Catalog) Shape {
	var s Shape
	for _, name := range required {
		d, ok := cat.Lookup(name)
		if !ok {
			s.Unknown = append(s.Unknown, name)
			continue
		}
		s.Items++
		if d.Chop {
			s.Chops++
		}
		if d.Cook {
			s.Cooks++
		}
	}
	return s
}

// Overlapped reports whether the single cook can run while the other item is
// prepared.
func (s Shape) Overlapped() bool {
	return s.Cooks == 1 && s.Items-s.Cooks <= 1
}

// Estimate is the tick cost model: a fixed overhead, a cost per ingredient and
// per chop, and the cooking time, shortened when the cook overlaps other work.
// canOverlap says whether the layout lets the plan overlap at all; see
// plan.CanOverlapCook.
func Estimate(s Shape, canOverlap bool, est tuning.Estimate) int {
	ticks := est.BaseTicks + est.PerIngredientTicks*s.Items + est.PerChopTicks*s.Chops
	switch {
	case s.Cooks == 0:
	case canOverlap && s.Overlapped():
		ticks += est.OverlappedCookTicks
	default:
		ticks += est.PerCookTicks * s.Cooks
	}
	return ticks
}

// MinRemaining is the floor below which an order is not worth starting.
func MinRemaining(s Shape, est tuning.Estimate) int {
	if s.Cooks > 0 {
		return est.MinTicksCooking
	}
	return est.MinTicksPlain
}
