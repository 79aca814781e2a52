package sim

import (
	"linecook.ai/internal/game"
	"linecook.ai/internal/game/catalog"
)

type KitchenConfig struct {
	Layout  *game.Layout
	Catalog *catalog.Catalog

	StartMoney int
	// CookTicks is the number of ticks per cook stage: food is cooked after
	// CookTicks and burnt after twice that.
	CookTicks int
	// MatchTicks ends the match; Advance is a no-op afterwards. 0 means no limit.
	MatchTicks int
}

func (c KitchenConfig) withDefaults() KitchenConfig {
	if c.Catalog == nil {
		c.Catalog = catalog.Defaults()
	}
	if c.StartMoney == 0 {
		c.StartMoney = 150
	}
	if c.CookTicks <= 0 {
		c.CookTicks = 20
	}
	return c
}
