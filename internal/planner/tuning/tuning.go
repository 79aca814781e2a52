package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	MatchTicks     int `yaml:"match_ticks"`
	LatePhaseTicks int `yaml:"late_phase_ticks"`

	Estimate Estimate `yaml:"estimate"`

	SafetyMultiplier     float64 `yaml:"safety_multiplier"`
	LateSafetyMultiplier float64 `yaml:"late_safety_multiplier"`

	StuckTicks       int `yaml:"stuck_ticks"`
	CleaningMaxTicks int `yaml:"cleaning_max_ticks"`
	MaxRetries       int `yaml:"max_retries"`

	Ceilings Ceilings `yaml:"command_ceilings"`
}

// Estimate is the per-step tick cost model used to judge feasibility.
type Estimate struct {
	BaseTicks           int `yaml:"base_ticks"`
	PerIngredientTicks  int `yaml:"per_ingredient_ticks"`
	PerChopTicks        int `yaml:"per_chop_ticks"`
	PerCookTicks        int `yaml:"per_cook_ticks"`
	OverlappedCookTicks int `yaml:"overlapped_cook_ticks"`
	MinTicksCooking     int `yaml:"min_ticks_cooking"`
	MinTicksPlain       int `yaml:"min_ticks_plain"`
}

// Ceilings bound how many ticks one command may run before it is stuck.
type Ceilings struct {
	Default    int `yaml:"default"`
	Buy        int `yaml:"buy"`
	Place      int `yaml:"place"`
	Chop       int `yaml:"chop"`
	StartCook  int `yaml:"start_cook"`
	FinishCook int `yaml:"finish_cook"`
	Pickup     int `yaml:"pickup"`
	AddToPlate int `yaml:"add_to_plate"`
	Submit     int `yaml:"submit"`
	Dispose    int `yaml:"dispose"`
}

func Defaults() Tuning {
	return Tuning{
		MatchTicks:     500,
		LatePhaseTicks: 200,
		Estimate: Estimate{
			BaseTicks:           25,
			PerIngredientTicks:  10,
			PerChopTicks:        7,
			PerCookTicks:        28,
			OverlappedCookTicks: 18,
			MinTicksCooking:     50,
			MinTicksPlain:       10,
		},
		SafetyMultiplier:     1.15,
		LateSafetyMultiplier: 1.30,
		StuckTicks:           20,
		CleaningMaxTicks:     20,
		MaxRetries:           5,
		Ceilings: Ceilings{
			Default:    100,
			Buy:        30,
			Place:      40,
			Chop:       40,
			StartCook:  40,
			FinishCook: 150,
			Pickup:     40,
			AddToPlate: 50,
			Submit:     60,
			Dispose:    40,
		},
	}
}

// Load reads a tuning file. Fields missing from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.SafetyMultiplier < 1 || t.LateSafetyMultiplier < 1 {
		return fmt.Errorf("safety multipliers must be >= 1")
	}
	if t.MatchTicks <= 0 {
		return fmt.Errorf("match_ticks must be positive")
	}
	if t.LatePhaseTicks < 0 || t.LatePhaseTicks > t.MatchTicks {
		return fmt.Errorf("late_phase_ticks must be within [0, match_ticks]")
	}
	if t.StuckTicks <= 0 || t.CleaningMaxTicks <= 0 || t.MaxRetries <= 0 {
		return fmt.Errorf("stuck_ticks, cleaning_max_ticks and max_retries must be positive")
	}
	c := t.Ceilings
	for _, v := range []int{c.Default, c.Buy, c.Place, c.Chop, c.StartCook, c.FinishCook, c.Pickup, c.AddToPlate, c.Submit, c.Dispose} {
		if v <= 0 {
			return fmt.Errorf("command ceilings must be positive")
		}
	}
	return nil
}

// Multiplier is the safety multiplier in effect at tick now.
func (t Tuning) Multiplier(now int) float64 {
	if t.LatePhase(now) {
		return t.LateSafetyMultiplier
	}
	return t.SafetyMultiplier
}

// LatePhase reports whether fewer than LatePhaseTicks remain in the match.
func (t Tuning) LatePhase(now int) bool {
	return t.MatchTicks-now < t.LatePhaseTicks
}
