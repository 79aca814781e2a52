package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"linecook.ai/internal/game"
)

// Catalog is the shop price list and the processing each food needs before it
// can go on a plate.
type Catalog struct {
	Foods     map[string]FoodDef
	Names     []string // sorted
	PlateCost int
	PanCost   int
	Digest    string
}

type FoodDef struct {
	Name string `yaml:"name"`
	Cost int    `yaml:"cost"`
	Chop bool   `yaml:"chop"`
	Cook bool   `yaml:"cook"`
}

type file struct {
	PlateCost int       `yaml:"plate_cost"`
	PanCost   int       `yaml:"pan_cost"`
	Foods     []FoodDef `yaml:"foods"`
}

func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return build(f, sha256Hex(raw))
}

func build(f file, digest string) (*Catalog, error) {
	if f.PlateCost < 0 || f.PanCost < 0 {
		return nil, fmt.Errorf("negative plate/pan cost")
	}
	c := &Catalog{
		Foods:     make(map[string]FoodDef, len(f.Foods)),
		PlateCost: f.PlateCost,
		PanCost:   f.PanCost,
		Digest:    digest,
	}
	for _, d := range f.Foods {
		if d.Name == "" {
			return nil, fmt.Errorf("empty food name")
		}
		if d.Name == game.ItemPlate || d.Name == game.ItemPan {
			return nil, fmt.Errorf("food name %q is reserved", d.Name)
		}
		if _, dup := c.Foods[d.Name]; dup {
			return nil, fmt.Errorf("duplicate food %q", d.Name)
		}
		if d.Cost < 0 {
			return nil, fmt.Errorf("%s: negative cost", d.Name)
		}
		c.Foods[d.Name] = d
		c.Names = append(c.Names, d.Name)
	}
	sort.Strings(c.Names)
	return c, nil
}

// Defaults is the built-in price list, identical to configs/foods.yaml.
func Defaults() *Catalog {
	c, err := build(file{
		PlateCost: 2,
		PanCost:   4,
		Foods: []FoodDef{
			{Name: "EGG", Cost: 20, Cook: true},
			{Name: "MEAT", Cost: 80, Chop: true, Cook: true},
			{Name: "NOODLES", Cost: 40},
			{Name: "ONIONS", Cost: 30, Chop: true},
			{Name: "SAUCE", Cost: 10},
		},
	}, "builtin")
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lookup(name string) (FoodDef, bool) {
	d, ok := c.Foods[name]
	return d, ok
}

func (c *Catalog) NeedsChop(name string) bool { return c.Foods[name].Chop }
func (c *Catalog) NeedsCook(name string) bool { return c.Foods[name].Cook }

// BuyCost prices any shop item, including plates and pans.
func (c *Catalog) BuyCost(item string) (int, bool) {
	switch item {
	case game.ItemPlate:
		return c.PlateCost, true
	case game.ItemPan:
		return c.PanCost, true
	}
	d, ok := c.Foods[item]
	return d.Cost, ok
}

// OrderCost is the ingredient cost of an order plus one plate. Unknown food
// names are returned separately and not priced.
func (c *Catalog) OrderCost(required []string) (cost int, unknown []string) {
	cost = c.PlateCost
	for _, name := range required {
		d, ok := c.Foods[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		cost += d.Cost
	}
	return cost, unknown
}

// Ready reports whether f has had exactly the processing its definition asks
// for: chopped iff choppable, cooked to stage 1 iff cookable.
func (c *Catalog) Ready(f game.Food) bool {
	d, ok := c.Foods[f.Name]
	if !ok {
		return false
	}
	if d.Chop != f.Chopped {
		return false
	}
	if d.Cook {
		return f.CookStage == game.StageCooked
	}
	return f.CookStage == game.StageRaw
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
