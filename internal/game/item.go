package game

import (
	"fmt"
	"sort"
	"strings"
)

type ItemKind string

const (
	KindFood  ItemKind = "Food"
	KindPlate ItemKind = "Plate"
	KindPan   ItemKind = "Pan"
)

// Buy names for non-food shop items.
const (
	ItemPlate = "PLATE"
	ItemPan   = "PAN"
)

// Cook stages.
const (
	StageRaw    = 0
	StageCooked = 1
	StageBurnt  = 2
)

type Food struct {
	Name      string `json:"name"`
	Chopped   bool   `json:"chopped,omitempty"`
	CookStage int    `json:"cook_stage,omitempty"`
}

func (f Food) Burnt() bool { return f.CookStage >= StageBurnt }

// Item is a tagged union: Kind selects which fields are meaningful.
//   - KindFood: Food
//   - KindPlate: Contents, Dirty
//   - KindPan: Food (nil for an empty pan)
type Item struct {
	Kind     ItemKind `json:"kind"`
	Food     *Food    `json:"food,omitempty"`
	Contents []Food   `json:"contents,omitempty"`
	Dirty    bool     `json:"dirty,omitempty"`
}

func NewFood(name string) *Item { return &Item{Kind: KindFood, Food: &Food{Name: name}} }
func NewPlate() *Item           { return &Item{Kind: KindPlate} }
func NewPan() *Item             { return &Item{Kind: KindPan} }

func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	out := *it
	if it.Food != nil {
		f := *it.Food
		out.Food = &f
	}
	if it.Contents != nil {
		out.Contents = append([]Food(nil), it.Contents...)
	}
	return &out
}

func (it *Item) IsFood() bool  { return it != nil && it.Kind == KindFood && it.Food != nil }
func (it *Item) IsPlate() bool { return it != nil && it.Kind == KindPlate }
func (it *Item) IsPan() bool   { return it != nil && it.Kind == KindPan }

// FoodNamed reports whether the item is a loose food with the given name.
func (it *Item) FoodNamed(name string) bool { return it.IsFood() && it.Food.Name == name }

// CleanEmptyPlate plates cannot be destroyed: trashing one is a no-op.
func (it *Item) CleanEmptyPlate() bool {
	return it.IsPlate() && !it.Dirty && len(it.Contents) == 0
}

// PanFood returns the food cooking in a pan, if any.
func (it *Item) PanFood() (Food, bool) {
	if !it.IsPan() || it.Food == nil {
		return Food{}, false
	}
	return *it.Food, true
}

// SameStack reports whether b can be stacked onto a in a box.
func (it *Item) SameStack(b *Item) bool {
	if it == nil || b == nil || it.Kind != b.Kind {
		return false
	}
	switch it.Kind {
	case KindFood:
		return *it.Food == *b.Food
	case KindPlate:
		return it.CleanEmptyPlate() && b.CleanEmptyPlate()
	case KindPan:
		return it.Food == nil && b.Food == nil
	}
	return false
}

// KindOf is "" for a nil item.
func KindOf(it *Item) ItemKind {
	if it == nil {
		return ""
	}
	return it.Kind
}

func (it *Item) String() string {
	if it == nil {
		return "nothing"
	}
	switch it.Kind {
	case KindFood:
		return foodString(*it.Food)
	case KindPlate:
		names := make([]string, 0, len(it.Contents))
		for _, f := range it.Contents {
			names = append(names, foodString(f))
		}
		sort.Strings(names)
		s := "Plate[" + strings.Join(names, ",") + "]"
		if it.Dirty {
			s += "(dirty)"
		}
		return s
	case KindPan:
		if it.Food == nil {
			return "Pan[]"
		}
		return "Pan[" + foodString(*it.Food) + "]"
	}
	return string(it.Kind)
}

func foodString(f Food) string {
	s := f.Name
	if f.Chopped {
		s += "/chopped"
	}
	if f.CookStage > 0 {
		s += fmt.Sprintf("/stage%d", f.CookStage)
	}
	return s
}
