package fruit

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type is the category a fruit belongs to. Matching always pairs opposite types.
type Type string

const (
	TypeApple  Type = "apple"
	TypeOrange Type = "orange"
)

// Opposite returns the category a fruit of type t is matched against.
func (t Type) Opposite() Type {
	switch t {
	case TypeApple:
		return TypeOrange
	case TypeOrange:
		return TypeApple
	default:
		return ""
	}
}

func (t Type) Valid() bool {
	return t == TypeApple || t == TypeOrange
}

// ShineFactor is the only enumerated attribute.
type ShineFactor string

const (
	ShineDull       ShineFactor = "dull"
	ShineNeutral    ShineFactor = "neutral"
	ShineShiny      ShineFactor = "shiny"
	ShineExtraShiny ShineFactor = "extraShiny"
)

// ShineFactors lists every known shine factor in ascending order.
var ShineFactors = []ShineFactor{ShineDull, ShineNeutral, ShineShiny, ShineExtraShiny}

func (s ShineFactor) Valid() bool {
	for _, known := range ShineFactors {
		if s == known {
			return true
		}
	}
	return false
}

// Fruit is a matchable entity. ID is assigned by the store and is opaque to matching.
type Fruit struct {
	ID          string      `json:"id,omitempty" yaml:"id,omitempty"`
	Type        Type        `json:"type" yaml:"type"`
	Attributes  Attributes  `json:"attributes" yaml:"attributes"`
	Preferences Preferences `json:"preferences" yaml:"preferences"`
}

// Attributes are self-reported observations. A nil field means the value is unknown,
// which is not the same as false or zero.
type Attributes struct {
	Size         *float64     `json:"size,omitempty" yaml:"size,omitempty"`
	Weight       *float64     `json:"weight,omitempty" yaml:"weight,omitempty"`
	HasStem      *bool        `json:"hasStem,omitempty" yaml:"hasStem,omitempty"`
	HasLeaf      *bool        `json:"hasLeaf,omitempty" yaml:"hasLeaf,omitempty"`
	HasWorm      *bool        `json:"hasWorm,omitempty" yaml:"hasWorm,omitempty"`
	ShineFactor  *ShineFactor `json:"shineFactor,omitempty" yaml:"shineFactor,omitempty"`
	HasChemicals *bool        `json:"hasChemicals,omitempty" yaml:"hasChemicals,omitempty"`
}

// Preferences describe what a fruit wants from a partner. A nil field means no preference.
type Preferences struct {
	Size         *Range   `json:"size,omitempty" yaml:"size,omitempty"`
	Weight       *Range   `json:"weight,omitempty" yaml:"weight,omitempty"`
	HasStem      *bool    `json:"hasStem,omitempty" yaml:"hasStem,omitempty"`
	HasLeaf      *bool    `json:"hasLeaf,omitempty" yaml:"hasLeaf,omitempty"`
	HasWorm      *bool    `json:"hasWorm,omitempty" yaml:"hasWorm,omitempty"`
	ShineFactor  ShineSet `json:"shineFactor,omitempty" yaml:"shineFactor,omitempty"`
	HasChemicals *bool    `json:"hasChemicals,omitempty" yaml:"hasChemicals,omitempty"`
}

// Range is an optional numeric window. Either bound may be missing.
type Range struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Active reports whether at least one bound is set.
func (r *Range) Active() bool {
	return r != nil && (r.Min != nil || r.Max != nil)
}

// ShineSet is the set of acceptable shine factors. It decodes from either a
// single string or a list of strings. An empty set means no preference.
type ShineSet []ShineFactor

func (s ShineSet) Contains(v ShineFactor) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

func (s *ShineSet) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = nil
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []ShineFactor
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}

	var single ShineFactor
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*s = ShineSet{single}
	return nil
}

func (s *ShineSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*s = nil
			return nil
		}
		*s = ShineSet{ShineFactor(node.Value)}
		return nil
	case yaml.SequenceNode:
		var list []ShineFactor
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("shineFactor: expected a string or a list, got yaml kind %d", node.Kind)
	}
}

// Float and Bool build optional values for literals.
func Float(v float64) *float64 { return &v }

func Bool(v bool) *bool { return &v }

func Shine(v ShineFactor) *ShineFactor { return &v }

// Validate rejects records the matching engine cannot score. Matching itself
// assumes validated input.
func (f *Fruit) Validate() error {
	if f == nil {
		return errors.New("fruit is required")
	}
	if !f.Type.Valid() {
		return fmt.Errorf("unknown fruit type %q", f.Type)
	}

	var errs []error
	errs = append(errs,
		validateNumber("attributes.size", f.Attributes.Size),
		validateNumber("attributes.weight", f.Attributes.Weight),
		validateRange("preferences.size", f.Preferences.Size),
		validateRange("preferences.weight", f.Preferences.Weight),
	)

	if f.Attributes.ShineFactor != nil && !f.Attributes.ShineFactor.Valid() {
		errs = append(errs, fmt.Errorf("attributes.shineFactor: unknown value %q", *f.Attributes.ShineFactor))
	}
	for _, shine := range f.Preferences.ShineFactor {
		if !shine.Valid() {
			errs = append(errs, fmt.Errorf("preferences.shineFactor: unknown value %q", shine))
		}
	}

	return errors.Join(errs...)
}

func validateNumber(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fmt.Errorf("%s: must be a finite number", name)
	}
	return nil
}

func validateRange(name string, r *Range) error {
	if r == nil {
		return nil
	}
	if err := validateNumber(name+".min", r.Min); err != nil {
		return err
	}
	if err := validateNumber(name+".max", r.Max); err != nil {
		return err
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("%s: min %.2f is greater than max %.2f", name, *r.Min, *r.Max)
	}
	return nil
}
