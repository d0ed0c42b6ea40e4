package fruit

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	IDField   = "ID"
	TypeField = "Type"
)

// Fruits is an ordered pool of fruits. Order is significant: ranking ties keep it.
type Fruits struct {
	Items []*Fruit `json:"items"`
}

func (f *Fruits) Len() int {
	return len(f.Items)
}

func (f *Fruits) IDs() []string {
	ids := make([]string, 0, len(f.Items))
	for _, item := range f.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (f *Fruit) GetStringField(name string) string {
	switch name {
	case IDField:
		return f.ID
	case TypeField:
		return string(f.Type)
	default:
		return ""
	}
}

// Exclude drops fruits whose field matches any of targets and returns the dropped ids.
// The relative order of the remaining fruits is kept.
func (f *Fruits) Exclude(name string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	var excluded []string
	f.Items = slices.DeleteFunc(f.Items, func(item *Fruit) bool {
		if slices.Contains(targets, item.GetStringField(name)) {
			excluded = append(excluded, item.ID)
			return true
		}
		return false
	})
	return excluded
}

// KeepOnly drops fruits whose field differs from value and returns the dropped ids.
func (f *Fruits) KeepOnly(name, value string) []string {
	var excluded []string
	f.Items = slices.DeleteFunc(f.Items, func(item *Fruit) bool {
		if item.GetStringField(name) != value {
			excluded = append(excluded, item.ID)
			return true
		}
		return false
	})
	return excluded
}

// CountByType reports how many fruits of each type the pool holds.
func (f *Fruits) CountByType() map[Type]int {
	report := make(map[Type]int)
	for _, item := range f.Items {
		report[item.Type]++
	}
	return report
}

func (f *Fruits) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "fruits_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// LoadFile reads fruits from a YAML or JSON file. The document is either a
// single fruit, a list of fruits or an object with an "items" list.
func LoadFile(path string) (*Fruits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes fruits from YAML or JSON bytes.
func Parse(data []byte) (*Fruits, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse fruits: %w", err)
	}
	if len(node.Content) == 0 {
		return &Fruits{}, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var items []*Fruit
		if err := root.Decode(&items); err != nil {
			return nil, fmt.Errorf("decode fruit list: %w", err)
		}
		return &Fruits{Items: items}, nil
	case yaml.MappingNode:
		var wrapper struct {
			Items []*Fruit `yaml:"items"`
		}
		if err := root.Decode(&wrapper); err == nil && len(wrapper.Items) > 0 {
			return &Fruits{Items: wrapper.Items}, nil
		}

		var single Fruit
		if err := root.Decode(&single); err != nil {
			return nil, fmt.Errorf("decode fruit: %w", err)
		}
		return &Fruits{Items: []*Fruit{&single}}, nil
	default:
		return nil, fmt.Errorf("parse fruits: unexpected document kind %d", root.Kind)
	}
}
