package fruit

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestShineSetDecodesStringOrList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect ShineSet
	}{
		{name: "single json", input: `{"shineFactor": "shiny"}`, expect: ShineSet{ShineShiny}},
		{name: "list json", input: `{"shineFactor": ["shiny", "extraShiny"]}`, expect: ShineSet{ShineShiny, ShineExtraShiny}},
		{name: "null json", input: `{"shineFactor": null}`, expect: nil},
		{name: "missing", input: `{}`, expect: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var prefs Preferences
			if err := json.Unmarshal([]byte(tt.input), &prefs); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(prefs.ShineFactor) != len(tt.expect) {
				t.Fatalf("expected %v, got %v", tt.expect, prefs.ShineFactor)
			}
			for i := range tt.expect {
				if prefs.ShineFactor[i] != tt.expect[i] {
					t.Fatalf("expected %v, got %v", tt.expect, prefs.ShineFactor)
				}
			}
		})
	}
}

func TestParseYAMLAndJSONDocuments(t *testing.T) {
	t.Parallel()

	yamlDoc := `
- type: apple
  attributes:
    size: 8
    hasWorm: false
    shineFactor: shiny
  preferences:
    size: {min: 7, max: 10}
    shineFactor: [shiny, extraShiny]
- type: orange
  attributes:
    weight: 195
  preferences:
    hasWorm: false
    shineFactor: neutral
`
	fruits, err := Parse([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fruits.Len() != 2 {
		t.Fatalf("expected 2 fruits, got %d", fruits.Len())
	}

	apple := fruits.Items[0]
	if apple.Type != TypeApple || apple.Attributes.Size == nil || *apple.Attributes.Size != 8 {
		t.Fatalf("unexpected apple: %+v", apple)
	}
	if apple.Attributes.HasWorm == nil || *apple.Attributes.HasWorm {
		t.Fatalf("expected hasWorm=false to be known")
	}
	if apple.Attributes.HasStem != nil {
		t.Fatalf("expected hasStem to stay unknown")
	}
	if !apple.Preferences.Size.Active() || len(apple.Preferences.ShineFactor) != 2 {
		t.Fatalf("unexpected apple preferences: %+v", apple.Preferences)
	}

	orange := fruits.Items[1]
	if len(orange.Preferences.ShineFactor) != 1 || orange.Preferences.ShineFactor[0] != ShineNeutral {
		t.Fatalf("expected single shine preference, got %v", orange.Preferences.ShineFactor)
	}

	jsonDoc := `{"items": [{"type": "orange", "attributes": {"size": 5}, "preferences": {}}]}`
	fruits, err = Parse([]byte(jsonDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fruits.Len() != 1 || fruits.Items[0].Type != TypeOrange {
		t.Fatalf("unexpected fruits from wrapper: %+v", fruits.Items)
	}

	single := `{"type": "apple", "attributes": {"hasLeaf": true}, "preferences": {"weight": {"max": 200}}}`
	fruits, err = Parse([]byte(single))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fruits.Len() != 1 || fruits.Items[0].Preferences.Weight.Min != nil {
		t.Fatalf("unexpected single fruit: %+v", fruits.Items)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := &Fruit{
		Type:       TypeApple,
		Attributes: Attributes{Size: Float(3), ShineFactor: Shine(ShineDull)},
		Preferences: Preferences{
			Weight:      &Range{Min: Float(100), Max: Float(200)},
			ShineFactor: ShineSet{ShineShiny},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid fruit, got %v", err)
	}

	invalid := &Fruit{
		Type:       "banana",
		Attributes: Attributes{},
	}
	if err := invalid.Validate(); err == nil {
		t.Fatalf("expected unknown type to be rejected")
	}

	inverted := &Fruit{
		Type:        TypeOrange,
		Attributes:  Attributes{ShineFactor: Shine("glossy")},
		Preferences: Preferences{Size: &Range{Min: Float(9), Max: Float(2)}},
	}
	err := inverted.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	if !strings.Contains(err.Error(), "preferences.size") || !strings.Contains(err.Error(), "glossy") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestExcludeKeepsOrder(t *testing.T) {
	t.Parallel()

	fruits := &Fruits{Items: []*Fruit{
		{ID: "a", Type: TypeApple},
		{ID: "b", Type: TypeOrange},
		{ID: "c", Type: TypeOrange},
		{ID: "d", Type: TypeApple},
		{ID: "e", Type: TypeOrange},
	}}

	excluded := fruits.Exclude(IDField, []string{"c", "zzz"})
	if len(excluded) != 1 || excluded[0] != "c" {
		t.Fatalf("unexpected excluded ids: %v", excluded)
	}

	dropped := fruits.KeepOnly(TypeField, string(TypeOrange))
	if strings.Join(dropped, ",") != "a,d" {
		t.Fatalf("unexpected dropped ids: %v", dropped)
	}

	if got := strings.Join(fruits.IDs(), ","); got != "b,e" {
		t.Fatalf("expected order b,e, got %s", got)
	}
}

func TestExcludeFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exclude.json")

	empty, err := GetExcludedFruitsFromFile(path)
	if err != nil {
		t.Fatalf("missing file should read as empty: %v", err)
	}
	if len(empty.Items) != 0 {
		t.Fatalf("expected empty list, got %d", len(empty.Items))
	}

	first := (&Fruits{Items: []*Fruit{{ID: "o1", Type: TypeOrange}}}).ToExcluded(ExcludeActorUser, "not my type")
	if err := AppendToExcludeFile(path, first); err != nil {
		t.Fatalf("append: %v", err)
	}

	second := (&Fruits{Items: []*Fruit{{ID: "o1", Type: TypeOrange}, {ID: "o2", Type: TypeOrange}}}).ToExcluded("api", "")
	if err := AppendToExcludeFile(path, second); err != nil {
		t.Fatalf("append: %v", err)
	}

	excluded, err := GetExcludedFruitsFromFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.Join(excluded.FruitIDs(), ","); got != "o1,o2" {
		t.Fatalf("expected deduplicated ids o1,o2, got %s", got)
	}
	if excluded.Items[0].Reason != "not my type" {
		t.Fatalf("expected first reason to be kept, got %q", excluded.Items[0].Reason)
	}
}
