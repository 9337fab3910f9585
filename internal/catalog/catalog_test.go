package catalog

import (
	"reflect"
	"testing"
	"time"
)

func TestDefault_LayerOrder(t *testing.T) {
	c := Default()

	var names []string
	for _, l := range c.Layers {
		names = append(names, l.Name)
		if len(l.Keywords) == 0 {
			t.Errorf("layer %s has no keywords", l.Name)
		}
	}

	want := []string{General, Publishers, Events, Trends}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected layers %v, got %v", want, names)
	}
}

func TestSelect_CatalogOrder(t *testing.T) {
	l := Layer{Name: "events", Suffix: "news", Keywords: []string{"Essen Spiel", "Gen Con", "PAX Unplugged"}}

	got := l.Select(2, 0)
	want := []Query{
		{Keyword: "Essen Spiel", Layer: "events", Text: "Essen Spiel news"},
		{Keyword: "Gen Con", Layer: "events", Text: "Gen Con news"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestSelect_Bounds(t *testing.T) {
	l := Layer{Name: "x", Keywords: []string{"a", "b"}}

	if got := l.Select(0, 0); got != nil {
		t.Errorf("expected nil for k=0, got %v", got)
	}
	if got := l.Select(10, 0); len(got) != 2 {
		t.Errorf("expected all keywords when k exceeds layer size, got %d", len(got))
	}
	if got := l.Select(1, 0); got[0].Text != "a" {
		t.Errorf("no suffix means text equals keyword, got %q", got[0].Text)
	}
}

func TestSelect_SeededIsDeterministic(t *testing.T) {
	l := Default().Layers[1]

	a := l.Select(5, 42)
	b := l.Select(5, 42)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed must give same selection: %v vs %v", a, b)
	}

	seen := map[string]bool{}
	for _, q := range a {
		if seen[q.Keyword] {
			t.Errorf("duplicate keyword %q in selection", q.Keyword)
		}
		seen[q.Keyword] = true
	}

	if len(l.Keywords) != 12 || l.Keywords[0] != "Asmodee" {
		t.Errorf("selection must not reorder the catalog itself")
	}
}

func TestDailySeed(t *testing.T) {
	ts := time.Date(2024, 5, 10, 23, 30, 0, 0, time.FixedZone("JST", 9*3600))
	if got := DailySeed(ts); got != 20240510 {
		t.Errorf("expected UTC date seed 20240510, got %d", got)
	}
}
