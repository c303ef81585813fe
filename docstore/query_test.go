package docstore

import (
	"testing"
	"time"
)

func snap(id string, doc Document) Snapshot {
	return Snapshot{ID: id, Exists: true, Data: doc}
}

func TestFilterMatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter Filter
		doc    Document
		want   bool
	}{
		{"equal string", Filter{"name", OpEqual, "widget"}, Document{"name": "widget"}, true},
		{"equal mismatch", Filter{"name", OpEqual, "widget"}, Document{"name": "gadget"}, false},
		{"equal int vs float", Filter{"qty", OpEqual, 3}, Document{"qty": 3.0}, true},
		{"not equal", Filter{"name", OpNotEqual, "widget"}, Document{"name": "gadget"}, true},
		{"not equal missing field", Filter{"name", OpNotEqual, "widget"}, Document{}, false},
		{"less", Filter{"price", OpLess, 10.0}, Document{"price": 5}, true},
		{"less equal boundary", Filter{"price", OpLessOrEqual, 5.0}, Document{"price": 5}, true},
		{"greater", Filter{"price", OpGreater, 10.0}, Document{"price": 5}, false},
		{"greater equal", Filter{"price", OpGreaterOrEqual, 5}, Document{"price": 7.5}, true},
		{"ordered mismatch kinds", Filter{"price", OpLess, "10"}, Document{"price": 5}, false},
		{"time greater", Filter{"seen", OpGreater, now}, Document{"seen": now.Add(time.Hour)}, true},
		{"time string form", Filter{"seen", OpLess, now.Format(time.RFC3339Nano)}, Document{"seen": now.Add(-time.Hour)}, true},
		{"array contains", Filter{"tags", OpArrayContains, "sale"}, Document{"tags": []any{"new", "sale"}}, true},
		{"array contains typed slice", Filter{"tags", OpArrayContains, "sale"}, Document{"tags": []string{"sale"}}, true},
		{"array contains miss", Filter{"tags", OpArrayContains, "sale"}, Document{"tags": []any{"new"}}, false},
		{"array contains any", Filter{"tags", OpArrayContainsAny, []any{"x", "new"}}, Document{"tags": []any{"new"}}, true},
		{"in", Filter{"state", OpIn, []any{"a", "b"}}, Document{"state": "b"}, true},
		{"in miss", Filter{"state", OpIn, []any{"a", "b"}}, Document{"state": "c"}, false},
		{"not in", Filter{"state", OpNotIn, []any{"a", "b"}}, Document{"state": "c"}, true},
		{"not in missing field", Filter{"state", OpNotIn, []any{"a"}}, Document{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Query{Filters: []Filter{tt.filter}}
			got, err := q.Match(tt.doc)
			if err != nil {
				t.Fatalf("Match returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterUnknownOperator(t *testing.T) {
	q := Query{Filters: []Filter{{Field: "x", Op: Operator("~="), Value: 1}}}
	if _, err := q.Match(Document{"x": 1}); err == nil {
		t.Fatal("expected error for unknown operator")
	}
}

func TestQueryFiltersAreANDed(t *testing.T) {
	q := Query{}.
		Where("marketplace", OpEqual, "takealot").
		Where("price", OpLess, 100.0)

	match, err := q.Match(Document{"marketplace": "takealot", "price": 50.0})
	if err != nil || !match {
		t.Fatalf("expected match, got %v err %v", match, err)
	}
	match, _ = q.Match(Document{"marketplace": "takealot", "price": 500.0})
	if match {
		t.Fatal("expected price filter to reject document")
	}
}

func TestQueryApplyOrderAndSlice(t *testing.T) {
	snaps := []Snapshot{
		snap("c", Document{"price": 30.0}),
		snap("a", Document{"price": 10.0}),
		snap("b", Document{"price": 20.0}),
		snap("d", Document{"price": 40.0}),
	}

	got, err := Query{OrderBy: "price", Direction: Descending, Limit: 2, Offset: 1}.Apply(snaps)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("unexpected order %+v", ids(got))
	}
}

func TestQueryApplyDefaultsToIDOrder(t *testing.T) {
	snaps := []Snapshot{
		snap("b", Document{}),
		snap("a", Document{}),
	}
	got, err := Query{}.Apply(snaps)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected order %+v", ids(got))
	}
}

func TestQueryApplyOffsetBeyondResults(t *testing.T) {
	got, err := Query{Offset: 5}.Apply([]Snapshot{snap("a", Document{})})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestResolveServerTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := Document{"createdAt": ServerTimestamp, "name": "x"}

	resolved := ResolveServerTimestamps(doc, now)
	if got, ok := resolved["createdAt"].(time.Time); !ok || !got.Equal(now) {
		t.Fatalf("sentinel not resolved: %v", resolved["createdAt"])
	}
	if resolved["name"] != "x" {
		t.Fatal("unrelated field mutated")
	}
	if IsServerTimestamp(doc["createdAt"]) == false {
		t.Fatal("original document should be untouched")
	}

	plain := Document{"name": "x"}
	if got := ResolveServerTimestamps(plain, now); got["name"] != "x" {
		t.Fatal("document without sentinels should pass through")
	}
}

func ids(snaps []Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.ID
	}
	return out
}
