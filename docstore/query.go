package docstore

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Operator is a filter comparison operator. The set matches what managed
// document stores expose for single-field predicates.
type Operator string

const (
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpGreaterOrEqual Operator = ">="
	OpGreater        Operator = ">"
	OpArrayContains  Operator = "array-contains"
	OpArrayContainsAny Operator = "array-contains-any"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not-in"
)

// Filter is a single field predicate. Filters on a Query are ANDed.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Direction orders query results.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Query describes a filtered, ordered, sliced read over one collection.
type Query struct {
	Filters   []Filter
	OrderBy   string
	Direction Direction
	Limit     int
	Offset    int
}

// Where appends an equality-or-otherwise filter and returns the query for
// chaining.
func (q Query) Where(field string, op Operator, value any) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// Match reports whether doc satisfies every filter on the query.
func (q Query) Match(doc Document) (bool, error) {
	for _, f := range q.Filters {
		ok, err := f.match(doc[f.Field])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (f Filter) match(fieldValue any) (bool, error) {
	switch f.Op {
	case OpEqual:
		return valuesEqual(fieldValue, f.Value), nil
	case OpNotEqual:
		// Missing fields never match inequality, mirroring store behavior
		// where != implies the field exists.
		if fieldValue == nil {
			return false, nil
		}
		return !valuesEqual(fieldValue, f.Value), nil
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		cmp, ok := compareValues(fieldValue, f.Value)
		if !ok {
			return false, nil
		}
		switch f.Op {
		case OpLess:
			return cmp < 0, nil
		case OpLessOrEqual:
			return cmp <= 0, nil
		case OpGreater:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case OpArrayContains:
		for _, elem := range sliceElements(fieldValue) {
			if valuesEqual(elem, f.Value) {
				return true, nil
			}
		}
		return false, nil
	case OpArrayContainsAny:
		want := sliceElements(f.Value)
		for _, elem := range sliceElements(fieldValue) {
			for _, w := range want {
				if valuesEqual(elem, w) {
					return true, nil
				}
			}
		}
		return false, nil
	case OpIn:
		for _, w := range sliceElements(f.Value) {
			if valuesEqual(fieldValue, w) {
				return true, nil
			}
		}
		return false, nil
	case OpNotIn:
		if fieldValue == nil {
			return false, nil
		}
		for _, w := range sliceElements(f.Value) {
			if valuesEqual(fieldValue, w) {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
	}
}

// Apply filters, orders, and slices snaps according to q. It is the shared
// evaluation path for store adapters that cannot push predicates into their
// backend natively.
func (q Query) Apply(snaps []Snapshot) ([]Snapshot, error) {
	matched := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		ok, err := q.Match(s.Data)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, s)
		}
	}

	if q.OrderBy != "" {
		desc := q.Direction == Descending
		sort.SliceStable(matched, func(i, j int) bool {
			cmp, ok := compareValues(matched[i].Data[q.OrderBy], matched[j].Data[q.OrderBy])
			if !ok {
				return false
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})
	} else {
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// valuesEqual compares two field values, unifying numeric representations so
// that a JSON-decoded float64 equals the int it was written as.
func valuesEqual(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values when they belong to a mutually comparable
// kind: numbers, strings, booleans, or timestamps. The second return value is
// false for mixed or unordered kinds.
func compareValues(a, b any) (int, bool) {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	if at, ok := asTime(a); ok {
		bt, ok := asTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}

	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// asTime recognizes native timestamps and their RFC 3339 string encoding, so
// stores that persist documents as JSON order time fields correctly.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// sliceElements flattens v into its elements when v is a slice or array.
func sliceElements(v any) []any {
	if v == nil {
		return nil
	}
	if elems, ok := v.([]any); ok {
		return elems
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
