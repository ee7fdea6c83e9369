package backend

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	json "github.com/json-iterator/go"
)

// Op is a filter comparison.
type Op string

const (
	OpEqual          Op = "=="
	OpGreaterOrEqual Op = ">="
	OpLessOrEqual    Op = "<="
	OpArrayContains  Op = "array-contains"
)

// Direction orders query results.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string      `json:"field"`
	Op    Op          `json:"op"`
	Value interface{} `json:"value"`
}

// Cursor is an opaque pointer to the last document of a page.
type Cursor string

// Query describes an ordered, paginated read of one collection.
type Query struct {
	Collection string    `json:"collection"`
	Filters    []Filter  `json:"filters,omitempty"`
	OrderBy    string    `json:"orderBy,omitempty"`
	Direction  Direction `json:"direction,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	StartAfter Cursor    `json:"startAfter,omitempty"`
}

// Snapshot is one page of results. Last is empty when Docs is empty.
type Snapshot struct {
	Docs []Document `json:"docs"`
	Last Cursor     `json:"last,omitempty"`
}

// Empty reports whether the page has no documents.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Docs) == 0
}

// PrefixEnd is appended to a prefix to form the <= bound of a prefix search.
const PrefixEnd = "\uf8ff"

type cursorPayload struct {
	Value interface{} `json:"v"`
	ID    string      `json:"id"`
}

// EncodeCursor builds a cursor from the last document's order value and id.
func EncodeCursor(orderValue interface{}, id string) Cursor {
	b, err := json.Marshal(cursorPayload{Value: orderValue, ID: id})
	if err != nil {
		return ""
	}
	return Cursor(base64.RawURLEncoding.EncodeToString(b))
}

// DecodeCursor reverses EncodeCursor.
func DecodeCursor(c Cursor) (interface{}, string, error) {
	if c == "" {
		return nil, "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}
	var p cursorPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, "", fmt.Errorf("decode cursor JSON: %w", err)
	}
	return p.Value, p.ID, nil
}

// Lookup reads a possibly dotted field path from a document body.
func Lookup(data map[string]interface{}, field string) (interface{}, bool) {
	parts := strings.Split(field, ".")
	var cur interface{} = data
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}

// Compare orders two normalized values: nil < bool < number < string.
func Compare(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 1:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case 2:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

// Match reports whether data satisfies every filter.
func Match(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		v, ok := Lookup(data, f.Field)
		want := normalize(f.Value)
		switch f.Op {
		case OpEqual:
			if !ok || rank(v) != rank(want) || Compare(v, want) != 0 {
				return false
			}
		case OpGreaterOrEqual:
			if !ok || rank(v) != rank(want) || Compare(v, want) < 0 {
				return false
			}
		case OpLessOrEqual:
			if !ok || rank(v) != rank(want) || Compare(v, want) > 0 {
				return false
			}
		case OpArrayContains:
			arr, isArr := v.([]interface{})
			if !ok || !isArr {
				return false
			}
			found := false
			for _, el := range arr {
				if rank(el) == rank(want) && Compare(el, want) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Evaluate runs q over an unordered set of documents. Drivers without a query engine use it.
func Evaluate(docs []Document, q Query) (*Snapshot, error) {
	matched := make([]Document, 0, len(docs))
	for _, d := range docs {
		if Match(d.Data, q.Filters) {
			matched = append(matched, d)
		}
	}

	less := func(a, b Document) bool {
		if q.OrderBy != "" {
			va, _ := Lookup(a.Data, q.OrderBy)
			vb, _ := Lookup(b.Data, q.OrderBy)
			if c := Compare(va, vb); c != 0 {
				if q.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
		}
		if q.Direction == Desc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	}
	sort.SliceStable(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	if q.StartAfter != "" {
		cv, cid, err := DecodeCursor(q.StartAfter)
		if err != nil {
			return nil, err
		}
		pivot := Document{ID: cid, Data: map[string]interface{}{}}
		if q.OrderBy != "" {
			pivot.Data = setPath(q.OrderBy, cv)
		}
		start := len(matched)
		for i, d := range matched {
			if less(pivot, d) {
				start = i
				break
			}
		}
		matched = matched[start:]
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	snap := &Snapshot{Docs: matched}
	if n := len(matched); n > 0 {
		snap.Last = CursorFor(matched[n-1], q.OrderBy)
	}
	return snap, nil
}

// CursorFor builds the cursor pointing at d for a query ordered by orderBy.
func CursorFor(d Document, orderBy string) Cursor {
	var v interface{}
	if orderBy != "" {
		v, _ = Lookup(d.Data, orderBy)
	}
	return EncodeCursor(v, d.ID)
}

func setPath(field string, v interface{}) map[string]interface{} {
	root := map[string]interface{}{}
	parts := strings.Split(field, ".")
	cur := root
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = v
			break
		}
		next := map[string]interface{}{}
		cur[p] = next
		cur = next
	}
	return root
}
