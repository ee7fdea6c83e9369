package backend

import (
	"fmt"
	"time"

	json "github.com/json-iterator/go"
)

var codec = json.ConfigCompatibleWithStandardLibrary

// TimestampLayout is fixed-width UTC so stored timestamps sort as strings.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FieldTransform is a write-time instruction resolved by the backend.
type FieldTransform struct {
	Op string `json:"__op"`
	By int64  `json:"by,omitempty"`
}

const (
	opServerTimestamp = "serverTimestamp"
	opIncrement       = "increment"
)

// ServerTimestamp is replaced by the backend's clock when written.
var ServerTimestamp = FieldTransform{Op: opServerTimestamp}

// Increment atomically adds n to a numeric field (missing counts as 0).
func Increment(n int64) FieldTransform {
	return FieldTransform{Op: opIncrement, By: n}
}

func asTransform(v interface{}) (FieldTransform, bool) {
	switch t := v.(type) {
	case FieldTransform:
		return t, true
	case *FieldTransform:
		if t != nil {
			return *t, true
		}
	case map[string]interface{}:
		if op, ok := t["__op"].(string); ok {
			by := toFloat(t["by"])
			return FieldTransform{Op: op, By: int64(by)}, true
		}
	}
	return FieldTransform{}, false
}

// ApplyFields merges data into existing, resolving transforms against now.
// existing is not modified.
func ApplyFields(existing map[string]interface{}, data Fields, now time.Time) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(existing)+len(data))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range data {
		if k == "id" {
			continue
		}
		if t, ok := asTransform(v); ok {
			switch t.Op {
			case opServerTimestamp:
				out[k] = FormatTimestamp(now)
			case opIncrement:
				out[k] = toFloat(out[k]) + float64(t.By)
			default:
				return nil, fmt.Errorf("unknown field transform %q on %s", t.Op, k)
			}
			continue
		}
		out[k] = normalize(v)
	}
	return out, nil
}

// normalize reduces v to the JSON value space (nil, bool, float64, string, []interface{}, map).
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, float64, string:
		return t
	case time.Time:
		return FormatTimestamp(t)
	case int, int32, int64, uint, uint32, uint64, float32:
		return toFloat(t)
	}
	b, err := codec.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := codec.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// ToFields converts a struct (or map) into Fields using its JSON tags.
func ToFields(v interface{}) (Fields, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return nil, err
	}
	var f Fields
	if err := codec.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	delete(f, "id")
	return f, nil
}

// DataTo decodes the document into out, filling its "id" field.
func (d *Document) DataTo(out interface{}) error {
	m := make(map[string]interface{}, len(d.Data)+1)
	for k, v := range d.Data {
		m[k] = v
	}
	m["id"] = d.ID
	b, err := codec.Marshal(m)
	if err != nil {
		return err
	}
	return codec.Unmarshal(b, out)
}

// DecodeAll decodes every document of a snapshot into a slice of T.
func DecodeAll[T any](snap *Snapshot) ([]T, error) {
	if snap == nil {
		return nil, nil
	}
	out := make([]T, 0, len(snap.Docs))
	for i := range snap.Docs {
		var v T
		if err := snap.Docs[i].DataTo(&v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", snap.Docs[i].ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}
