// Package envelope decodes a single upstream change-event JSON document and
// exposes path-addressed scalar and subtree access over it (C1). Callers
// address fields with a dotted path such as "payload.source.db" or
// "payload.tableChanges.0.table.columns".
package envelope

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Null is the sentinel returned by GetString when the addressed path is
// absent or JSON null. Spec.md §8 invariant 2 fixes this exact string as
// the only "absent" convention the rest of the pipeline may rely on.
const Null = "NULL"

// Envelope wraps one decoded JSON change event.
type Envelope struct {
	root any
}

// Parse decodes raw as a single JSON document. Numbers decode as
// json.Number rather than float64 so large position/timestamp integers
// survive round-tripping through GetString without losing precision.
func Parse(raw []byte) (*Envelope, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("envelope: decode: %w", err)
	}
	return &Envelope{root: root}, nil
}

// GetString returns the JSON value at dottedPath rendered as text. If the
// value is absent or JSON null, Null is returned; callers treat that as
// absent rather than as an error. When unquote is false, a string value
// keeps its JSON backslash escapes but not its surrounding quotes. When
// unquote is true, the escapes are stripped so the caller sees the bare
// scalar, and an embedded JSON-string-within-a-string value is unwrapped.
func (e *Envelope) GetString(dottedPath string, unquote bool) string {
	v, ok := e.lookup(dottedPath)
	if !ok || v == nil {
		return Null
	}
	switch t := v.(type) {
	case string:
		if unquote {
			return unquoteScalar(t)
		}
		var buf strings.Builder
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return t
		}
		quoted := strings.TrimSuffix(buf.String(), "\n")
		return quoted[1 : len(quoted)-1]
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		// Nested object/array: re-serialize as a JSON string so callers
		// that only want scalar text (e.g. a geometry {"wkb":...,"srid":...}
		// nested inside a row column) get a stable textual form instead of
		// descending into it as if its fields were row columns.
		b, err := json.Marshal(t)
		if err != nil {
			return Null
		}
		s := string(b)
		if unquote {
			return unquoteScalar(s)
		}
		return s
	}
}

// GetSubtree returns the subtree addressed by dottedPath for further
// iteration by a caller that understands its shape (e.g. the DDL parser
// iterating table.columns[], or the DML parser iterating payload.after).
// The second return value is false when the path is absent.
func (e *Envelope) GetSubtree(dottedPath string) (any, bool) {
	v, ok := e.lookup(dottedPath)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// lookup walks the dotted path against the decoded document. A path
// segment that parses as a non-negative integer indexes into a JSON array;
// otherwise it is treated as an object key. Iteration order for arrays of
// objects is document order, matching encoding/json's decode into []any.
func (e *Envelope) lookup(dottedPath string) (any, bool) {
	cur := e.root
	if dottedPath == "" {
		return cur, cur != nil
	}
	for _, seg := range strings.Split(dottedPath, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// unquoteScalar strips one layer of JSON string quoting/escaping from s if
// s looks like a quoted JSON string; otherwise it returns s unchanged.
func unquoteScalar(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var out string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out
		}
	}
	return s
}
