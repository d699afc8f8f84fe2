package adapter

import (
	"encoding/json"
	"strconv"
	"strings"
)

// firestoreDoc is one document from the Firestore REST API. Name is the full
// resource path; the trailing segment is the document ID.
type firestoreDoc struct {
	Name   string                    `json:"name"`
	Fields map[string]firestoreValue `json:"fields"`
}

func (d firestoreDoc) id() string {
	if d.Name == "" {
		return ""
	}
	return d.Name[strings.LastIndex(d.Name, "/")+1:]
}

// firestoreValue is the REST API's typed wrapper around one field value,
// e.g. {"stringValue": "..."} or {"integerValue": "123"}. Keeping the raw
// JSON lets unwrap distinguish the wrapper types without a struct per shape.
type firestoreValue map[string]json.RawMessage

// unwrap converts the wrapper to a plain Go value. Integers arrive as
// decimal strings and come back as int64; maps and arrays unwrap
// recursively. An unrecognized wrapper unwraps to nil.
func (v firestoreValue) unwrap() any {
	if raw, ok := v["stringValue"]; ok {
		var s string
		_ = json.Unmarshal(raw, &s)
		return s
	}
	if raw, ok := v["integerValue"]; ok {
		var s string
		_ = json.Unmarshal(raw, &s)
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	}
	if raw, ok := v["doubleValue"]; ok {
		var f float64
		_ = json.Unmarshal(raw, &f)
		return f
	}
	if raw, ok := v["booleanValue"]; ok {
		var b bool
		_ = json.Unmarshal(raw, &b)
		return b
	}
	if raw, ok := v["timestampValue"]; ok {
		var s string
		_ = json.Unmarshal(raw, &s)
		return s
	}
	if _, ok := v["nullValue"]; ok {
		return nil
	}
	if raw, ok := v["mapValue"]; ok {
		var inner struct {
			Fields map[string]firestoreValue `json:"fields"`
		}
		_ = json.Unmarshal(raw, &inner)
		out := make(map[string]any, len(inner.Fields))
		for k, fv := range inner.Fields {
			out[k] = fv.unwrap()
		}
		return out
	}
	if raw, ok := v["arrayValue"]; ok {
		var inner struct {
			Values []firestoreValue `json:"values"`
		}
		_ = json.Unmarshal(raw, &inner)
		out := make([]any, 0, len(inner.Values))
		for _, fv := range inner.Values {
			out = append(out, fv.unwrap())
		}
		return out
	}
	return nil
}

// unwrapFields unwraps every field of a document.
func unwrapFields(doc firestoreDoc) map[string]any {
	out := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		out[k] = v.unwrap()
	}
	return out
}
