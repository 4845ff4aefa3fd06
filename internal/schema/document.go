package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// pairSeparator separates id and value in the serialized pair form "5[-]Title".
const pairSeparator = "[-]"

// CheckDocument verifies that doc is a JSON object.
func CheckDocument(doc []byte) error {
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return fmt.Errorf("%w: expected a JSON object", common.ErrInvalidDocument)
	}
	return nil
}

// ID reads the identifier of doc.
func (t *Type) ID(doc []byte) (int, bool) {
	r := gjson.GetBytes(doc, t.IDField)
	if r.Type != gjson.Number {
		return 0, false
	}
	return int(r.Int()), true
}

// SetID writes id into the identifier field of doc.
func (t *Type) SetID(doc []byte, id int) ([]byte, error) {
	out, err := sjson.SetBytes(doc, t.IDField, id)
	if err != nil {
		return nil, fmt.Errorf("failed to set %s.%s: %w", t.Name, t.IDField, err)
	}
	return out, nil
}

// SetBufferID writes id into the original buffer id field, if the type has one.
func (t *Type) SetBufferID(doc []byte, id int) ([]byte, error) {
	if t.BufferIDField == "" {
		return doc, nil
	}
	out, err := sjson.SetBytes(doc, t.BufferIDField, id)
	if err != nil {
		return nil, fmt.Errorf("failed to set %s.%s: %w", t.Name, t.BufferIDField, err)
	}
	return out, nil
}

// Title returns the value of the title field.
func (t *Type) Title(doc []byte) string {
	if t.TitleField == "" {
		return ""
	}
	return gjson.GetBytes(doc, t.TitleField).String()
}

// Touch stamps the modified field, and the created field when created is set.
func (t *Type) Touch(doc []byte, created bool, now time.Time) ([]byte, error) {
	stamp := now.UTC().Format(time.RFC3339Nano)

	var err error
	if created && t.CreatedField != "" {
		if doc, err = sjson.SetBytes(doc, t.CreatedField, stamp); err != nil {
			return nil, fmt.Errorf("failed to set %s.%s: %w", t.Name, t.CreatedField, err)
		}
	}
	if t.ModifiedField != "" {
		if doc, err = sjson.SetBytes(doc, t.ModifiedField, stamp); err != nil {
			return nil, fmt.Errorf("failed to set %s.%s: %w", t.Name, t.ModifiedField, err)
		}
	}
	return doc, nil
}

// MayReference reports whether t has a lookup that can point into list,
// either statically or through a dynamic target field.
func (t *Type) MayReference(list string) bool {
	for _, f := range t.Lookups() {
		if !f.Lookup.Static() || f.Lookup.List == list {
			return true
		}
	}
	return false
}

// RewriteReferences replaces oldID with newID in every lookup field of doc
// that targets list. It reports whether anything changed.
func (t *Type) RewriteReferences(doc []byte, list string, oldID, newID int) ([]byte, bool, error) {
	changed := false
	for _, f := range t.Lookups() {
		if !targets(doc, f.Lookup, list) {
			continue
		}
		v := gjson.GetBytes(doc, f.Name)
		if !v.Exists() {
			continue
		}
		for _, e := range rewriteValue(f.Name, f.Kind, v, oldID, newID) {
			var err error
			if e.raw != nil {
				doc, err = sjson.SetRawBytes(doc, e.path, e.raw)
			} else {
				doc, err = sjson.SetBytes(doc, e.path, e.value)
			}
			if err != nil {
				return nil, false, fmt.Errorf("failed to rewrite %s.%s: %w", t.Name, e.path, err)
			}
			changed = true
		}
	}
	return doc, changed, nil
}

func targets(doc []byte, l *Lookup, list string) bool {
	if l.Static() {
		return l.List == list
	}
	if doc == nil {
		return false
	}
	return gjson.GetBytes(doc, l.ListField).String() == list
}

// edit sets path to value, or to raw JSON when raw is not nil.
type edit struct {
	path  string
	value any
	raw   []byte
}

func rewriteValue(path string, kind Kind, v gjson.Result, oldID, newID int) []edit {
	switch {
	case kind == KindRefSet && v.IsObject():
		if raw, ok := renameMember(v, strconv.Itoa(oldID), strconv.Itoa(newID)); ok {
			return []edit{{path: path, raw: raw}}
		}
	case v.IsArray():
		var out []edit
		for i, el := range v.Array() {
			// elements are single references
			out = append(out, rewriteValue(path+"."+strconv.Itoa(i), KindRef, el, oldID, newID)...)
		}
		return out
	case v.IsObject():
		id := v.Get("id")
		if id.Type == gjson.Number && id.Int() == int64(oldID) {
			return []edit{{path: path + ".id", value: newID}}
		}
	case v.Type == gjson.Number:
		if v.Int() == int64(oldID) {
			return []edit{{path: path, value: newID}}
		}
	case v.Type == gjson.String:
		if id, rebuild, ok := parseSerialized(v.Str); ok && id == oldID {
			return []edit{{path: path, value: rebuild(newID)}}
		}
	}
	return nil
}

// renameMember rebuilds a reference set object with the member keyed from
// renamed to, keeping member order and values.
func renameMember(set gjson.Result, from, to string) ([]byte, bool) {
	found := false
	out := []byte{'{'}
	set.ForEach(func(k, v gjson.Result) bool {
		if len(out) > 1 {
			out = append(out, ',')
		}
		if k.String() == from {
			out = strconv.AppendQuote(out, to)
			found = true
		} else {
			out = append(out, k.Raw...)
		}
		out = append(out, ':')
		out = append(out, v.Raw...)
		return true
	})
	return append(out, '}'), found
}

// RefID normalizes a reference value to its id. It accepts an object with
// an id member, a raw number, or one of the serialized string forms.
func RefID(v gjson.Result) (int, bool) {
	switch {
	case v.IsObject():
		id := v.Get("id")
		if id.Type == gjson.Number {
			return int(id.Int()), true
		}
	case v.Type == gjson.Number:
		return int(v.Int()), true
	case v.Type == gjson.String:
		id, _, ok := parseSerialized(v.Str)
		return id, ok
	}
	return 0, false
}

// parseSerialized understands a JSON object string with an id member,
// the pair form "<id>[-]<value>", and a bare integer string.
func parseSerialized(s string) (int, func(int) string, bool) {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed) {
		id := gjson.Get(trimmed, "id")
		if id.Type != gjson.Number {
			return 0, nil, false
		}
		return int(id.Int()), func(n int) string {
			out, err := sjson.Set(trimmed, "id", n)
			if err != nil {
				return trimmed
			}
			return out
		}, true
	}

	if before, after, found := strings.Cut(trimmed, pairSeparator); found {
		n, err := strconv.Atoi(strings.TrimSpace(before))
		if err != nil {
			return 0, nil, false
		}
		return n, func(m int) string { return strconv.Itoa(m) + pairSeparator + after }, true
	}

	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, nil, false
	}
	return n, strconv.Itoa, true
}
