package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/tidwall/gjson"
)

// Condition is a single field = value test.
type Condition struct {
	Field string
	Value any
}

// Queryable returns the field descriptor, or FieldMissing / FieldAccess.
func (t *Type) Queryable(name string) (*Field, error) {
	f, ok := t.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", common.ErrFieldMissing, t.Name, name)
	}
	if f.Hidden {
		return nil, fmt.Errorf("%w: %s.%s", common.ErrFieldAccess, t.Name, name)
	}
	return f, nil
}

// Matcher compiles conditions into a predicate over documents. With all set
// every condition must match, otherwise any one is enough.
func (t *Type) Matcher(conds []Condition, all bool) (func(doc []byte) bool, error) {
	fields := make([]*Field, len(conds))
	for i, c := range conds {
		f, err := t.Queryable(c.Field)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}

	return func(doc []byte) bool {
		if len(conds) == 0 {
			return true
		}
		for i, c := range conds {
			ok := matchValue(fields[i], gjson.GetBytes(doc, c.Field), c.Value)
			if ok && !all {
				return true
			}
			if !ok && all {
				return false
			}
		}
		return all
	}, nil
}

// matchValue compares a stored value with a condition value of the same
// declared kind. Values of a different Go type never match, except that
// reference kinds compare on the reference key.
func matchValue(f *Field, v gjson.Result, want any) bool {
	if want == nil {
		return !v.Exists() || v.Type == gjson.Null
	}

	switch f.Kind {
	case KindInt:
		w, ok := want.(int)
		return ok && v.Type == gjson.Number && v.Num == float64(w)
	case KindFloat:
		w, ok := want.(float64)
		return ok && v.Type == gjson.Number && v.Num == w
	case KindString:
		w, ok := want.(string)
		return ok && v.Type == gjson.String && v.Str == w
	case KindBool:
		w, ok := want.(bool)
		return ok && (v.Type == gjson.True || v.Type == gjson.False) && v.Bool() == w
	case KindTime:
		w, ok := want.(time.Time)
		if !ok || v.Type != gjson.String {
			return false
		}
		got, err := time.Parse(time.RFC3339Nano, v.Str)
		return err == nil && got.Equal(w)
	case KindRef:
		key, ok := refKey(want)
		if !ok {
			return false
		}
		id, ok := RefID(v)
		return ok && id == key
	case KindRefSet:
		key, ok := refKey(want)
		if !ok {
			return false
		}
		return setHas(v, key)
	}
	return false
}

func refKey(want any) (int, bool) {
	switch w := want.(type) {
	case int:
		return w, true
	case Ref:
		return w.ID, true
	case *Ref:
		if w == nil {
			return 0, false
		}
		return w.ID, true
	}
	return 0, false
}

func setHas(v gjson.Result, key int) bool {
	switch {
	case v.IsObject():
		return v.Get(strconv.Itoa(key)).Exists()
	case v.IsArray():
		for _, el := range v.Array() {
			if id, ok := RefID(el); ok && id == key {
				return true
			}
		}
	}
	return false
}
