// Package schema describes buffered entity types: which list a type lives in,
// which JSON fields it has, and which of those fields are lookup references
// into other lists. Descriptors are registered explicitly at startup and are
// consulted by the local store, the field matcher and the remap cascade.
package schema

import (
	"fmt"
	"regexp"

	"github.com/dmitrijs2005/listbuffer/internal/common"
)

// Kind is the declared type of a field.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindTime   Kind = "time"
	// KindRef is a reference pair {id, value} into another list.
	KindRef Kind = "ref"
	// KindRefSet is a set of reference keys, encoded as an object id -> value.
	KindRefSet Kind = "refset"
)

// DefaultIDField is used when a descriptor does not name its identifier.
const DefaultIDField = "id"

var fieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Lookup marks a field as a reference into another list. Exactly one of
// List (static target) or ListField (dynamic target, named by a sibling
// field) is set.
type Lookup struct {
	List      string `json:"list,omitempty" yaml:"list,omitempty"`
	ListField string `json:"list_field,omitempty" yaml:"list_field,omitempty"`
}

// Static reports whether the lookup target is fixed.
func (l *Lookup) Static() bool {
	return l.List != ""
}

// Field describes one JSON member of an entity document.
type Field struct {
	Name    string   `json:"name" yaml:"name"`
	Kind    Kind     `json:"kind" yaml:"kind"`
	Hidden  bool     `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Lookup  *Lookup  `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// Type is the descriptor of a buffered entity type.
type Type struct {
	// Name is the fully-qualified type name stamped on queued commands.
	Name string `json:"name" yaml:"name"`
	// List is the collection name, locally and on the remote backend.
	List string `json:"list" yaml:"list"`

	IDField       string `json:"id_field,omitempty" yaml:"id_field,omitempty"`
	BufferIDField string `json:"buffer_id_field,omitempty" yaml:"buffer_id_field,omitempty"`
	TitleField    string `json:"title_field,omitempty" yaml:"title_field,omitempty"`
	CreatedField  string `json:"created_field,omitempty" yaml:"created_field,omitempty"`
	ModifiedField string `json:"modified_field,omitempty" yaml:"modified_field,omitempty"`

	Fields []Field `json:"fields" yaml:"fields"`

	index map[string]int
}

// NewType starts a descriptor for the given type name and list.
func NewType(name, list string) *Type {
	return &Type{Name: name, List: list, IDField: DefaultIDField}
}

// Int declares an integer field.
func (t *Type) Int(name string) *Type { return t.add(Field{Name: name, Kind: KindInt}) }

// Float declares a floating point field.
func (t *Type) Float(name string) *Type { return t.add(Field{Name: name, Kind: KindFloat}) }

// Text declares a string field.
func (t *Type) Text(name string) *Type { return t.add(Field{Name: name, Kind: KindString}) }

// Bool declares a boolean field.
func (t *Type) Bool(name string) *Type { return t.add(Field{Name: name, Kind: KindBool}) }

// Time declares an RFC 3339 timestamp field.
func (t *Type) Time(name string) *Type { return t.add(Field{Name: name, Kind: KindTime}) }

// Choice declares a text field restricted to the given choices.
func (t *Type) Choice(name string, choices ...string) *Type {
	return t.add(Field{Name: name, Kind: KindString, Choices: choices})
}

// Hidden declares a field that is stored but cannot be queried.
func (t *Type) Hidden(name string, kind Kind) *Type {
	return t.add(Field{Name: name, Kind: kind, Hidden: true})
}

// RefSet declares a reference set field.
func (t *Type) RefSet(name string) *Type { return t.add(Field{Name: name, Kind: KindRefSet}) }

// Ref declares a reference pair field that is not a lookup.
func (t *Type) Ref(name string) *Type { return t.add(Field{Name: name, Kind: KindRef}) }

// LookupTo declares a static lookup into list.
func (t *Type) LookupTo(name, list string) *Type {
	return t.add(Field{Name: name, Kind: KindRef, Lookup: &Lookup{List: list}})
}

// LookupIntTo declares a static lookup stored as a raw integer id.
func (t *Type) LookupIntTo(name, list string) *Type {
	return t.add(Field{Name: name, Kind: KindInt, Lookup: &Lookup{List: list}})
}

// LookupSetTo declares a static lookup holding a reference set keyed by id.
func (t *Type) LookupSetTo(name, list string) *Type {
	return t.add(Field{Name: name, Kind: KindRefSet, Lookup: &Lookup{List: list}})
}

// DynamicLookup declares a lookup whose target list is held by listField.
func (t *Type) DynamicLookup(name, listField string) *Type {
	return t.add(Field{Name: name, Kind: KindRef, Lookup: &Lookup{ListField: listField}})
}

// WithLikes declares the likesCount and likedBy fields.
func (t *Type) WithLikes() *Type {
	return t.Int(common.FieldLikesCount).RefSet(common.FieldLikedBy)
}

// WithTitle names the field used by title selection.
func (t *Type) WithTitle(name string) *Type {
	t.TitleField = name
	return t.Text(name)
}

// WithTimestamps names the created/modified fields set on write.
func (t *Type) WithTimestamps(created, modified string) *Type {
	t.CreatedField, t.ModifiedField = created, modified
	return t.Time(created).Time(modified)
}

// WithBufferID names the field that keeps the original buffer id.
func (t *Type) WithBufferID(name string) *Type {
	t.BufferIDField = name
	return t.Int(name)
}

func (t *Type) add(f Field) *Type {
	t.Fields = append(t.Fields, f)
	t.index = nil
	return t
}

// Field returns the descriptor of the named field.
func (t *Type) Field(name string) (*Field, bool) {
	if t.index == nil {
		t.buildIndex()
	}
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return &t.Fields[i], true
}

// Lookups returns the lookup fields of the type.
func (t *Type) Lookups() []Field {
	var out []Field
	for _, f := range t.Fields {
		if f.Lookup != nil {
			out = append(out, f)
		}
	}
	return out
}

func (t *Type) buildIndex() {
	t.index = make(map[string]int, len(t.Fields))
	for i, f := range t.Fields {
		t.index[f.Name] = i
	}
}

// Validate checks the descriptor and fills defaults.
func (t *Type) Validate() error {
	if t.Name == "" || t.List == "" {
		return fmt.Errorf("%w: type name and list are required", common.ErrInvalidSchema)
	}
	if t.IDField == "" {
		t.IDField = DefaultIDField
	}
	if !t.declares(t.IDField) {
		t.Fields = append([]Field{{Name: t.IDField, Kind: KindInt}}, t.Fields...)
	}

	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if !fieldNameRe.MatchString(f.Name) {
			return fmt.Errorf("%w: %s: bad field name %q", common.ErrInvalidSchema, t.Name, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate field %q", common.ErrInvalidSchema, t.Name, f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Kind {
		case KindInt, KindFloat, KindString, KindBool, KindTime, KindRef, KindRefSet:
		default:
			return fmt.Errorf("%w: %s.%s: unknown kind %q", common.ErrInvalidSchema, t.Name, f.Name, f.Kind)
		}

		if f.Lookup != nil {
			if (f.Lookup.List == "") == (f.Lookup.ListField == "") {
				return fmt.Errorf("%w: %s.%s: lookup needs exactly one of list or list_field", common.ErrInvalidSchema, t.Name, f.Name)
			}
			if f.Lookup.ListField != "" {
				if _, ok := seen[f.Lookup.ListField]; !ok && !t.declares(f.Lookup.ListField) {
					return fmt.Errorf("%w: %s.%s: list field %q not declared", common.ErrInvalidSchema, t.Name, f.Name, f.Lookup.ListField)
				}
			}
		}
	}

	for _, name := range []string{t.BufferIDField, t.TitleField, t.CreatedField, t.ModifiedField} {
		if name != "" && !t.declares(name) {
			return fmt.Errorf("%w: %s: field %q not declared", common.ErrInvalidSchema, t.Name, name)
		}
	}

	t.buildIndex()
	return nil
}

func (t *Type) declares(name string) bool {
	for _, f := range t.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
