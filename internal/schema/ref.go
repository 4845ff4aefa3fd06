package schema

// Ref is a reference pair into another list: the referenced item's id and a
// display value. It is the Go shape of a KindRef field.
type Ref struct {
	ID    int    `json:"id"`
	Value string `json:"value,omitempty"`
}

// RefSet is a set of reference keys with display values. It is the Go shape
// of a KindRefSet field and encodes as a JSON object keyed by id.
type RefSet map[int]string

// Has reports whether id is a member of the set.
func (s RefSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}
