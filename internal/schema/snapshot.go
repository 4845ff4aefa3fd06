package schema

import (
	"encoding/json"
	"fmt"
)

// SerializeSnapshot encodes an entity for storage next to a document library
// file. Encoding is deterministic: struct fields keep declaration order and
// map keys are sorted.
func SerializeSnapshot(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return string(b), nil
}

// DeserializeSnapshot decodes a snapshot produced by SerializeSnapshot.
func DeserializeSnapshot(s string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	return nil
}
