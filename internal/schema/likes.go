package schema

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/listbuffer/internal/common"
)

// ApplyLike adds (like) or removes userID from the likedBy set of doc and
// adjusts likesCount accordingly. It reports false without touching doc when
// the user is already in the requested state.
func (t *Type) ApplyLike(doc []byte, userID int, like bool) ([]byte, bool, error) {
	_, hasCount := t.Field(common.FieldLikesCount)
	_, hasSet := t.Field(common.FieldLikedBy)
	if !hasCount || !hasSet {
		return nil, false, fmt.Errorf("%w: %s needs %s and %s", common.ErrFieldsMissing, t.Name, common.FieldLikesCount, common.FieldLikedBy)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, false, fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
	}

	likedBy := map[string]any{}
	if raw, ok := m[common.FieldLikedBy]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &likedBy); err != nil {
			return nil, false, fmt.Errorf("%w: %s: %v", common.ErrInvalidDocument, common.FieldLikedBy, err)
		}
	}

	count := 0
	if raw, ok := m[common.FieldLikesCount]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &count); err != nil {
			return nil, false, fmt.Errorf("%w: %s: %v", common.ErrInvalidDocument, common.FieldLikesCount, err)
		}
	}

	key := strconv.Itoa(userID)
	_, liked := likedBy[key]
	if liked == like {
		return doc, false, nil
	}

	if like {
		likedBy[key] = ""
		count++
	} else {
		delete(likedBy, key)
		if count > 0 {
			count--
		}
	}

	var err error
	if m[common.FieldLikedBy], err = json.Marshal(likedBy); err != nil {
		return nil, false, err
	}
	if m[common.FieldLikesCount], err = json.Marshal(count); err != nil {
		return nil, false, err
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Likes returns the ids in the likedBy set of doc.
func (t *Type) Likes(doc []byte) (RefSet, error) {
	if _, ok := t.Field(common.FieldLikedBy); !ok {
		return nil, fmt.Errorf("%w: %s.%s", common.ErrFieldsMissing, t.Name, common.FieldLikedBy)
	}

	var m struct {
		LikedBy map[string]any `json:"likedBy"`
	}
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
	}

	out := make(RefSet, len(m.LikedBy))
	for k, v := range m.LikedBy {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		s, _ := v.(string)
		out[id] = s
	}
	return out, nil
}
