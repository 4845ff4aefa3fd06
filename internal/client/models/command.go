package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Action is the mutation a queued command replays.
type Action string

const (
	ActionCreateTable              Action = "CreateTable"
	ActionDeleteTable              Action = "DeleteTable"
	ActionInsert                   Action = "Insert"
	ActionUpdate                   Action = "Update"
	ActionDelete                   Action = "Delete"
	ActionEmpty                    Action = "Empty"
	ActionAttachFileToItem         Action = "AttachFileToItem"
	ActionRemoveAttachmentFromItem Action = "RemoveAttachmentFromItem"
	ActionAttachFileToLibrary      Action = "AttachFileToLibrary"
	ActionRemoveFileFromLibrary    Action = "RemoveFileFromLibrary"
	ActionLike                     Action = "Like"
	ActionUnlike                   Action = "Unlike"
)

// State is the lifecycle state of a queued command.
type State string

const (
	StatePending   State = "Pending"
	StateFailed    State = "Failed"
	StateSucceeded State = "Succeeded"
	StateDelayed   State = "Delayed"
	StateDisabled  State = "Disabled"
)

// Parameter keys used by attachment and like commands.
const (
	ParamFilename  = "Filename"
	ParamFilenames = "Filenames"
	ParamFolder    = "Folder"
	ParamUser      = "User"
)

// Command is one entry of the outbox.
type Command struct {
	// Seq is the replay order, allocated by the outbox.
	Seq int64

	Action    Action
	TableName string

	// TypeName is the fully-qualified name of the entity type.
	TypeName string

	// ItemID is the entity the command applies to, when there is one.
	ItemID *int

	Parameters map[string]any
	State      State
	Created    time.Time
	Priority   int

	// Attempts counts failed replays; LastError keeps the latest failure.
	Attempts  int
	LastError string
}

// Eligible reports whether a drain should replay the command.
func (c *Command) Eligible() bool {
	return c.State == StatePending || c.State == StateFailed
}

// Item returns the item id or 0.
func (c *Command) Item() int {
	if c.ItemID == nil {
		return 0
	}
	return *c.ItemID
}

// StringParam returns a string parameter.
func (c *Command) StringParam(key string) string {
	s, _ := c.Parameters[key].(string)
	return s
}

// IntParam returns an integer parameter. Parameters read back from storage
// carry JSON numbers, so float64 and json.Number are accepted.
func (c *Command) IntParam(key string) (int, bool) {
	switch v := c.Parameters[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// StringsParam returns a string list parameter.
func (c *Command) StringsParam(key string) []string {
	switch v := c.Parameters[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// IntPtr is a convenience for building commands.
func IntPtr(v int) *int {
	return &v
}
