// Package models defines the client-side records of the buffer: stored
// entity documents, queued commands and attachment metadata.
package models

// Item is an entity document as persisted in the local store.
type Item struct {
	// Collection is the list name of the entity type.
	Collection string

	// ID is the current identifier: negative while the item is buffered,
	// server-assigned once the remote accepted it.
	ID int

	// BufferID is the buffer identifier the item was created with, or 0
	// for items that arrived from the remote.
	BufferID int

	// Body is the JSON document.
	Body []byte
}

// IsBuffered reports whether the item still carries a local-only id.
func (i *Item) IsBuffered() bool {
	return i.ID < 0
}
