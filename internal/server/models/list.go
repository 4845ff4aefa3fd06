// Package models defines server-side data models persisted in PostgreSQL.
package models

import "time"

// List is a remote collection. Schema holds the JSON encoded type
// descriptor the list was created with; it may be empty.
type List struct {
	Name      string
	Handle    string
	TypeName  string
	Schema    []byte
	CreatedAt time.Time
}

// Item is one stored document. Body always carries the item id.
type Item struct {
	List string
	ID   int
	Body []byte
}
