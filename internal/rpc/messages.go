package rpc

import (
	"encoding/json"
	"time"
)

// Ack is the response of operations that return nothing.
type Ack struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type LoginRequest struct {
	APIKey   string `json:"api_key"`
	ClientID string `json:"client_id"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// TableRequest addresses a list. Schema carries the type descriptor on
// CreateTable and UpdateTableStructure.
type TableRequest struct {
	List     string          `json:"list"`
	TypeName string          `json:"type_name,omitempty"`
	Schema   json.RawMessage `json:"schema,omitempty"`
}

type CreateTableResponse struct {
	Handle string `json:"handle"`
}

type ItemRequest struct {
	List string          `json:"list"`
	ID   int             `json:"id,omitempty"`
	Body json.RawMessage `json:"body,omitempty"`
}

type InsertItemResponse struct {
	ID int `json:"id"`
}

type LikeRequest struct {
	List   string `json:"list"`
	ID     int    `json:"id"`
	UserID int    `json:"user_id"`
}

// FileRequest addresses an item attachment (ItemID) or a library file
// (Folder).
type FileRequest struct {
	List     string          `json:"list"`
	ItemID   int             `json:"item_id,omitempty"`
	Folder   string          `json:"folder,omitempty"`
	Filename string          `json:"filename,omitempty"`
	Content  []byte          `json:"content,omitempty"`
	Entity   json.RawMessage `json:"entity,omitempty"`
}

type DeleteFilesRequest struct {
	List      string   `json:"list"`
	Folder    string   `json:"folder"`
	Filenames []string `json:"filenames"`
}

type FieldRequest struct {
	List  string `json:"list"`
	Field string `json:"field"`
}

type ItemsResponse struct {
	Items []json.RawMessage `json:"items"`
}

type File struct {
	Filename   string          `json:"filename"`
	Folder     string          `json:"folder,omitempty"`
	Size       int64           `json:"size"`
	Content    []byte          `json:"content,omitempty"`
	Entity     json.RawMessage `json:"entity,omitempty"`
	UploadedAt time.Time       `json:"uploaded_at"`
}

type FilesResponse struct {
	Files []File `json:"files"`
}

type ChoicesResponse struct {
	Choices []string `json:"choices"`
}
