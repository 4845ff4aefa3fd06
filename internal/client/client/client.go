package client

import (
	"context"
	"io"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
)

// RemoteTable is the list backend the buffer replays against. Documents
// are raw JSON objects shaped by the type descriptor.
type RemoteTable interface {
	CreateTable(ctx context.Context, t *schema.Type) (string, error)
	DeleteTable(ctx context.Context, t *schema.Type) error
	UpdateTableStructure(ctx context.Context, t *schema.Type) error

	InsertItem(ctx context.Context, t *schema.Type, doc []byte) (int, error)
	UpdateItem(ctx context.Context, t *schema.Type, doc []byte) error
	DeleteItemByID(ctx context.Context, t *schema.Type, id int) error
	Empty(ctx context.Context, t *schema.Type) error

	Like(ctx context.Context, t *schema.Type, id, userID int) error
	Unlike(ctx context.Context, t *schema.Type, id, userID int) error

	AttachFileToItem(ctx context.Context, t *schema.Type, id int, filename string, content io.Reader) error
	DeleteFileFromItem(ctx context.Context, t *schema.Type, id int, filename string) error
	AttachFileToLibrary(ctx context.Context, t *schema.Type, folder, filename string, content io.Reader, entity []byte) error
	DeleteFilesFromLibrary(ctx context.Context, t *schema.Type, folder string, filenames []string) error

	SelectAllItems(ctx context.Context, t *schema.Type) ([][]byte, error)
	SelectFilesFromItem(ctx context.Context, t *schema.Type, id int) ([]models.RemoteFile, error)
	SelectFilesFromLibrary(ctx context.Context, t *schema.Type, folder string) ([]models.RemoteFile, error)
	GetAvailableChoicesFromField(ctx context.Context, t *schema.Type, field string) ([]string, error)
}

// Client is a RemoteTable with a session.
type Client interface {
	RemoteTable
	Login(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
