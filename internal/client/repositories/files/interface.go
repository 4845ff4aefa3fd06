package files

import (
	"context"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
)

// Repository stores attachment metadata and cached content.
type Repository interface {
	// AddAttachment stores meta and, unless residency is Server, the content.
	// An existing attachment with the same key is replaced.
	AddAttachment(ctx context.Context, meta *models.AttachmentMeta, content []byte, residency models.Residency) (string, error)

	// RemoveAttachment deletes the attachment identified by meta.
	RemoveAttachment(ctx context.Context, meta *models.AttachmentMeta) error

	// RemoveByKey deletes the attachment stored under key.
	RemoveByKey(ctx context.Context, key string) error

	// GetByOwner lists the item attachments of parentID in list.
	GetByOwner(ctx context.Context, list string, parentID int) ([]models.Attachment, error)

	// Get returns the metadata stored under key, without content.
	Get(ctx context.Context, key string) (*models.Attachment, error)

	// GetContentByID returns the attachment with its cached content. The
	// content is checked against its hash.
	GetContentByID(ctx context.Context, key string) (*models.Attachment, error)

	// ListFolder lists the document library files of a folder.
	ListFolder(ctx context.Context, list, folder string) ([]models.Attachment, error)

	// ListByList lists every attachment of a list.
	ListByList(ctx context.Context, list string) ([]models.Attachment, error)

	// UpdateMeta rewrites the metadata of the attachment stored under oldKey;
	// the key is derived again from meta.
	UpdateMeta(ctx context.Context, oldKey string, meta *models.AttachmentMeta) (string, error)

	// ClearContent drops the cached bytes and marks the attachment Server.
	ClearContent(ctx context.Context, key string) error

	// DeleteAll wipes the vault.
	DeleteAll(ctx context.Context) error
}
