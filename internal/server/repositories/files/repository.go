package files

import (
	"context"

	"github.com/dmitrijs2005/listbuffer/internal/server/models"
)

type Repository interface {
	Put(ctx context.Context, file *models.File) (string, error)
	Get(ctx context.Context, list string, itemID int, folder, filename string) (*models.File, error)
	SelectByItem(ctx context.Context, list string, itemID int) ([]*models.File, error)
	SelectByFolder(ctx context.Context, list, folder string) ([]*models.File, error)
	Delete(ctx context.Context, list string, itemID int, folder, filename string) (string, error)
	DeleteByItem(ctx context.Context, list string, itemID int) ([]string, error)
	DeleteAttachments(ctx context.Context, list string) ([]string, error)
	StorageKeys(ctx context.Context, list string) ([]string, error)
}
