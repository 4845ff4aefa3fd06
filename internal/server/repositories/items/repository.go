package items

import (
	"context"

	"github.com/dmitrijs2005/listbuffer/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	Get(ctx context.Context, list string, id int) (*models.Item, error)
	GetForUpdate(ctx context.Context, list string, id int) (*models.Item, error)
	Delete(ctx context.Context, list string, id int) error
	DeleteAll(ctx context.Context, list string) (int64, error)
	SelectAll(ctx context.Context, list string) ([]*models.Item, error)
}
