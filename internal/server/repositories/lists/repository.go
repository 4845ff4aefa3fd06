package lists

import (
	"context"

	"github.com/dmitrijs2005/listbuffer/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, list *models.List) (string, error)
	Get(ctx context.Context, name string) (*models.List, error)
	UpdateSchema(ctx context.Context, name, typeName string, schema []byte) error
	Delete(ctx context.Context, name string) error
	NextID(ctx context.Context, name string) (int, error)
}
