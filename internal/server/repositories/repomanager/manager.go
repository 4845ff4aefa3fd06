package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/files"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/items"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/lists"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Lists(db dbx.DBTX) lists.Repository
	Items(db dbx.DBTX) items.Repository
	Files(db dbx.DBTX) files.Repository
}
