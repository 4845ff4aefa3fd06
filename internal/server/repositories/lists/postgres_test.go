package lists

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate_ReturnsStoredHandle(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO lists .* ON CONFLICT \(name\) DO UPDATE SET .* RETURNING handle`).
		WithArgs("Tasks", "h-new", "demo.Task", `{"name":"demo.Task"}`).
		WillReturnRows(sqlmock.NewRows([]string{"handle"}).AddRow("h-old"))

	handle, err := repo.Create(context.Background(), &models.List{
		Name: "Tasks", Handle: "h-new", TypeName: "demo.Task", Schema: []byte(`{"name":"demo.Task"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "h-old", handle)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_NilSchemaIsNull(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO lists`).
		WithArgs("Tasks", "h", "", nil).
		WillReturnRows(sqlmock.NewRows([]string{"handle"}).AddRow("h"))

	_, err := repo.Create(context.Background(), &models.List{Name: "Tasks", Handle: "h"})
	require.NoError(t, err)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO lists`).WillReturnError(errors.New("db is down"))

	_, err := repo.Create(context.Background(), &models.List{Name: "Tasks", Handle: "h"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`failed to create list: .*db is down`), err.Error())
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT name, handle, type_name, schema, created_at FROM lists WHERE name = \$1`).
		WithArgs("Tasks").
		WillReturnRows(sqlmock.NewRows([]string{"name", "handle", "type_name", "schema", "created_at"}).
			AddRow("Tasks", "h", "demo.Task", []byte(`{}`), created))

	l, err := repo.Get(context.Background(), "Tasks")
	require.NoError(t, err)
	assert.Equal(t, &models.List{Name: "Tasks", Handle: "h", TypeName: "demo.Task", Schema: []byte(`{}`), CreatedAt: created}, l)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM lists`).WithArgs("Nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "Nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateSchema(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE lists SET type_name = \$2, schema = \$3 WHERE name = \$1`).
		WithArgs("Tasks", "demo.Task", `{"a":1}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE lists`).
		WithArgs("Nope", "demo.Task", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateSchema(context.Background(), "Tasks", "demo.Task", []byte(`{"a":1}`)))
	assert.ErrorIs(t, repo.UpdateSchema(context.Background(), "Nope", "demo.Task", nil), common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM lists WHERE name = \$1`).WithArgs("Tasks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM lists`).WithArgs("Tasks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM lists`).WithArgs("Tasks").WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	require.NoError(t, repo.Delete(context.Background(), "Tasks"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "Tasks"), common.ErrorNotFound)

	err := repo.Delete(context.Background(), "Tasks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected error")
}

func TestNextID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE lists SET next_id = next_id \+ 1 WHERE name = \$1 RETURNING next_id`).
		WithArgs("Tasks").
		WillReturnRows(sqlmock.NewRows([]string{"next_id"}).AddRow(7))
	mock.ExpectQuery(`UPDATE lists SET next_id`).WithArgs("Nope").WillReturnError(sql.ErrNoRows)

	id, err := repo.NextID(context.Background(), "Tasks")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	_, err = repo.NextID(context.Background(), "Nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
