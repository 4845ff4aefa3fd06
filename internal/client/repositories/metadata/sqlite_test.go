package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_AbsentKey(t *testing.T) {
	r := NewSQLiteRepository(dbtest.Open(t))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSet_Upserts(t *testing.T) {
	r := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyLastLogin, []byte("first")))
	require.NoError(t, r.Set(ctx, KeyLastLogin, []byte("second")))

	v, err := r.Get(ctx, KeyLastLogin)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), v)
}

func TestDelete_Idempotent(t *testing.T) {
	r := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, ListHandleKey("Tasks"), []byte("h-1")))
	require.NoError(t, r.Delete(ctx, ListHandleKey("Tasks")))
	require.NoError(t, r.Delete(ctx, ListHandleKey("Tasks")))

	v, err := r.Get(ctx, ListHandleKey("Tasks"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestHandles(t *testing.T) {
	r := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	h, err := r.Handles(ctx)
	require.NoError(t, err)
	assert.Empty(t, h)

	require.NoError(t, r.Set(ctx, ListHandleKey("Tasks"), []byte("h-1")))
	require.NoError(t, r.Set(ctx, ListHandleKey("Notes"), []byte("h-2")))
	require.NoError(t, r.Set(ctx, KeyLastDrain, []byte(`{}`)))
	// '_' must not act as a wildcard.
	require.NoError(t, r.Set(ctx, "listXhandle:Fake", []byte("h-3")))

	h, err = r.Handles(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Tasks": "h-1", "Notes": "h-2"}, h)
}

func TestJSONHelpers(t *testing.T) {
	r := NewSQLiteRepository(dbtest.Open(t))
	ctx := context.Background()

	type stamp struct {
		At    time.Time `json:"at"`
		Count int       `json:"count"`
	}

	var got stamp
	ok, err := GetJSON(ctx, r, KeyLastDrain, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	want := stamp{At: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), Count: 7}
	require.NoError(t, SetJSON(ctx, r, KeyLastDrain, want))

	ok, err = GetJSON(ctx, r, KeyLastDrain, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, r.Set(ctx, KeyLastLogin, []byte("{broken")))
	_, err = GetJSON(ctx, r, KeyLastLogin, &got)
	assert.ErrorContains(t, err, `decode "last_login"`)

	assert.Error(t, SetJSON(ctx, r, KeyLastLogin, make(chan int)))
}

func TestClosedDB(t *testing.T) {
	db := dbtest.Open(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	assert.ErrorContains(t, err, `read "k"`)
	assert.ErrorContains(t, r.Set(ctx, "k", nil), `write "k"`)
	assert.ErrorContains(t, r.Delete(ctx, "k"), `remove "k"`)
	_, err = r.Handles(ctx)
	assert.ErrorContains(t, err, "list handles")
}
