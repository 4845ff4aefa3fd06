package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
	"github.com/dmitrijs2005/listbuffer/internal/logging"
	"github.com/dmitrijs2005/listbuffer/internal/server/config"
	"github.com/dmitrijs2005/listbuffer/internal/server/models"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/files"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/items"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/lists"
	"github.com/stretchr/testify/require"
)

// memState backs the in-memory repositories. Transactions are not modelled:
// the repositories ignore the DBTX they are bound to.
type memState struct {
	mu     sync.Mutex
	lists  map[string]*models.List
	nextID map[string]int
	items  map[string]map[int][]byte
	files  map[string]*models.File
}

func newMemState() *memState {
	return &memState{
		lists:  map[string]*models.List{},
		nextID: map[string]int{},
		items:  map[string]map[int][]byte{},
		files:  map[string]*models.File{},
	}
}

func fileKey(list string, itemID int, folder, filename string) string {
	return fmt.Sprintf("%s|%d|%s|%s", list, itemID, folder, filename)
}

type memLists struct{ s *memState }

func (r memLists) Create(_ context.Context, l *models.List) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if old, ok := r.s.lists[l.Name]; ok {
		old.TypeName, old.Schema = l.TypeName, l.Schema
		return old.Handle, nil
	}
	cp := *l
	r.s.lists[l.Name] = &cp
	r.s.items[l.Name] = map[int][]byte{}
	return l.Handle, nil
}

func (r memLists) Get(_ context.Context, name string) (*models.List, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lists[name]
	if !ok {
		return nil, fmt.Errorf("list %s: %w", name, common.ErrorNotFound)
	}
	cp := *l
	return &cp, nil
}

func (r memLists) UpdateSchema(_ context.Context, name, typeName string, schema []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lists[name]
	if !ok {
		return fmt.Errorf("list %s: %w", name, common.ErrorNotFound)
	}
	l.TypeName, l.Schema = typeName, schema
	return nil
}

func (r memLists) Delete(_ context.Context, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.lists[name]; !ok {
		return fmt.Errorf("list %s: %w", name, common.ErrorNotFound)
	}
	delete(r.s.lists, name)
	delete(r.s.items, name)
	for k, f := range r.s.files {
		if f.List == name {
			delete(r.s.files, k)
		}
	}
	return nil
}

func (r memLists) NextID(_ context.Context, name string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.lists[name]; !ok {
		return 0, fmt.Errorf("list %s: %w", name, common.ErrorNotFound)
	}
	r.s.nextID[name]++
	return r.s.nextID[name], nil
}

type memItems struct{ s *memState }

func (r memItems) Insert(_ context.Context, it *models.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.items[it.List][it.ID]; dup {
		return fmt.Errorf("duplicate item %d", it.ID)
	}
	r.s.items[it.List][it.ID] = it.Body
	return nil
}

func (r memItems) Update(_ context.Context, it *models.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.items[it.List][it.ID]; !ok {
		return fmt.Errorf("%s/%d: %w", it.List, it.ID, common.ErrorNotFound)
	}
	r.s.items[it.List][it.ID] = it.Body
	return nil
}

func (r memItems) Get(_ context.Context, list string, id int) (*models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.items[list][id]
	if !ok {
		return nil, fmt.Errorf("%s/%d: %w", list, id, common.ErrorNotFound)
	}
	return &models.Item{List: list, ID: id, Body: b}, nil
}

func (r memItems) GetForUpdate(ctx context.Context, list string, id int) (*models.Item, error) {
	return r.Get(ctx, list, id)
}

func (r memItems) Delete(_ context.Context, list string, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.items[list][id]; !ok {
		return fmt.Errorf("%s/%d: %w", list, id, common.ErrorNotFound)
	}
	delete(r.s.items[list], id)
	return nil
}

func (r memItems) DeleteAll(_ context.Context, list string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := int64(len(r.s.items[list]))
	r.s.items[list] = map[int][]byte{}
	return n, nil
}

func (r memItems) SelectAll(_ context.Context, list string) ([]*models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Item
	for id, b := range r.s.items[list] {
		out = append(out, &models.Item{List: list, ID: id, Body: b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memFiles struct{ s *memState }

func (r memFiles) Put(_ context.Context, f *models.File) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := fileKey(f.List, f.ItemID, f.Folder, f.Filename)
	var previous string
	if old, ok := r.s.files[k]; ok {
		previous = old.StorageKey
	}
	cp := *f
	r.s.files[k] = &cp
	return previous, nil
}

func (r memFiles) Get(_ context.Context, list string, itemID int, folder, filename string) (*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[fileKey(list, itemID, folder, filename)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *f
	return &cp, nil
}

func (r memFiles) match(pred func(*models.File) bool) []*models.File {
	var out []*models.File
	for _, f := range r.s.files {
		if pred(f) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

func (r memFiles) SelectByItem(_ context.Context, list string, itemID int) ([]*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.match(func(f *models.File) bool { return f.List == list && f.ItemID == itemID && f.Folder == "" }), nil
}

func (r memFiles) SelectByFolder(_ context.Context, list, folder string) ([]*models.File, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.match(func(f *models.File) bool { return f.List == list && f.ItemID == 0 && f.Folder == folder }), nil
}

func (r memFiles) Delete(_ context.Context, list string, itemID int, folder, filename string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := fileKey(list, itemID, folder, filename)
	f, ok := r.s.files[k]
	if !ok {
		return "", common.ErrorNotFound
	}
	delete(r.s.files, k)
	return f.StorageKey, nil
}

func (r memFiles) deleteWhere(pred func(*models.File) bool) []string {
	var keys []string
	for k, f := range r.s.files {
		if pred(f) {
			keys = append(keys, f.StorageKey)
			delete(r.s.files, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (r memFiles) DeleteByItem(_ context.Context, list string, itemID int) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.deleteWhere(func(f *models.File) bool { return f.List == list && f.ItemID == itemID && f.Folder == "" }), nil
}

func (r memFiles) DeleteAttachments(_ context.Context, list string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.deleteWhere(func(f *models.File) bool { return f.List == list && f.ItemID != 0 }), nil
}

func (r memFiles) StorageKeys(_ context.Context, list string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var keys []string
	for _, f := range r.match(func(f *models.File) bool { return f.List == list }) {
		keys = append(keys, f.StorageKey)
	}
	return keys, nil
}

type memRepoManager struct{ s *memState }

func (m memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m memRepoManager) Lists(dbx.DBTX) lists.Repository             { return memLists(m) }
func (m memRepoManager) Items(dbx.DBTX) items.Repository             { return memItems(m) }
func (m memRepoManager) Files(dbx.DBTX) files.Repository             { return memFiles(m) }

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func (b *memBlobs) Put(_ context.Context, key string, content []byte) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), content...)
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.objects[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return c, nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type listFixture struct {
	svc   *ListService
	state *memState
	blobs *memBlobs
	mock  sqlmock.Sqlmock
}

func newListFixture(t *testing.T, maxFileSize int64) *listFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	state := newMemState()
	blobs := &memBlobs{objects: map[string][]byte{}}
	svc := NewListService(db, memRepoManager{state}, blobs, &config.Config{MaxFileSize: maxFileSize}, logging.Discard())

	n := 0
	svc.newKey = func(handle string) string {
		n++
		return fmt.Sprintf("%s/%d", handle, n)
	}
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	return &listFixture{svc: svc, state: state, blobs: blobs, mock: mock}
}

// tx expects one committed transaction.
func (f *listFixture) tx() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}

// rollback expects one failed transaction.
func (f *listFixture) rollback() {
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
}
