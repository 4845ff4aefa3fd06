package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/client"
	"github.com/dmitrijs2005/listbuffer/internal/client/dbtest"
	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
	"github.com/stretchr/testify/require"
)

// ---- fixtures ----

type task struct {
	ID         int           `json:"id"`
	OriginalID int           `json:"originalId,omitempty"`
	Title      string        `json:"title"`
	Priority   int           `json:"priority,omitempty"`
	Project    *schema.Ref   `json:"project,omitempty"`
	Status     string        `json:"status,omitempty"`
	Tags       schema.RefSet `json:"tags,omitempty"`
	Secret     string        `json:"secret,omitempty"`
	LikesCount int           `json:"likesCount"`
	LikedBy    schema.RefSet `json:"likedBy,omitempty"`
	Created    string        `json:"created,omitempty"`
	Modified   string        `json:"modified,omitempty"`
}

type project struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Parent int    `json:"parent,omitempty"`
}

func testRegistry() *schema.Registry {
	return schema.NewRegistry().MustRegister(
		schema.NewType("demo.Task", "Tasks").
			WithTitle("title").
			WithBufferID("originalId").
			Int("priority").
			LookupTo("project", "Projects").
			Choice("status", "open", "done").
			RefSet("tags").
			Hidden("secret", schema.KindString).
			WithLikes().
			WithTimestamps("created", "modified"),
		schema.NewType("demo.Project", "Projects").
			WithTitle("name").
			LookupIntTo("parent", "Projects"),
		schema.NewType("demo.Comment", "Comments").
			Text("listName").
			DynamicLookup("target", "listName").
			Text("text"),
	)
}

type fixture struct {
	store    *client.Store
	registry *schema.Registry
	remote   *fakeRemote
	buffer   *Buffer
	tasks    *Table[task]
	projects *Table[project]
	comments *Table[map[string]any]
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		store:    client.NewStore(dbtest.Open(t)),
		registry: testRegistry(),
		remote:   newFakeRemote(),
	}
	f.buffer = NewBuffer(f.store, f.registry, f.remote, opts)

	var err error
	f.tasks, err = OpenTable[task](f.buffer, "demo.Task")
	require.NoError(t, err)
	f.projects, err = OpenTable[project](f.buffer, "demo.Project")
	require.NoError(t, err)
	f.comments, err = OpenTable[map[string]any](f.buffer, "demo.Comment")
	require.NoError(t, err)
	return f
}

func (f *fixture) queue(t *testing.T) []models.Command {
	t.Helper()
	cmds, err := f.buffer.Commands(context.Background())
	require.NoError(t, err)
	return cmds
}

func (f *fixture) actions(t *testing.T) []models.Action {
	t.Helper()
	var out []models.Action
	for _, c := range f.queue(t) {
		out = append(out, c.Action)
	}
	return out
}

// putSynced stores an item as if it came from the remote.
func (f *fixture) putSynced(t *testing.T, list string, id int, body string) {
	t.Helper()
	err := f.store.Items(f.store.DB()).Put(context.Background(), &models.Item{Collection: list, ID: id, Body: []byte(body)})
	require.NoError(t, err)
}

// ---- fake remote ----

type fakeRemote struct {
	mu sync.Mutex

	nextID int
	items  map[string]map[int][]byte
	files  map[string][]models.RemoteFile
	likes  []string
	calls  []string

	choices map[string][]string

	// fail makes the named method return the error.
	fail map[string]error
	// hooks run at the start of the named method, outside the lock.
	hooks map[string]func(ctx context.Context) error
}

var _ client.RemoteTable = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		nextID:  100,
		items:   map[string]map[int][]byte{},
		files:   map[string][]models.RemoteFile{},
		fail:    map[string]error{},
		hooks:   map[string]func(ctx context.Context) error{},
		choices: map[string][]string{},
	}
}

func (r *fakeRemote) setFail(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, method)
		return
	}
	r.fail[method] = err
}

func (r *fakeRemote) setHook(method string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[method] = fn
}

func (r *fakeRemote) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRemote) item(list string, id int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[list][id]
}

// enter records the call and reports the configured failure.
func (r *fakeRemote) enter(ctx context.Context, method, list string) error {
	r.mu.Lock()
	hook := r.hooks[method]
	r.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, method+" "+list)
	return r.fail[method]
}

func itemFilesKey(list string, id int) string { return fmt.Sprintf("%s/%d", list, id) }
func libraryKey(list, folder string) string   { return list + ":" + folder }

func (r *fakeRemote) CreateTable(ctx context.Context, t *schema.Type) (string, error) {
	if err := r.enter(ctx, "CreateTable", t.List); err != nil {
		return "", err
	}
	return "handle-" + t.List, nil
}

func (r *fakeRemote) DeleteTable(ctx context.Context, t *schema.Type) error {
	return r.enter(ctx, "DeleteTable", t.List)
}

func (r *fakeRemote) UpdateTableStructure(ctx context.Context, t *schema.Type) error {
	return r.enter(ctx, "UpdateTableStructure", t.List)
}

func (r *fakeRemote) InsertItem(ctx context.Context, t *schema.Type, doc []byte) (int, error) {
	if err := r.enter(ctx, "InsertItem", t.List); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	body, err := t.SetID(doc, id)
	if err != nil {
		return 0, err
	}
	if r.items[t.List] == nil {
		r.items[t.List] = map[int][]byte{}
	}
	r.items[t.List][id] = body
	return id, nil
}

func (r *fakeRemote) UpdateItem(ctx context.Context, t *schema.Type, doc []byte) error {
	if err := r.enter(ctx, "UpdateItem", t.List); err != nil {
		return err
	}

	id, _ := t.ID(doc)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.List][id]; !ok {
		return common.ErrItemNotFound
	}
	r.items[t.List][id] = doc
	return nil
}

func (r *fakeRemote) DeleteItemByID(ctx context.Context, t *schema.Type, id int) error {
	if err := r.enter(ctx, "DeleteItemByID", t.List); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items[t.List], id)
	return nil
}

func (r *fakeRemote) Empty(ctx context.Context, t *schema.Type) error {
	if err := r.enter(ctx, "Empty", t.List); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, t.List)
	return nil
}

func (r *fakeRemote) Like(ctx context.Context, t *schema.Type, id, userID int) error {
	if err := r.enter(ctx, "Like", t.List); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.likes = append(r.likes, fmt.Sprintf("+%d/%d", id, userID))
	return nil
}

func (r *fakeRemote) Unlike(ctx context.Context, t *schema.Type, id, userID int) error {
	if err := r.enter(ctx, "Unlike", t.List); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.likes = append(r.likes, fmt.Sprintf("-%d/%d", id, userID))
	return nil
}

func (r *fakeRemote) putFile(key string, f models.RemoteFile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	files := r.files[key]
	for i := range files {
		if files[i].Filename == f.Filename {
			files[i] = f
			return
		}
	}
	r.files[key] = append(files, f)
}

func (r *fakeRemote) AttachFileToItem(ctx context.Context, t *schema.Type, id int, filename string, content io.Reader) error {
	if err := r.enter(ctx, "AttachFileToItem", t.List); err != nil {
		return err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	r.putFile(itemFilesKey(t.List, id), models.RemoteFile{Filename: filename, Size: int64(len(data)), Content: data, UploadedAt: time.Now()})
	return nil
}

func (r *fakeRemote) DeleteFileFromItem(ctx context.Context, t *schema.Type, id int, filename string) error {
	if err := r.enter(ctx, "DeleteFileFromItem", t.List); err != nil {
		return err
	}
	r.removeFiles(itemFilesKey(t.List, id), filename)
	return nil
}

func (r *fakeRemote) AttachFileToLibrary(ctx context.Context, t *schema.Type, folder, filename string, content io.Reader, entity []byte) error {
	if err := r.enter(ctx, "AttachFileToLibrary", t.List); err != nil {
		return err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	r.putFile(libraryKey(t.List, folder), models.RemoteFile{
		Filename: filename, Folder: folder, Size: int64(len(data)), Content: data, Entity: entity, UploadedAt: time.Now(),
	})
	return nil
}

func (r *fakeRemote) DeleteFilesFromLibrary(ctx context.Context, t *schema.Type, folder string, filenames []string) error {
	if err := r.enter(ctx, "DeleteFilesFromLibrary", t.List); err != nil {
		return err
	}
	r.removeFiles(libraryKey(t.List, folder), filenames...)
	return nil
}

func (r *fakeRemote) removeFiles(key string, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := map[string]bool{}
	for _, n := range names {
		drop[n] = true
	}
	var kept []models.RemoteFile
	for _, f := range r.files[key] {
		if !drop[f.Filename] {
			kept = append(kept, f)
		}
	}
	r.files[key] = kept
}

func (r *fakeRemote) SelectAllItems(ctx context.Context, t *schema.Type) ([][]byte, error) {
	if err := r.enter(ctx, "SelectAllItems", t.List); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int, 0, len(r.items[t.List]))
	for id := range r.items[t.List] {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.items[t.List][id])
	}
	return out, nil
}

func (r *fakeRemote) SelectFilesFromItem(ctx context.Context, t *schema.Type, id int) ([]models.RemoteFile, error) {
	if err := r.enter(ctx, "SelectFilesFromItem", t.List); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.RemoteFile(nil), r.files[itemFilesKey(t.List, id)]...), nil
}

func (r *fakeRemote) SelectFilesFromLibrary(ctx context.Context, t *schema.Type, folder string) ([]models.RemoteFile, error) {
	if err := r.enter(ctx, "SelectFilesFromLibrary", t.List); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.RemoteFile(nil), r.files[libraryKey(t.List, folder)]...), nil
}

func (r *fakeRemote) GetAvailableChoicesFromField(ctx context.Context, t *schema.Type, field string) ([]string, error) {
	if err := r.enter(ctx, "GetAvailableChoicesFromField", t.List); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.choices[t.List+"."+field], nil
}
