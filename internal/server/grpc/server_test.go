package grpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/client"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/cryptox"
	"github.com/dmitrijs2005/listbuffer/internal/logging"
	"github.com/dmitrijs2005/listbuffer/internal/rpc"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
	"github.com/dmitrijs2005/listbuffer/internal/server/auth"
	"github.com/dmitrijs2005/listbuffer/internal/server/config"
	"github.com/dmitrijs2005/listbuffer/internal/server/models"
	"github.com/dmitrijs2005/listbuffer/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const (
	testAPIKey = "let-me-in"
	testSecret = "secret"
)

// fakeLists records calls and answers from canned values.
type fakeLists struct {
	mu       sync.Mutex
	calls    []string
	clients  []string
	bodies   [][]byte
	pingErr  error
	err      error
	files    []*services.StoredFile
	docs     [][]byte
	nextID   int
	choices  []string
	lastLike [3]int
}

func (f *fakeLists) record(ctx context.Context, call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if id, ok := ClientIDFromContext(ctx); ok {
		f.clients = append(f.clients, id)
	}
	return f.err
}

func (f *fakeLists) Ping(context.Context) error { return f.pingErr }

func (f *fakeLists) CreateTable(ctx context.Context, list, typeName string, raw []byte) (string, error) {
	if err := f.record(ctx, "CreateTable "+list+" "+typeName); err != nil {
		return "", err
	}
	return "handle-" + list, nil
}

func (f *fakeLists) DeleteTable(ctx context.Context, list string) error {
	return f.record(ctx, "DeleteTable "+list)
}

func (f *fakeLists) UpdateTableStructure(ctx context.Context, list, typeName string, raw []byte) error {
	return f.record(ctx, "UpdateTableStructure "+list)
}

func (f *fakeLists) InsertItem(ctx context.Context, list string, body []byte) (int, error) {
	if err := f.record(ctx, "InsertItem "+list); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeLists) UpdateItem(ctx context.Context, list string, id int, body []byte) error {
	return f.record(ctx, fmt.Sprintf("UpdateItem %s %d", list, id))
}

func (f *fakeLists) DeleteItem(ctx context.Context, list string, id int) error {
	return f.record(ctx, fmt.Sprintf("DeleteItem %s %d", list, id))
}

func (f *fakeLists) EmptyTable(ctx context.Context, list string) error {
	return f.record(ctx, "EmptyTable "+list)
}

func (f *fakeLists) Like(ctx context.Context, list string, id, userID int) error {
	f.lastLike = [3]int{1, id, userID}
	return f.record(ctx, "Like "+list)
}

func (f *fakeLists) Unlike(ctx context.Context, list string, id, userID int) error {
	f.lastLike = [3]int{0, id, userID}
	return f.record(ctx, "Unlike "+list)
}

func (f *fakeLists) AttachFileToItem(ctx context.Context, list string, itemID int, filename string, content []byte) error {
	return f.record(ctx, fmt.Sprintf("AttachFileToItem %s %d %s %s", list, itemID, filename, content))
}

func (f *fakeLists) DeleteFileFromItem(ctx context.Context, list string, itemID int, filename string) error {
	return f.record(ctx, fmt.Sprintf("DeleteFileFromItem %s %d %s", list, itemID, filename))
}

func (f *fakeLists) AttachFileToLibrary(ctx context.Context, list, folder, filename string, content, entity []byte) error {
	return f.record(ctx, fmt.Sprintf("AttachFileToLibrary %s %s/%s %s", list, folder, filename, entity))
}

func (f *fakeLists) DeleteFilesFromLibrary(ctx context.Context, list, folder string, filenames []string) error {
	return f.record(ctx, fmt.Sprintf("DeleteFilesFromLibrary %s %s %v", list, folder, filenames))
}

func (f *fakeLists) SelectAllItems(ctx context.Context, list string) ([][]byte, error) {
	if err := f.record(ctx, "SelectAllItems "+list); err != nil {
		return nil, err
	}
	return f.docs, nil
}

func (f *fakeLists) SelectFilesFromItem(ctx context.Context, list string, itemID int) ([]*services.StoredFile, error) {
	if err := f.record(ctx, "SelectFilesFromItem "+list); err != nil {
		return nil, err
	}
	return f.files, nil
}

func (f *fakeLists) SelectFilesFromLibrary(ctx context.Context, list, folder string) ([]*services.StoredFile, error) {
	if err := f.record(ctx, "SelectFilesFromLibrary "+list+" "+folder); err != nil {
		return nil, err
	}
	return f.files, nil
}

func (f *fakeLists) GetChoices(ctx context.Context, list, field string) ([]string, error) {
	if err := f.record(ctx, "GetChoices "+list+" "+field); err != nil {
		return nil, err
	}
	return f.choices, nil
}

func newSessions(t *testing.T) *services.SessionService {
	t.Helper()
	hash, err := cryptox.HashSecret(testAPIKey)
	require.NoError(t, err)
	return services.NewSessionService(config.AuthConfig{
		APIKeyHash: hash,
		JWTSecret:  testSecret,
		TokenTTL:   time.Hour,
	})
}

// startServer serves over an in-memory listener and returns a dialer for it.
func startServer(t *testing.T, lists ListStore) func(ctx context.Context, _ string) (net.Conn, error) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer("bufnet", logging.Discard(), lists, newSessions(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
}

func newClient(t *testing.T, lists ListStore, apiKey string) *client.GRPCClient {
	t.Helper()
	dialer := startServer(t, lists)
	c, err := client.NewListsClientService("passthrough:///bufnet", apiKey, "cli", grpc.WithContextDialer(dialer))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func rawClient(t *testing.T, lists ListStore) *rpc.ListsClient {
	t.Helper()
	dialer := startServer(t, lists)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return rpc.NewListsClient(conn)
}

func tasksType() *schema.Type {
	t := schema.NewType("demo.Task", "Tasks").Text("title").Choice("status", "open", "done").WithLikes()
	if err := t.Validate(); err != nil {
		panic(err)
	}
	return t
}

func TestRoundTrip_ThroughBufferClient(t *testing.T) {
	lists := &fakeLists{
		docs:    [][]byte{[]byte(`{"id":1}`), []byte(`{"id":2}`)},
		choices: []string{"open", "done"},
	}
	c := newClient(t, lists, testAPIKey)
	ctx := context.Background()
	tp := tasksType()

	require.NoError(t, c.Ping(ctx))

	// the client logs in lazily on the first Unauthenticated answer
	id, err := c.InsertItem(ctx, tp, []byte(`{"id":-1,"title":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	handle, err := c.CreateTable(ctx, tp)
	require.NoError(t, err)
	assert.Equal(t, "handle-Tasks", handle)

	require.NoError(t, c.UpdateItem(ctx, tp, []byte(`{"id":1,"title":"b"}`)))
	require.NoError(t, c.Like(ctx, tp, 1, 7))
	assert.Equal(t, [3]int{1, 1, 7}, lists.lastLike)
	require.NoError(t, c.Unlike(ctx, tp, 1, 7))
	require.NoError(t, c.AttachFileToItem(ctx, tp, 1, "a.txt", bytes.NewReader([]byte("abc"))))
	require.NoError(t, c.AttachFileToLibrary(ctx, tp, "docs", "d.md", bytes.NewReader([]byte("d")), []byte(`{"id":1}`)))
	require.NoError(t, c.DeleteFilesFromLibrary(ctx, tp, "docs", []string{"d.md"}))
	require.NoError(t, c.DeleteFileFromItem(ctx, tp, 1, "a.txt"))
	require.NoError(t, c.DeleteItemByID(ctx, tp, 1))
	require.NoError(t, c.Empty(ctx, tp))
	require.NoError(t, c.UpdateTableStructure(ctx, tp))
	require.NoError(t, c.DeleteTable(ctx, tp))

	docs, err := c.SelectAllItems(ctx, tp)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	choices, err := c.GetAvailableChoicesFromField(ctx, tp, "status")
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "done"}, choices)

	assert.Equal(t, []string{
		"InsertItem Tasks",
		"CreateTable Tasks demo.Task",
		"UpdateItem Tasks 1",
		"Like Tasks",
		"Unlike Tasks",
		"AttachFileToItem Tasks 1 a.txt abc",
		`AttachFileToLibrary Tasks docs/d.md {"id":1}`,
		"DeleteFilesFromLibrary Tasks docs [d.md]",
		"DeleteFileFromItem Tasks 1 a.txt",
		"DeleteItem Tasks 1",
		"EmptyTable Tasks",
		"UpdateTableStructure Tasks",
		"DeleteTable Tasks",
		"SelectAllItems Tasks",
		"GetChoices Tasks status",
	}, lists.calls)

	for _, id := range lists.clients {
		assert.Equal(t, "cli", id)
	}
}

func TestRoundTrip_Files(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lists := &fakeLists{files: []*services.StoredFile{{
		File:    &models.File{List: "Tasks", Folder: "docs", Filename: "d.md", Size: 1, Entity: []byte(`{"id":1}`), UploadedAt: at},
		Content: []byte("d"),
	}}}
	c := newClient(t, lists, testAPIKey)

	got, err := c.SelectFilesFromLibrary(context.Background(), tasksType(), "docs")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d.md", got[0].Filename)
	assert.Equal(t, "docs", got[0].Folder)
	assert.Equal(t, "d", string(got[0].Content))
	assert.JSONEq(t, `{"id":1}`, string(got[0].Entity))
	assert.True(t, at.Equal(got[0].UploadedAt))

	got, err = c.SelectFilesFromItem(context.Background(), tasksType(), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRoundTrip_ErrorsMapBackToSentinels(t *testing.T) {
	lists := &fakeLists{}
	c := newClient(t, lists, testAPIKey)
	ctx := context.Background()
	tp := tasksType()

	lists.err = fmt.Errorf("Tasks/5: %w", common.ErrorNotFound)
	err := c.DeleteItemByID(ctx, tp, 5)
	assert.ErrorIs(t, err, common.ErrItemNotFound)

	lists.err = common.ErrNotSupported
	_, err = c.GetAvailableChoicesFromField(ctx, tp, "title")
	assert.ErrorIs(t, err, common.ErrNotSupported)

	lists.err = common.ErrFileTooLarge
	err = c.AttachFileToItem(ctx, tp, 1, "big", bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, common.ErrInvalidDocument)

	lists.err = errors.New("disk on fire")
	_, err = c.InsertItem(ctx, tp, []byte(`{}`))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "disk on fire")
}

func TestLogin_WrongKey(t *testing.T) {
	c := newClient(t, &fakeLists{}, "wrong")

	err := c.Login(context.Background())
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestAccessToken_Required(t *testing.T) {
	rc := rawClient(t, &fakeLists{})

	_, err := rc.InsertItem(context.Background(), &rpc.ItemRequest{List: "Tasks", Body: []byte(`{}`)})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "garbage")
	_, err = rc.InsertItem(ctx, &rpc.ItemRequest{List: "Tasks", Body: []byte(`{}`)})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "invalid token", status.Convert(err).Message())
}

func TestAccessToken_Expired(t *testing.T) {
	rc := rawClient(t, &fakeLists{})

	token, err := auth.GenerateToken("cli", []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, token)
	_, err = rc.EmptyTable(ctx, &rpc.TableRequest{List: "Tasks"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, common.ErrTokenExpired.Error(), status.Convert(err).Message())
}

func TestPing_IsPublicAndReportsDatabase(t *testing.T) {
	lists := &fakeLists{}
	rc := rawClient(t, lists)

	resp, err := rc.Ping(context.Background(), &rpc.Ack{})
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Status)

	lists.pingErr = errors.New("db down")
	resp, err = rc.Ping(context.Background(), &rpc.Ack{})
	require.NoError(t, err)
	assert.Equal(t, "DEGRADED", resp.Status)
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("x: %w", common.ErrorNotFound), codes.NotFound},
		{common.ErrItemNotFound, codes.NotFound},
		{common.ErrorUnauthorized, codes.Unauthenticated},
		{common.ErrTokenExpired, codes.Unauthenticated},
		{common.ErrNotSupported, codes.Unimplemented},
		{common.ErrInvalidDocument, codes.InvalidArgument},
		{common.ErrInvalidSchema, codes.InvalidArgument},
		{common.ErrFieldMissing, codes.InvalidArgument},
		{common.ErrFieldsMissing, codes.InvalidArgument},
		{common.ErrFileTooLarge, codes.InvalidArgument},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(toStatus(tc.err)), tc.err.Error())
	}
	assert.NoError(t, toStatus(nil))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	srv := NewGRPCServer("127.0.0.1:0", logging.Discard(), &fakeLists{}, newSessions(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	srv := NewGRPCServer("127.0.0.1:99999", logging.Discard(), &fakeLists{}, newSessions(t))
	assert.Error(t, srv.Run(context.Background()))
}
