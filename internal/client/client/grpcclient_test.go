package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/rpc"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type stubServer struct {
	rpc.UnimplementedListsServer

	mu      sync.Mutex
	logins  int
	apiKey  string
	lastReq any
	tokens  []string
}

func tokenFrom(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (s *stubServer) Ping(ctx context.Context, _ *rpc.Ack) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: "OK"}, nil
}

func (s *stubServer) Login(ctx context.Context, in *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.APIKey != s.apiKey {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	s.logins++
	if s.logins == 1 {
		return &rpc.LoginResponse{AccessToken: "t1"}, nil
	}
	return &rpc.LoginResponse{AccessToken: "t2"}, nil
}

func (s *stubServer) InsertItem(ctx context.Context, in *rpc.ItemRequest) (*rpc.InsertItemResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := tokenFrom(ctx)
	s.tokens = append(s.tokens, tok)
	switch tok {
	case "":
		return nil, status.Error(codes.Unauthenticated, "missing token")
	case "t1":
		return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}
	s.lastReq = in
	return &rpc.InsertItemResponse{ID: 42}, nil
}

func (s *stubServer) UpdateItem(ctx context.Context, in *rpc.ItemRequest) (*rpc.Ack, error) {
	s.mu.Lock()
	s.lastReq = in
	s.mu.Unlock()
	return nil, status.Error(codes.NotFound, "item not found")
}

func (s *stubServer) CreateTable(ctx context.Context, in *rpc.TableRequest) (*rpc.CreateTableResponse, error) {
	s.mu.Lock()
	s.lastReq = in
	s.mu.Unlock()
	return &rpc.CreateTableResponse{Handle: "h-1"}, nil
}

func (s *stubServer) AttachFileToLibrary(ctx context.Context, in *rpc.FileRequest) (*rpc.Ack, error) {
	s.mu.Lock()
	s.lastReq = in
	s.mu.Unlock()
	return &rpc.Ack{}, nil
}

func (s *stubServer) SelectFilesFromItem(ctx context.Context, in *rpc.FileRequest) (*rpc.FilesResponse, error) {
	return &rpc.FilesResponse{Files: []rpc.File{{Filename: "a.txt", Size: 1, Content: []byte("a")}}}, nil
}

func newTestClient(t *testing.T, srv *stubServer, apiKey string) *GRPCClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	rpc.RegisterListsServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := NewListsClientService("passthrough:///bufnet", apiKey, "test-client",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func taskType(t *testing.T) *schema.Type {
	t.Helper()
	tp := schema.NewType("demo.Task", "Tasks").WithTitle("title")
	require.NoError(t, tp.Validate())
	return tp
}

func TestInterceptor_LogsInLazilyAndAfterExpiry(t *testing.T) {
	srv := &stubServer{apiKey: "key"}
	c := newTestClient(t, srv, "key")
	ctx := context.Background()

	// no token: login yields t1, which this server already treats as expired
	_, err := c.InsertItem(ctx, taskType(t), []byte(`{"title":"a"}`))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	// t1 expired: login again yields t2
	id, err := c.InsertItem(ctx, taskType(t), []byte(`{"title":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 2, srv.logins)
	assert.Equal(t, []string{"", "t1", "t1", "t2"}, srv.tokens)
}

func TestInterceptor_BadAPIKey(t *testing.T) {
	srv := &stubServer{apiKey: "key"}
	c := newTestClient(t, srv, "wrong")

	_, err := c.InsertItem(context.Background(), taskType(t), []byte(`{}`))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, &stubServer{}, "")
	assert.NoError(t, c.Ping(context.Background()))
}

func TestCreateTable_SendsSchema(t *testing.T) {
	srv := &stubServer{}
	c := newTestClient(t, srv, "")

	handle, err := c.CreateTable(context.Background(), taskType(t))
	require.NoError(t, err)
	assert.Equal(t, "h-1", handle)

	req := srv.lastReq.(*rpc.TableRequest)
	assert.Equal(t, "Tasks", req.List)
	assert.Equal(t, "demo.Task", req.TypeName)

	var got schema.Type
	require.NoError(t, json.Unmarshal(req.Schema, &got))
	assert.Equal(t, "title", got.TitleField)
}

func TestUpdateItem_MapsNotFoundAndSendsID(t *testing.T) {
	srv := &stubServer{}
	c := newTestClient(t, srv, "")

	err := c.UpdateItem(context.Background(), taskType(t), []byte(`{"id":7,"title":"x"}`))
	assert.ErrorIs(t, err, common.ErrItemNotFound)
	assert.Equal(t, 7, srv.lastReq.(*rpc.ItemRequest).ID)

	err = c.UpdateItem(context.Background(), taskType(t), []byte(`{"title":"x"}`))
	assert.ErrorIs(t, err, common.ErrInvalidDocument)
}

func TestAttachFileToLibrary_ReadsContent(t *testing.T) {
	srv := &stubServer{}
	c := newTestClient(t, srv, "")

	err := c.AttachFileToLibrary(context.Background(), taskType(t), "2024", "plan.docx",
		bytes.NewReader([]byte("doc")), []byte(`{"id":1}`))
	require.NoError(t, err)

	req := srv.lastReq.(*rpc.FileRequest)
	assert.Equal(t, []byte("doc"), req.Content)
	assert.JSONEq(t, `{"id":1}`, string(req.Entity))
	assert.Equal(t, "2024", req.Folder)
}

func TestAttach_RejectsFilesTooLargeForOneMessage(t *testing.T) {
	orig := maxUpload
	t.Cleanup(func() { maxUpload = orig })
	maxUpload = 4

	srv := &stubServer{}
	c := newTestClient(t, srv, "")
	ctx := context.Background()

	err := c.AttachFileToItem(ctx, taskType(t), 1, "big.bin", bytes.NewReader([]byte("hello")))
	require.ErrorIs(t, err, common.ErrFileTooLarge)
	err = c.AttachFileToLibrary(ctx, taskType(t), "docs", "big.bin", bytes.NewReader([]byte("hello")), nil)
	require.ErrorIs(t, err, common.ErrFileTooLarge)
	assert.Nil(t, srv.lastReq, "nothing is sent")

	require.NoError(t, c.AttachFileToLibrary(ctx, taskType(t), "docs", "fits.bin", bytes.NewReader([]byte("four")), nil))
	assert.Equal(t, []byte("four"), srv.lastReq.(*rpc.FileRequest).Content)
}

func TestSelectFilesFromItem(t *testing.T) {
	c := newTestClient(t, &stubServer{}, "")

	files, err := c.SelectFilesFromItem(context.Background(), taskType(t), 1)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].Filename)
	assert.Equal(t, []byte("a"), files[0].Content)
}

func TestUnimplementedMapsToNotSupported(t *testing.T) {
	c := newTestClient(t, &stubServer{}, "")

	err := c.Like(context.Background(), taskType(t), 1, 2)
	assert.ErrorIs(t, err, common.ErrNotSupported)
}

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	assert.NoError(t, c.mapError(nil))
	assert.ErrorIs(t, c.mapError(status.Error(codes.Unavailable, "down")), ErrUnavailable)
	assert.ErrorIs(t, c.mapError(status.Error(codes.DeadlineExceeded, "slow")), ErrUnavailable)
	assert.ErrorIs(t, c.mapError(status.Error(codes.PermissionDenied, "no")), common.ErrorUnauthorized)
	assert.ErrorIs(t, c.mapError(status.Error(codes.InvalidArgument, "bad")), common.ErrInvalidDocument)

	plain := errors.New("plain")
	assert.Equal(t, plain, c.mapError(plain))
	assert.ErrorContains(t, c.mapError(status.Error(codes.Internal, "x")), "rpc error")
}
