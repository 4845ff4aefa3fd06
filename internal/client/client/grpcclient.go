package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/rpc"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	apiKey      string
	clientID    string
	dialOptions []grpc.DialOption

	conn   *grpc.ClientConn
	client *rpc.ListsClient

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// accessTokenInterceptor attaches the access token. When the server rejects
// the call because the token expired, or no session exists yet, it logs in
// once and retries.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	token := s.token()
	err := invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
	if err == nil || method == rpc.FullMethod(rpc.MethodLogin) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated {
		return err
	}
	if token != "" && st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	if err := s.Login(ctx); err != nil {
		return err
	}
	return invoker(withAccessToken(ctx, s.token()), method, req, reply, cc, opts...)
}

// NewListsClientService connects to the list server. Additional dial
// options are appended to the defaults.
func NewListsClientService(endpointURL, apiKey, clientID string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, apiKey: apiKey, clientID: clientID, dialOptions: opts}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(rpc.MaxMessageSize),
			grpc.MaxCallSendMsgSize(rpc.MaxMessageSize),
		),
	}, s.dialOptions...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewListsClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Login(ctx context.Context) error {
	resp, err := s.client.Login(ctx, &rpc.LoginRequest{APIKey: s.apiKey, ClientID: s.clientID})
	if err != nil {
		return s.mapError(err)
	}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.mu.Unlock()
	return nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &rpc.Ack{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) CreateTable(ctx context.Context, t *schema.Type) (string, error) {
	req, err := tableRequest(t, true)
	if err != nil {
		return "", err
	}
	resp, err := s.client.CreateTable(ctx, req)
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Handle, nil
}

func (s *GRPCClient) DeleteTable(ctx context.Context, t *schema.Type) error {
	req, _ := tableRequest(t, false)
	_, err := s.client.DeleteTable(ctx, req)
	return s.mapError(err)
}

func (s *GRPCClient) UpdateTableStructure(ctx context.Context, t *schema.Type) error {
	req, err := tableRequest(t, true)
	if err != nil {
		return err
	}
	_, err = s.client.UpdateTableStructure(ctx, req)
	return s.mapError(err)
}

func (s *GRPCClient) InsertItem(ctx context.Context, t *schema.Type, doc []byte) (int, error) {
	resp, err := s.client.InsertItem(ctx, &rpc.ItemRequest{List: t.List, Body: doc})
	if err != nil {
		return 0, s.mapError(err)
	}
	return resp.ID, nil
}

func (s *GRPCClient) UpdateItem(ctx context.Context, t *schema.Type, doc []byte) error {
	id, ok := t.ID(doc)
	if !ok {
		return fmt.Errorf("%w: %s has no %s", common.ErrInvalidDocument, t.Name, t.IDField)
	}
	_, err := s.client.UpdateItem(ctx, &rpc.ItemRequest{List: t.List, ID: id, Body: doc})
	return s.mapError(err)
}

func (s *GRPCClient) DeleteItemByID(ctx context.Context, t *schema.Type, id int) error {
	_, err := s.client.DeleteItem(ctx, &rpc.ItemRequest{List: t.List, ID: id})
	return s.mapError(err)
}

func (s *GRPCClient) Empty(ctx context.Context, t *schema.Type) error {
	_, err := s.client.EmptyTable(ctx, &rpc.TableRequest{List: t.List})
	return s.mapError(err)
}

func (s *GRPCClient) Like(ctx context.Context, t *schema.Type, id, userID int) error {
	_, err := s.client.Like(ctx, &rpc.LikeRequest{List: t.List, ID: id, UserID: userID})
	return s.mapError(err)
}

func (s *GRPCClient) Unlike(ctx context.Context, t *schema.Type, id, userID int) error {
	_, err := s.client.Unlike(ctx, &rpc.LikeRequest{List: t.List, ID: id, UserID: userID})
	return s.mapError(err)
}

// maxUpload is rpc.MaxFileSize; tests lower it.
var maxUpload int64 = rpc.MaxFileSize

// readUpload reads file content, refusing anything that cannot fit a message.
func readUpload(filename string, content io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(content, maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(b)) > maxUpload {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", common.ErrFileTooLarge, filename, maxUpload)
	}
	return b, nil
}

func (s *GRPCClient) AttachFileToItem(ctx context.Context, t *schema.Type, id int, filename string, content io.Reader) error {
	b, err := readUpload(filename, content)
	if err != nil {
		return err
	}
	_, err = s.client.AttachFileToItem(ctx, &rpc.FileRequest{List: t.List, ItemID: id, Filename: filename, Content: b})
	return s.mapError(err)
}

func (s *GRPCClient) DeleteFileFromItem(ctx context.Context, t *schema.Type, id int, filename string) error {
	_, err := s.client.DeleteFileFromItem(ctx, &rpc.FileRequest{List: t.List, ItemID: id, Filename: filename})
	return s.mapError(err)
}

func (s *GRPCClient) AttachFileToLibrary(ctx context.Context, t *schema.Type, folder, filename string, content io.Reader, entity []byte) error {
	b, err := readUpload(filename, content)
	if err != nil {
		return err
	}
	_, err = s.client.AttachFileToLibrary(ctx, &rpc.FileRequest{
		List: t.List, Folder: folder, Filename: filename, Content: b, Entity: entity,
	})
	return s.mapError(err)
}

func (s *GRPCClient) DeleteFilesFromLibrary(ctx context.Context, t *schema.Type, folder string, filenames []string) error {
	_, err := s.client.DeleteFilesFromLibrary(ctx, &rpc.DeleteFilesRequest{List: t.List, Folder: folder, Filenames: filenames})
	return s.mapError(err)
}

func (s *GRPCClient) SelectAllItems(ctx context.Context, t *schema.Type) ([][]byte, error) {
	resp, err := s.client.SelectAllItems(ctx, &rpc.TableRequest{List: t.List})
	if err != nil {
		return nil, s.mapError(err)
	}
	items := make([][]byte, 0, len(resp.Items))
	for _, raw := range resp.Items {
		items = append(items, []byte(raw))
	}
	return items, nil
}

func (s *GRPCClient) SelectFilesFromItem(ctx context.Context, t *schema.Type, id int) ([]models.RemoteFile, error) {
	resp, err := s.client.SelectFilesFromItem(ctx, &rpc.FileRequest{List: t.List, ItemID: id})
	if err != nil {
		return nil, s.mapError(err)
	}
	return remoteFiles(resp.Files), nil
}

func (s *GRPCClient) SelectFilesFromLibrary(ctx context.Context, t *schema.Type, folder string) ([]models.RemoteFile, error) {
	resp, err := s.client.SelectFilesFromLibrary(ctx, &rpc.FileRequest{List: t.List, Folder: folder})
	if err != nil {
		return nil, s.mapError(err)
	}
	return remoteFiles(resp.Files), nil
}

func (s *GRPCClient) GetAvailableChoicesFromField(ctx context.Context, t *schema.Type, field string) ([]string, error) {
	resp, err := s.client.GetChoices(ctx, &rpc.FieldRequest{List: t.List, Field: field})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Choices, nil
}

func tableRequest(t *schema.Type, withSchema bool) (*rpc.TableRequest, error) {
	req := &rpc.TableRequest{List: t.List, TypeName: t.Name}
	if withSchema {
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema of %s: %w", t.Name, err)
		}
		req.Schema = raw
	}
	return req, nil
}

func remoteFiles(in []rpc.File) []models.RemoteFile {
	out := make([]models.RemoteFile, 0, len(in))
	for _, f := range in {
		out = append(out, models.RemoteFile{
			Filename:   f.Filename,
			Folder:     f.Folder,
			Size:       f.Size,
			Content:    f.Content,
			Entity:     []byte(f.Entity),
			UploadedAt: f.UploadedAt,
		})
	}
	return out
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrItemNotFound, st.Message())
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", common.ErrorUnauthorized, st.Message())
	case codes.Unimplemented:
		return fmt.Errorf("%w: %s", common.ErrNotSupported, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrInvalidDocument, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return errors.Join(ErrUnavailable, err)
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
