package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ListsClient calls the Lists service over a client connection.
type ListsClient struct {
	cc grpc.ClientConnInterface
}

func NewListsClient(cc grpc.ClientConnInterface) *ListsClient {
	return &ListsClient{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req *Req, opts ...grpc.CallOption) (*Resp, error) {
	in, err := Encode(req)
	if err != nil {
		return nil, err
	}
	out := new(wrapperspb.BytesValue)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := Decode(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *ListsClient) Ping(ctx context.Context, in *Ack, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[Ack, PingResponse](ctx, c.cc, MethodPing, in, opts...)
}

func (c *ListsClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginRequest, LoginResponse](ctx, c.cc, MethodLogin, in, opts...)
}

func (c *ListsClient) CreateTable(ctx context.Context, in *TableRequest, opts ...grpc.CallOption) (*CreateTableResponse, error) {
	return invoke[TableRequest, CreateTableResponse](ctx, c.cc, MethodCreateTable, in, opts...)
}

func (c *ListsClient) DeleteTable(ctx context.Context, in *TableRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[TableRequest, Ack](ctx, c.cc, MethodDeleteTable, in, opts...)
}

func (c *ListsClient) UpdateTableStructure(ctx context.Context, in *TableRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[TableRequest, Ack](ctx, c.cc, MethodUpdateTableStructure, in, opts...)
}

func (c *ListsClient) InsertItem(ctx context.Context, in *ItemRequest, opts ...grpc.CallOption) (*InsertItemResponse, error) {
	return invoke[ItemRequest, InsertItemResponse](ctx, c.cc, MethodInsertItem, in, opts...)
}

func (c *ListsClient) UpdateItem(ctx context.Context, in *ItemRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[ItemRequest, Ack](ctx, c.cc, MethodUpdateItem, in, opts...)
}

func (c *ListsClient) DeleteItem(ctx context.Context, in *ItemRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[ItemRequest, Ack](ctx, c.cc, MethodDeleteItem, in, opts...)
}

func (c *ListsClient) EmptyTable(ctx context.Context, in *TableRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[TableRequest, Ack](ctx, c.cc, MethodEmptyTable, in, opts...)
}

func (c *ListsClient) Like(ctx context.Context, in *LikeRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[LikeRequest, Ack](ctx, c.cc, MethodLike, in, opts...)
}

func (c *ListsClient) Unlike(ctx context.Context, in *LikeRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[LikeRequest, Ack](ctx, c.cc, MethodUnlike, in, opts...)
}

func (c *ListsClient) AttachFileToItem(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[FileRequest, Ack](ctx, c.cc, MethodAttachFileToItem, in, opts...)
}

func (c *ListsClient) DeleteFileFromItem(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[FileRequest, Ack](ctx, c.cc, MethodDeleteFileFromItem, in, opts...)
}

func (c *ListsClient) AttachFileToLibrary(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[FileRequest, Ack](ctx, c.cc, MethodAttachFileToLibrary, in, opts...)
}

func (c *ListsClient) DeleteFilesFromLibrary(ctx context.Context, in *DeleteFilesRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[DeleteFilesRequest, Ack](ctx, c.cc, MethodDeleteFilesFromLibrary, in, opts...)
}

func (c *ListsClient) SelectAllItems(ctx context.Context, in *TableRequest, opts ...grpc.CallOption) (*ItemsResponse, error) {
	return invoke[TableRequest, ItemsResponse](ctx, c.cc, MethodSelectAllItems, in, opts...)
}

func (c *ListsClient) SelectFilesFromItem(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*FilesResponse, error) {
	return invoke[FileRequest, FilesResponse](ctx, c.cc, MethodSelectFilesFromItem, in, opts...)
}

func (c *ListsClient) SelectFilesFromLibrary(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*FilesResponse, error) {
	return invoke[FileRequest, FilesResponse](ctx, c.cc, MethodSelectFilesFromLibrary, in, opts...)
}

func (c *ListsClient) GetChoices(ctx context.Context, in *FieldRequest, opts ...grpc.CallOption) (*ChoicesResponse, error) {
	return invoke[FieldRequest, ChoicesResponse](ctx, c.cc, MethodGetChoices, in, opts...)
}
