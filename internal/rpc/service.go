// Package rpc is the wire contract between the buffer client and the list
// server. Messages are JSON documents carried in protobuf BytesValue
// wrappers, so the default gRPC codec moves them without generated stubs.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "listbuffer.v1.Lists"

// MaxMessageSize bounds a single request or response. File content travels
// base64 encoded inside the JSON payload, so a file may use at most
// MaxFileSize of it. The client rejects larger files with
// common.ErrFileTooLarge before sending, which includes the synchronous push
// of files above the attachment threshold.
const MaxMessageSize = 256 << 20

// MaxFileSize is the largest file content that fits one message after base64
// encoding, leaving 1 MiB for the rest of the request.
const MaxFileSize = MaxMessageSize/4*3 - 1<<20

// Method names.
const (
	MethodPing                   = "Ping"
	MethodLogin                  = "Login"
	MethodCreateTable            = "CreateTable"
	MethodDeleteTable            = "DeleteTable"
	MethodUpdateTableStructure   = "UpdateTableStructure"
	MethodInsertItem             = "InsertItem"
	MethodUpdateItem             = "UpdateItem"
	MethodDeleteItem             = "DeleteItem"
	MethodEmptyTable             = "EmptyTable"
	MethodLike                   = "Like"
	MethodUnlike                 = "Unlike"
	MethodAttachFileToItem       = "AttachFileToItem"
	MethodDeleteFileFromItem     = "DeleteFileFromItem"
	MethodAttachFileToLibrary    = "AttachFileToLibrary"
	MethodDeleteFilesFromLibrary = "DeleteFilesFromLibrary"
	MethodSelectAllItems         = "SelectAllItems"
	MethodSelectFilesFromItem    = "SelectFilesFromItem"
	MethodSelectFilesFromLibrary = "SelectFilesFromLibrary"
	MethodGetChoices             = "GetChoices"
)

// FullMethod returns the gRPC path of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ListsServer is implemented by the list server.
type ListsServer interface {
	Ping(context.Context, *Ack) (*PingResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	CreateTable(context.Context, *TableRequest) (*CreateTableResponse, error)
	DeleteTable(context.Context, *TableRequest) (*Ack, error)
	UpdateTableStructure(context.Context, *TableRequest) (*Ack, error)
	InsertItem(context.Context, *ItemRequest) (*InsertItemResponse, error)
	UpdateItem(context.Context, *ItemRequest) (*Ack, error)
	DeleteItem(context.Context, *ItemRequest) (*Ack, error)
	EmptyTable(context.Context, *TableRequest) (*Ack, error)
	Like(context.Context, *LikeRequest) (*Ack, error)
	Unlike(context.Context, *LikeRequest) (*Ack, error)
	AttachFileToItem(context.Context, *FileRequest) (*Ack, error)
	DeleteFileFromItem(context.Context, *FileRequest) (*Ack, error)
	AttachFileToLibrary(context.Context, *FileRequest) (*Ack, error)
	DeleteFilesFromLibrary(context.Context, *DeleteFilesRequest) (*Ack, error)
	SelectAllItems(context.Context, *TableRequest) (*ItemsResponse, error)
	SelectFilesFromItem(context.Context, *FileRequest) (*FilesResponse, error)
	SelectFilesFromLibrary(context.Context, *FileRequest) (*FilesResponse, error)
	GetChoices(context.Context, *FieldRequest) (*ChoicesResponse, error)
}

func unary[Req, Resp any](method string, call func(ListsServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(wrapperspb.BytesValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			req := new(Req)
			if err := Decode(in, req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}

			handler := func(ctx context.Context, r any) (any, error) {
				resp, err := call(srv.(ListsServer), ctx, r.(*Req))
				if err != nil {
					return nil, err
				}
				return Encode(resp)
			}
			if interceptor == nil {
				return handler(ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, req, info, handler)
		},
	}
}

// ServiceDesc describes the Lists service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ListsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPing, ListsServer.Ping),
		unary(MethodLogin, ListsServer.Login),
		unary(MethodCreateTable, ListsServer.CreateTable),
		unary(MethodDeleteTable, ListsServer.DeleteTable),
		unary(MethodUpdateTableStructure, ListsServer.UpdateTableStructure),
		unary(MethodInsertItem, ListsServer.InsertItem),
		unary(MethodUpdateItem, ListsServer.UpdateItem),
		unary(MethodDeleteItem, ListsServer.DeleteItem),
		unary(MethodEmptyTable, ListsServer.EmptyTable),
		unary(MethodLike, ListsServer.Like),
		unary(MethodUnlike, ListsServer.Unlike),
		unary(MethodAttachFileToItem, ListsServer.AttachFileToItem),
		unary(MethodDeleteFileFromItem, ListsServer.DeleteFileFromItem),
		unary(MethodAttachFileToLibrary, ListsServer.AttachFileToLibrary),
		unary(MethodDeleteFilesFromLibrary, ListsServer.DeleteFilesFromLibrary),
		unary(MethodSelectAllItems, ListsServer.SelectAllItems),
		unary(MethodSelectFilesFromItem, ListsServer.SelectFilesFromItem),
		unary(MethodSelectFilesFromLibrary, ListsServer.SelectFilesFromLibrary),
		unary(MethodGetChoices, ListsServer.GetChoices),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "listbuffer/v1/lists",
}

// RegisterListsServer registers srv with s.
func RegisterListsServer(s grpc.ServiceRegistrar, srv ListsServer) {
	s.RegisterService(&ServiceDesc, srv)
}
