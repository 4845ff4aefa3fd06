package rpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnimplementedListsServer answers every method with codes.Unimplemented.
// Embed it to implement a subset of the service.
type UnimplementedListsServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedListsServer) Ping(context.Context, *Ack) (*PingResponse, error) {
	return nil, unimplemented(MethodPing)
}
func (UnimplementedListsServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, unimplemented(MethodLogin)
}
func (UnimplementedListsServer) CreateTable(context.Context, *TableRequest) (*CreateTableResponse, error) {
	return nil, unimplemented(MethodCreateTable)
}
func (UnimplementedListsServer) DeleteTable(context.Context, *TableRequest) (*Ack, error) {
	return nil, unimplemented(MethodDeleteTable)
}
func (UnimplementedListsServer) UpdateTableStructure(context.Context, *TableRequest) (*Ack, error) {
	return nil, unimplemented(MethodUpdateTableStructure)
}
func (UnimplementedListsServer) InsertItem(context.Context, *ItemRequest) (*InsertItemResponse, error) {
	return nil, unimplemented(MethodInsertItem)
}
func (UnimplementedListsServer) UpdateItem(context.Context, *ItemRequest) (*Ack, error) {
	return nil, unimplemented(MethodUpdateItem)
}
func (UnimplementedListsServer) DeleteItem(context.Context, *ItemRequest) (*Ack, error) {
	return nil, unimplemented(MethodDeleteItem)
}
func (UnimplementedListsServer) EmptyTable(context.Context, *TableRequest) (*Ack, error) {
	return nil, unimplemented(MethodEmptyTable)
}
func (UnimplementedListsServer) Like(context.Context, *LikeRequest) (*Ack, error) {
	return nil, unimplemented(MethodLike)
}
func (UnimplementedListsServer) Unlike(context.Context, *LikeRequest) (*Ack, error) {
	return nil, unimplemented(MethodUnlike)
}
func (UnimplementedListsServer) AttachFileToItem(context.Context, *FileRequest) (*Ack, error) {
	return nil, unimplemented(MethodAttachFileToItem)
}
func (UnimplementedListsServer) DeleteFileFromItem(context.Context, *FileRequest) (*Ack, error) {
	return nil, unimplemented(MethodDeleteFileFromItem)
}
func (UnimplementedListsServer) AttachFileToLibrary(context.Context, *FileRequest) (*Ack, error) {
	return nil, unimplemented(MethodAttachFileToLibrary)
}
func (UnimplementedListsServer) DeleteFilesFromLibrary(context.Context, *DeleteFilesRequest) (*Ack, error) {
	return nil, unimplemented(MethodDeleteFilesFromLibrary)
}
func (UnimplementedListsServer) SelectAllItems(context.Context, *TableRequest) (*ItemsResponse, error) {
	return nil, unimplemented(MethodSelectAllItems)
}
func (UnimplementedListsServer) SelectFilesFromItem(context.Context, *FileRequest) (*FilesResponse, error) {
	return nil, unimplemented(MethodSelectFilesFromItem)
}
func (UnimplementedListsServer) SelectFilesFromLibrary(context.Context, *FileRequest) (*FilesResponse, error) {
	return nil, unimplemented(MethodSelectFilesFromLibrary)
}
func (UnimplementedListsServer) GetChoices(context.Context, *FieldRequest) (*ChoicesResponse, error) {
	return nil, unimplemented(MethodGetChoices)
}
