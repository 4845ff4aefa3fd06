package grpc

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/listbuffer/internal/rpc"
	"github.com/dmitrijs2005/listbuffer/internal/server/services"
)

var ack = &rpc.Ack{}

// Ping answers "OK" while the database is reachable.
func (s *GRPCServer) Ping(ctx context.Context, _ *rpc.Ack) (*rpc.PingResponse, error) {
	if err := s.lists.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "database unreachable", "error", err)
		return &rpc.PingResponse{Status: "DEGRADED"}, nil
	}
	return &rpc.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	token, err := s.sessions.Login(ctx, req.APIKey, req.ClientID)
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info(ctx, "client logged in", "client", req.ClientID)
	return &rpc.LoginResponse{AccessToken: token}, nil
}

func (s *GRPCServer) CreateTable(ctx context.Context, req *rpc.TableRequest) (*rpc.CreateTableResponse, error) {
	handle, err := s.lists.CreateTable(ctx, req.List, req.TypeName, req.Schema)
	if err != nil {
		return nil, toStatus(err)
	}
	clientID, _ := ClientIDFromContext(ctx)
	s.logger.Info(ctx, "table created", "list", req.List, "client", clientID)
	return &rpc.CreateTableResponse{Handle: handle}, nil
}

func (s *GRPCServer) DeleteTable(ctx context.Context, req *rpc.TableRequest) (*rpc.Ack, error) {
	if err := s.lists.DeleteTable(ctx, req.List); err != nil {
		return nil, toStatus(err)
	}
	clientID, _ := ClientIDFromContext(ctx)
	s.logger.Info(ctx, "table deleted", "list", req.List, "client", clientID)
	return ack, nil
}

func (s *GRPCServer) UpdateTableStructure(ctx context.Context, req *rpc.TableRequest) (*rpc.Ack, error) {
	return done(s.lists.UpdateTableStructure(ctx, req.List, req.TypeName, req.Schema))
}

func (s *GRPCServer) InsertItem(ctx context.Context, req *rpc.ItemRequest) (*rpc.InsertItemResponse, error) {
	id, err := s.lists.InsertItem(ctx, req.List, req.Body)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.InsertItemResponse{ID: id}, nil
}

func (s *GRPCServer) UpdateItem(ctx context.Context, req *rpc.ItemRequest) (*rpc.Ack, error) {
	return done(s.lists.UpdateItem(ctx, req.List, req.ID, req.Body))
}

func (s *GRPCServer) DeleteItem(ctx context.Context, req *rpc.ItemRequest) (*rpc.Ack, error) {
	return done(s.lists.DeleteItem(ctx, req.List, req.ID))
}

func (s *GRPCServer) EmptyTable(ctx context.Context, req *rpc.TableRequest) (*rpc.Ack, error) {
	return done(s.lists.EmptyTable(ctx, req.List))
}

func (s *GRPCServer) Like(ctx context.Context, req *rpc.LikeRequest) (*rpc.Ack, error) {
	return done(s.lists.Like(ctx, req.List, req.ID, req.UserID))
}

func (s *GRPCServer) Unlike(ctx context.Context, req *rpc.LikeRequest) (*rpc.Ack, error) {
	return done(s.lists.Unlike(ctx, req.List, req.ID, req.UserID))
}

func (s *GRPCServer) AttachFileToItem(ctx context.Context, req *rpc.FileRequest) (*rpc.Ack, error) {
	return done(s.lists.AttachFileToItem(ctx, req.List, req.ItemID, req.Filename, req.Content))
}

func (s *GRPCServer) DeleteFileFromItem(ctx context.Context, req *rpc.FileRequest) (*rpc.Ack, error) {
	return done(s.lists.DeleteFileFromItem(ctx, req.List, req.ItemID, req.Filename))
}

func (s *GRPCServer) AttachFileToLibrary(ctx context.Context, req *rpc.FileRequest) (*rpc.Ack, error) {
	return done(s.lists.AttachFileToLibrary(ctx, req.List, req.Folder, req.Filename, req.Content, req.Entity))
}

func (s *GRPCServer) DeleteFilesFromLibrary(ctx context.Context, req *rpc.DeleteFilesRequest) (*rpc.Ack, error) {
	return done(s.lists.DeleteFilesFromLibrary(ctx, req.List, req.Folder, req.Filenames))
}

func (s *GRPCServer) SelectAllItems(ctx context.Context, req *rpc.TableRequest) (*rpc.ItemsResponse, error) {
	docs, err := s.lists.SelectAllItems(ctx, req.List)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		items = append(items, d)
	}
	return &rpc.ItemsResponse{Items: items}, nil
}

func (s *GRPCServer) SelectFilesFromItem(ctx context.Context, req *rpc.FileRequest) (*rpc.FilesResponse, error) {
	files, err := s.lists.SelectFilesFromItem(ctx, req.List, req.ItemID)
	if err != nil {
		return nil, toStatus(err)
	}
	return filesResponse(files), nil
}

func (s *GRPCServer) SelectFilesFromLibrary(ctx context.Context, req *rpc.FileRequest) (*rpc.FilesResponse, error) {
	files, err := s.lists.SelectFilesFromLibrary(ctx, req.List, req.Folder)
	if err != nil {
		return nil, toStatus(err)
	}
	return filesResponse(files), nil
}

func (s *GRPCServer) GetChoices(ctx context.Context, req *rpc.FieldRequest) (*rpc.ChoicesResponse, error) {
	choices, err := s.lists.GetChoices(ctx, req.List, req.Field)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.ChoicesResponse{Choices: choices}, nil
}

func done(err error) (*rpc.Ack, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return ack, nil
}

func filesResponse(in []*services.StoredFile) *rpc.FilesResponse {
	out := make([]rpc.File, 0, len(in))
	for _, f := range in {
		out = append(out, rpc.File{
			Filename:   f.Filename,
			Folder:     f.Folder,
			Size:       f.Size,
			Content:    f.Content,
			Entity:     json.RawMessage(f.Entity),
			UploadedAt: f.UploadedAt,
		})
	}
	return &rpc.FilesResponse{Files: out}
}
