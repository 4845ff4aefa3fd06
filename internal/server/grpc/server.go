// Package grpc exposes the list services over the rpc contract.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/listbuffer/internal/logging"
	"github.com/dmitrijs2005/listbuffer/internal/rpc"
	"github.com/dmitrijs2005/listbuffer/internal/server/services"
	"google.golang.org/grpc"
)

// ListStore is the list business logic the handlers call into.
type ListStore interface {
	Ping(ctx context.Context) error
	CreateTable(ctx context.Context, list, typeName string, schema []byte) (string, error)
	DeleteTable(ctx context.Context, list string) error
	UpdateTableStructure(ctx context.Context, list, typeName string, schema []byte) error
	InsertItem(ctx context.Context, list string, body []byte) (int, error)
	UpdateItem(ctx context.Context, list string, id int, body []byte) error
	DeleteItem(ctx context.Context, list string, id int) error
	EmptyTable(ctx context.Context, list string) error
	Like(ctx context.Context, list string, id, userID int) error
	Unlike(ctx context.Context, list string, id, userID int) error
	AttachFileToItem(ctx context.Context, list string, itemID int, filename string, content []byte) error
	DeleteFileFromItem(ctx context.Context, list string, itemID int, filename string) error
	AttachFileToLibrary(ctx context.Context, list, folder, filename string, content, entity []byte) error
	DeleteFilesFromLibrary(ctx context.Context, list, folder string, filenames []string) error
	SelectAllItems(ctx context.Context, list string) ([][]byte, error)
	SelectFilesFromItem(ctx context.Context, list string, itemID int) ([]*services.StoredFile, error)
	SelectFilesFromLibrary(ctx context.Context, list, folder string) ([]*services.StoredFile, error)
	GetChoices(ctx context.Context, list, field string) ([]string, error)
}

// Sessions issues and checks access tokens.
type Sessions interface {
	Login(ctx context.Context, apiKey, clientID string) (string, error)
	Authenticate(token string) (string, error)
}

type GRPCServer struct {
	rpc.UnimplementedListsServer
	address  string
	lists    ListStore
	sessions Sessions
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, lists ListStore, sessions Sessions) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		lists:    lists,
		sessions: sessions,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
		grpc.MaxRecvMsgSize(rpc.MaxMessageSize),
		grpc.MaxSendMsgSize(rpc.MaxMessageSize),
	)
	rpc.RegisterListsServer(srv, s)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	err := srv.Serve(lis)
	if ctx.Err() != nil {
		<-stopped
	}
	return err
}
