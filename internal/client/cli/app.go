package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/listbuffer/internal/client/client"
	"github.com/dmitrijs2005/listbuffer/internal/client/config"
	"github.com/dmitrijs2005/listbuffer/internal/client/services"
	"github.com/dmitrijs2005/listbuffer/internal/filex"
	"github.com/dmitrijs2005/listbuffer/internal/logging"
	"github.com/dmitrijs2005/listbuffer/internal/schema"
)

// App is the interactive client.
type App struct {
	buffer  *services.Buffer
	session services.SessionService
	syncer  *services.Syncer
	log     logging.Logger

	reader *bufio.Reader
	out    io.Writer

	tables  map[string]*services.Table[map[string]any]
	closers []io.Closer
}

// NewApp opens the log file, the schema, the local store and the server
// connection described by c. The API key is prompted for when c has none.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := filex.EnsureParentDir(c.Log.Path); err != nil {
		return nil, err
	}
	logger, logCloser, err := logging.NewFileLogger(c.Log)
	if err != nil {
		return nil, err
	}

	registry, err := schema.LoadFile(c.SchemaPath)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("error loading schema: %w", err)
	}

	store, err := client.OpenStore(ctx, c.DatabasePath)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiKey := c.APIKey
	if apiKey == "" {
		if apiKey, err = GetAPIKey(os.Stdout); err != nil {
			_ = store.Close()
			_ = logCloser.Close()
			return nil, err
		}
	}

	apiClient, err := client.NewListsClientService(c.ServerEndpointAddr, apiKey, c.ClientID)
	if err != nil {
		_ = store.Close()
		_ = logCloser.Close()
		return nil, err
	}

	buffer := services.NewBuffer(store, registry, apiClient, services.Options{
		AttachmentThreshold: c.AttachmentThreshold,
		LibraryThreshold:    c.LibraryThreshold,
		RemoteTimeout:       c.RemoteTimeout,
		Logger:              logger,
	})
	session := services.NewSessionService(apiClient, store)
	syncer := services.NewSyncer(buffer, session, c.OnlineCheckInterval, logger)

	a := newApp(buffer, session, syncer, logger, os.Stdin, os.Stdout)
	a.closers = []io.Closer{store, logCloser}
	return a, nil
}

func newApp(b *services.Buffer, s services.SessionService, sy *services.Syncer, log logging.Logger, in io.Reader, out io.Writer) *App {
	return &App{
		buffer:  b,
		session: s,
		syncer:  sy,
		log:     log,
		reader:  bufio.NewReader(in),
		out:     out,
		tables:  map[string]*services.Table[map[string]any]{},
	}
}

// Run logs in, starts the background syncer and blocks in the REPL until
// the user exits or ctx is cancelled. Login failures leave the client
// working offline.
func (a *App) Run(ctx context.Context) error {
	defer a.close(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(a.out, "Welcome to listbuffer (type 'help' for commands)")

	if err := a.session.Login(ctx); err != nil {
		a.log.Warn(ctx, "login failed, working offline", "error", err)
		fmt.Fprintln(a.out, "Server unavailable, working offline")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.syncer.Run(ctx)
	}()

	runREPL(ctx, a.commands(), a.status, a.reader, a.out)

	cancel()
	<-done
	return nil
}

func (a *App) close(ctx context.Context) {
	if err := a.session.Close(ctx); err != nil {
		a.log.Error(ctx, "failed to close session", "error", err)
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func (a *App) status() string {
	if a.syncer != nil && a.syncer.Online() {
		return "online"
	}
	return "offline"
}

// table returns the map-typed table of the named list.
func (a *App) table(list string) (*services.Table[map[string]any], error) {
	if tb, ok := a.tables[list]; ok {
		return tb, nil
	}
	t, err := a.buffer.Registry().ByList(list)
	if err != nil {
		return nil, err
	}
	tb := services.NewTable[map[string]any](a.buffer, t)
	a.tables[list] = tb
	return tb, nil
}

var errUsage = errors.New("usage")
