package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/flagx"
	"github.com/dmitrijs2005/listbuffer/internal/sizex"
)

// parseFlags populates Config fields from command-line flags. Flags the set
// does not define, such as -c, are skipped.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	remoteTimeout := fs.Int("t", int(cfg.RemoteTimeout.Seconds()), "remote call timeout (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database file")
	fs.StringVar(&cfg.SchemaPath, "s", cfg.SchemaPath, "schema descriptor file")
	fs.StringVar(&cfg.ClientID, "u", cfg.ClientID, "client id")
	attachment := sizex.Size(cfg.AttachmentThreshold)
	fs.Var(&attachment, "at", "attachment residency threshold")
	library := sizex.Size(cfg.LibraryThreshold)
	fs.Var(&library, "lt", "library residency threshold")
	fs.StringVar(&cfg.Log.Path, "l", cfg.Log.Path, "log file")
	fs.StringVar(&cfg.Log.Level, "ll", cfg.Log.Level, "log level (debug, info, warn, error)")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.RemoteTimeout = time.Duration(*remoteTimeout) * time.Second
	cfg.AttachmentThreshold = attachment.Bytes()
	cfg.LibraryThreshold = library.Bytes()
}
