package config

import (
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/logging"
	"github.com/dmitrijs2005/listbuffer/internal/sizex"
)

// Config holds runtime settings for the listbuffer client.
//
// Thresholds are byte counts; sizex.Unlimited keeps every file local.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	RemoteTimeout       time.Duration

	DatabasePath string
	SchemaPath   string

	APIKey   string
	ClientID string

	AttachmentThreshold int64
	LibraryThreshold    int64

	Log logging.RotationConfig
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.RemoteTimeout = 30 * time.Second
	c.DatabasePath = "listbuffer.db"
	c.SchemaPath = "schema.yaml"
	c.ClientID = "cli"
	c.AttachmentThreshold = 10 * 1000 * 1000
	c.LibraryThreshold = sizex.Unlimited
	c.Log = logging.RotationConfig{
		Path:       "logs/client.log",
		Level:      "info",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
