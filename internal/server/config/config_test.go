package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.ListenAddr)
	assert.Contains(t, c.DatabaseDSN, "/listbuffer?")
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, int64(64<<20), c.MaxFileSize)
	assert.Empty(t, c.Auth.APIKeyHash)
	assert.Equal(t, 15*time.Minute, c.Auth.TokenTTL)
	assert.Equal(t, "lists", c.S3.Bucket)
	assert.Equal(t, "us-east-1", c.S3.Region)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen_addr": ":7000", "s3": {"bucket": "from-file"}}`), 0o600))

	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"server", "-c", path, "-a", ":8000"}

	c := LoadConfig()

	require.NotNil(t, c)
	assert.Equal(t, ":8000", c.ListenAddr)
	assert.Equal(t, "from-file", c.S3.Bucket)
	assert.Equal(t, 15*time.Minute, c.Auth.TokenTTL)
}
