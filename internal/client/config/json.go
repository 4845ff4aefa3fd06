package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/flagx"
	"github.com/dmitrijs2005/listbuffer/internal/sizex"
	"github.com/dmitrijs2005/listbuffer/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Fields left
// out of the file keep the value already in Config.
type JsonConfig struct {
	ServerEndpointAddr  string          `json:"server_endpoint_addr"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RemoteTimeout       *timex.Duration `json:"remote_timeout"`
	DatabasePath        string          `json:"database_path"`
	SchemaPath          string          `json:"schema_path"`
	APIKey              string          `json:"api_key"`
	ClientID            string          `json:"client_id"`
	AttachmentThreshold *sizex.Size     `json:"attachment_threshold"`
	LibraryThreshold    *sizex.Size     `json:"library_threshold"`
	Log                 *JsonLog        `json:"log"`
}

type JsonLog struct {
	Path       string `json:"path"`
	Level      string `json:"level"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// parseJson overlays Config with values loaded from the file named by -c or
// -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.SchemaPath, jc.SchemaPath)
	setString(&cfg.APIKey, jc.APIKey)
	setString(&cfg.ClientID, jc.ClientID)

	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.RemoteTimeout != nil {
		cfg.RemoteTimeout = time.Duration(jc.RemoteTimeout.Duration)
	}
	if jc.AttachmentThreshold != nil {
		cfg.AttachmentThreshold = jc.AttachmentThreshold.Bytes()
	}
	if jc.LibraryThreshold != nil {
		cfg.LibraryThreshold = jc.LibraryThreshold.Bytes()
	}

	if jc.Log != nil {
		setString(&cfg.Log.Path, jc.Log.Path)
		setString(&cfg.Log.Level, jc.Log.Level)
		setInt(&cfg.Log.MaxSizeMB, jc.Log.MaxSizeMB)
		setInt(&cfg.Log.MaxBackups, jc.Log.MaxBackups)
		setInt(&cfg.Log.MaxAgeDays, jc.Log.MaxAgeDays)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
