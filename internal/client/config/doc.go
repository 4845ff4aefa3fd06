// Package config loads runtime configuration for the listbuffer client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-i int      online status check interval (seconds)
//	-t int      per-call remote timeout (seconds)
//	-d string   local database file
//	-s string   schema descriptor file (YAML)
//	-u string   client id presented at login
//	-at string  attachment residency threshold, e.g. "10 MB"
//	-lt string  document library residency threshold
//	-l string   log file
//	-ll string  log level (debug, info, warn, error)
//
// The API key is never read from flags; it comes from the JSON file or is
// prompted for by the CLI.
//
// # JSON schema
//
// Durations use timex.Duration and sizes use sizex.Size:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "remote_timeout": "30s",
//	  "database_path": "listbuffer.db",
//	  "schema_path": "schema.yaml",
//	  "api_key": "...",
//	  "client_id": "laptop",
//	  "attachment_threshold": "10 MB",
//	  "library_threshold": "unlimited",
//	  "log": {"path": "logs/client.log", "level": "info", "max_size_mb": 10}
//	}
package config
