package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/listbuffer/internal/flagx"
	"github.com/dmitrijs2005/listbuffer/internal/sizex"
	"github.com/dmitrijs2005/listbuffer/internal/timex"
)

// JsonConfig is the file form of Config:
//
//	{
//	  "listen_addr": ":50051",
//	  "database_dsn": "postgres://...",
//	  "log_level": "info",
//	  "max_file_size": "64 MiB",
//	  "auth": {"api_key_hash": "$2a$10$...", "jwt_secret": "...", "token_ttl": "15m"},
//	  "s3": {"endpoint": "http://minio:9000/", "region": "us-east-1", "bucket": "lists",
//	         "access_key": "admin", "secret_key": "..."}
//	}
//
// Absent keys keep the value already in Config.
type JsonConfig struct {
	ListenAddr  string      `json:"listen_addr"`
	DatabaseDSN string      `json:"database_dsn"`
	LogLevel    string      `json:"log_level"`
	MaxFileSize *sizex.Size `json:"max_file_size"`
	Auth        *JsonAuth   `json:"auth"`
	S3          *JsonS3     `json:"s3"`
}

type JsonAuth struct {
	APIKeyHash string          `json:"api_key_hash"`
	JWTSecret  string          `json:"jwt_secret"`
	TokenTTL   *timex.Duration `json:"token_ttl"`
}

type JsonS3 struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// parseJson overlays config with the file named by -c or -config. Read or
// decode errors panic.
func parseJson(config *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(config)
}

func (jc *JsonConfig) apply(c *Config) {
	overlay(&c.ListenAddr, jc.ListenAddr)
	overlay(&c.DatabaseDSN, jc.DatabaseDSN)
	overlay(&c.LogLevel, jc.LogLevel)
	if jc.MaxFileSize != nil {
		c.MaxFileSize = jc.MaxFileSize.Bytes()
	}

	if a := jc.Auth; a != nil {
		overlay(&c.Auth.APIKeyHash, a.APIKeyHash)
		overlay(&c.Auth.JWTSecret, a.JWTSecret)
		if a.TokenTTL != nil {
			c.Auth.TokenTTL = a.TokenTTL.Duration
		}
	}

	if s := jc.S3; s != nil {
		overlay(&c.S3.Endpoint, s.Endpoint)
		overlay(&c.S3.Region, s.Region)
		overlay(&c.S3.Bucket, s.Bucket)
		overlay(&c.S3.AccessKey, s.AccessKey)
		overlay(&c.S3.SecretKey, s.SecretKey)
	}
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
