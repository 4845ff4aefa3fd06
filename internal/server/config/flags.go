package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/listbuffer/internal/flagx"
	"github.com/dmitrijs2005/listbuffer/internal/sizex"
)

// parseFlags overlays config with command-line flags. Flags not defined here
// are ignored so the JSON -c flag can share the command line.
//
//	-a  listen address          -l  log level
//	-d  PostgreSQL DSN          -m  largest accepted file, e.g. "64 MiB"
//	-k  API key bcrypt hash     -s  JWT secret
//	-t  token lifetime, e.g. "15m"
//	-e  S3 endpoint             -g  S3 region
//	-b  S3 bucket               -u  S3 access key
//	-p  S3 secret key
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "gRPC listen address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug, info, warn, error)")
	maxFileSize := sizex.Size(config.MaxFileSize)
	fs.Var(&maxFileSize, "m", "largest accepted file")

	fs.StringVar(&config.Auth.APIKeyHash, "k", config.Auth.APIKeyHash, "bcrypt hash of the API key")
	fs.StringVar(&config.Auth.JWTSecret, "s", config.Auth.JWTSecret, "JWT signing secret")
	fs.DurationVar(&config.Auth.TokenTTL, "t", config.Auth.TokenTTL, "access token lifetime")

	fs.StringVar(&config.S3.Endpoint, "e", config.S3.Endpoint, "S3 endpoint")
	fs.StringVar(&config.S3.Region, "g", config.S3.Region, "S3 region")
	fs.StringVar(&config.S3.Bucket, "b", config.S3.Bucket, "S3 bucket")
	fs.StringVar(&config.S3.AccessKey, "u", config.S3.AccessKey, "S3 access key")
	fs.StringVar(&config.S3.SecretKey, "p", config.S3.SecretKey, "S3 secret key")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}
	config.MaxFileSize = maxFileSize.Bytes()
}
