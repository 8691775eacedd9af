package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Provider credentials and SMTP passwords are deliberately not accepted here;
// they come from the JSON file or the environment.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3001")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      session validity, minutes
//	-k string   encryption keys, comma separated "id:secret" pairs
//	-m string   model provider ("gemini" or "openai")
//	-n string   model name
//	-o string   allowed origins, comma separated
//	-l string   log backend ("slog" or "zap")
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-r string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-t", "-k", "-m", "-n", "-o", "-l", "-u", "-p", "-b", "-r", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionValidity := fs.Int("t", int(config.SessionValidityDuration.Minutes()), "session_validity_duration (in minutes)")
	keys := fs.String("k", strings.Join(config.EncryptionKeys, ","), "encryption keys")

	fs.StringVar(&config.ModelProvider, "m", config.ModelProvider, "model provider")
	fs.StringVar(&config.ModelName, "n", config.ModelName, "model name")

	origins := fs.String("o", strings.Join(config.AllowedOrigins, ","), "allowed origins")

	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Minute
	config.EncryptionKeys = flagx.SplitList(*keys)
	config.AllowedOrigins = flagx.SplitList(*origins)
}
