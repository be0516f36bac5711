package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
)

var knownFlags = []string{"-a", "-l", "-m", "-d", "-f", "-s", "-k", "-t", "-r", "-o", "-u", "-p", "-b", "-g", "-e"}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-l string   log level (debug, info, warn, error)
//	-m string   storage backend (postgres, bolt)
//	-d string   PostgreSQL DSN
//	-f string   bbolt database file
//	-s string   JWT HMAC secret key
//	-k string   payload encryption secret
//	-t int      session assertion validity, minutes
//	-r int      renewal threshold, minutes
//	-o string   payload backend (inline, s3)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// args is filtered through flagx.FilterArgs first, so flags meant for other
// layers (such as -c) do not cause errors.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("gophvault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.StorageBackend, "m", config.StorageBackend, "storage backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.BoltPath, "f", config.BoltPath, "bolt database file")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.EncryptionSecret, "k", config.EncryptionSecret, "encryption secret")

	validity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	renewal := fs.Int("r", int(config.RenewalThreshold.Minutes()), "renewal threshold (in minutes)")

	fs.StringVar(&config.PayloadBackend, "o", config.PayloadBackend, "payload backend")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	// only overwrite durations that were given, so sub-minute values from
	// the file survive
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*validity) * time.Minute
		case "r":
			config.RenewalThreshold = time.Duration(*renewal) * time.Minute
		}
	})
	return nil
}
