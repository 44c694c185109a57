package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/remindsafe/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-l string   local SQLite DSN
//	-d string   remote PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-w string   user id this device syncs for
//	-t int      lock timeout, seconds
//	-i int      sync interval, seconds
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-l", "-d", "-s", "-w", "-t", "-i", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.LocalDatabaseDSN, "l", config.LocalDatabaseDSN, "local database DSN")
	fs.StringVar(&config.RemoteDatabaseDSN, "d", config.RemoteDatabaseDSN, "remote database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.UserID, "w", config.UserID, "user id this device syncs for")

	lockTimeout := fs.Int("t", int(config.LockTimeout.Seconds()), "lock timeout (in seconds)")
	syncInterval := fs.Int("i", int(config.SyncInterval.Seconds()), "sync interval (in seconds)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.LockTimeout = time.Duration(*lockTimeout) * time.Second
	config.SyncInterval = time.Duration(*syncInterval) * time.Second
}
