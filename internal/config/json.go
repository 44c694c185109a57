package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/remindsafe/internal/flagx"
)

// jsonConfig is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config.
// Zero values are treated as "not set" and leave the defaults in place.
type jsonConfig struct {
	LocalDatabaseDSN  string   `json:"local_database_dsn"`
	RemoteDatabaseDSN string   `json:"remote_database_dsn"`
	SecretKey         string   `json:"secret_key"`
	UserID            string   `json:"user_id"`
	LockTimeout       Duration `json:"lock_timeout"`
	RetryBaseDelay    Duration `json:"retry_base_delay"`
	RetryMaxRetries   int      `json:"retry_max_retries"`
	RetryMaxQueueSize int      `json:"retry_max_queue_size"`
	RetryQueueMaxAge  Duration `json:"retry_queue_max_age"`
	RetryInterval     Duration `json:"retry_interval"`
	SyncInterval      Duration `json:"sync_interval"`
	S3RootUser        string   `json:"s3_root_user"`
	S3RootPassword    string   `json:"s3_root_password"`
	S3Bucket          string   `json:"s3_bucket"`
	S3Region          string   `json:"s3_region"`
	S3BaseEndpoint    string   `json:"s3_base_endpoint"`
}

// parseJSON loads configuration values from the JSON file named by the -c or
// -config flags into the provided Config. If no file is named, nothing is
// loaded. An unreadable or invalid file panics: a half-applied config is
// worse than a crash at startup.
func parseJSON(config *Config) {
	jsonConfigFile := flagx.JSONConfigFlag()
	if jsonConfigFile == "" {
		return
	}

	c := &jsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	applyJSON(config, c)
}

func applyJSON(config *Config, c *jsonConfig) {
	if c.LocalDatabaseDSN != "" {
		config.LocalDatabaseDSN = c.LocalDatabaseDSN
	}
	if c.RemoteDatabaseDSN != "" {
		config.RemoteDatabaseDSN = c.RemoteDatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.UserID != "" {
		config.UserID = c.UserID
	}
	if c.LockTimeout.Duration != 0 {
		config.LockTimeout = c.LockTimeout.Duration
	}
	if c.RetryBaseDelay.Duration != 0 {
		config.RetryBaseDelay = c.RetryBaseDelay.Duration
	}
	if c.RetryMaxRetries != 0 {
		config.RetryMaxRetries = c.RetryMaxRetries
	}
	if c.RetryMaxQueueSize != 0 {
		config.RetryMaxQueueSize = c.RetryMaxQueueSize
	}
	if c.RetryQueueMaxAge.Duration != 0 {
		config.RetryQueueMaxAge = c.RetryQueueMaxAge.Duration
	}
	if c.RetryInterval.Duration != 0 {
		config.RetryInterval = c.RetryInterval.Duration
	}
	if c.SyncInterval.Duration != 0 {
		config.SyncInterval = c.SyncInterval.Duration
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
