package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/filevault/internal/flagx"
	"github.com/dmitrijs2005/filevault/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. Interval fields use
// timex.Duration, which accepts both strings such as "24h" and integer
// nanoseconds. After unmarshalling, values are copied into the runtime
// Config struct.
type JsonConfig struct {
	DatabaseDSN         string         `json:"database_dsn"`
	MasterKey           string         `json:"master_key"`
	MasterKeyPassphrase string         `json:"master_key_passphrase"`
	MasterKeySalt       string         `json:"master_key_salt"`
	BlobBackend         string         `json:"blob_backend"`
	BlobRoot            string         `json:"blob_root"`
	S3RootUser          string         `json:"s3_root_user"`
	S3RootPassword      string         `json:"s3_root_password"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	ShareLinkTTL        timex.Duration `json:"share_link_ttl"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags, if any. A missing flag means no JSON overlay; an
// unreadable or invalid file panics, since running with half-applied
// configuration is worse than not starting.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{ShareLinkTTL: timex.Duration{Duration: config.ShareLinkTTL}}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.MasterKey != "" {
		config.MasterKey = c.MasterKey
	}
	config.MasterKeyPassphrase = c.MasterKeyPassphrase
	config.MasterKeySalt = c.MasterKeySalt
	if c.BlobBackend != "" {
		config.BlobBackend = c.BlobBackend
	}
	if c.BlobRoot != "" {
		config.BlobRoot = c.BlobRoot
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
	config.ShareLinkTTL = c.ShareLinkTTL.Duration
}
