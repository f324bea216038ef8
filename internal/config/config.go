// Package config builds the gateway's immutable configuration from
// environment variables, an optional dotenv file and command line flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"upload-gateway/internal/storage"
)

// Setting keys. Each one is bound to the upper-cased environment variable of
// the same name, which is also how dotenv files spell them.
const (
	KeyRegion         = "region"
	KeyBucketName     = "bucket_name"
	KeyFolderPath     = "folder_path"
	KeyPort           = "port"
	KeyAllowedOrigins = "allowed_origins"
	KeyMaxUploadBytes = "max_upload_bytes"
	KeyBackend        = "storage_backend"
	KeyEndpoint       = "storage_endpoint"
	KeyAccessKey      = "storage_access_key"
	KeySecretKey      = "storage_secret_key"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
)

const (
	DefaultRegion         = "us-west-2"
	DefaultPort           = 3000
	DefaultAllowedOrigins = "http://localhost:3000"
	DefaultMaxUploadBytes = 100 << 20
	// MaxUploadBytesLimit matches the largest object S3 accepts.
	MaxUploadBytesLimit = 5 << 40
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

var logFormats = []string{"text", "json"}

// Config is built once at startup and passed by value afterwards.
type Config struct {
	Region         string
	BucketName     string
	FolderPath     string
	Port           int
	AllowedOrigins []string
	MaxUploadBytes int64

	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string

	LogLevel  string
	LogFormat string
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// StorageOptions maps the configuration onto backend options.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:   c.Backend,
		Region:    c.Region,
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Bucket:    c.BucketName,

		MaxObjectSize: c.MaxUploadBytes,
	}
}

// NewViper returns a private viper instance with defaults and environment
// bindings in place.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyRegion, DefaultRegion)
	v.SetDefault(KeyFolderPath, "")
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyAllowedOrigins, DefaultAllowedOrigins)
	v.SetDefault(KeyMaxUploadBytes, DefaultMaxUploadBytes)
	v.SetDefault(KeyBackend, storage.BackendS3)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)

	for _, key := range []string{
		KeyRegion, KeyBucketName, KeyFolderPath, KeyPort, KeyAllowedOrigins,
		KeyMaxUploadBytes, KeyBackend, KeyEndpoint, KeyAccessKey, KeySecretKey,
		KeyLogLevel, KeyLogFormat,
	} {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}
	return v
}

// ReadEnvFile merges a dotenv file into v. A missing file is not an error.
func ReadEnvFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat env file %s", path)
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read env file %s", path)
	}
	return nil
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Region:         strings.TrimSpace(v.GetString(KeyRegion)),
		BucketName:     strings.TrimSpace(v.GetString(KeyBucketName)),
		FolderPath:     v.GetString(KeyFolderPath),
		Port:           v.GetInt(KeyPort),
		AllowedOrigins: splitList(v.GetString(KeyAllowedOrigins)),
		MaxUploadBytes: v.GetInt64(KeyMaxUploadBytes),
		Backend:        strings.ToLower(strings.TrimSpace(v.GetString(KeyBackend))),
		Endpoint:       strings.TrimSpace(v.GetString(KeyEndpoint)),
		AccessKey:      v.GetString(KeyAccessKey),
		SecretKey:      v.GetString(KeySecretKey),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:      strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	val := NewValidator()

	val.ValidateRequired(strings.ToUpper(KeyBucketName), c.BucketName)
	val.ValidatePort(strings.ToUpper(KeyPort), c.Port)
	val.ValidatePositive(strings.ToUpper(KeyMaxUploadBytes), c.MaxUploadBytes)
	val.ValidateMax(strings.ToUpper(KeyMaxUploadBytes), c.MaxUploadBytes, MaxUploadBytesLimit)
	val.ValidateEnum(strings.ToUpper(KeyBackend), c.Backend, storage.Backends)
	val.ValidateEnum(strings.ToUpper(KeyLogFormat), c.LogFormat, logFormats)

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		val.AddError(strings.ToUpper(KeyLogLevel), err.Error())
	}

	if len(c.AllowedOrigins) == 0 {
		val.AddError(strings.ToUpper(KeyAllowedOrigins), "at least one origin is required")
	}
	for _, origin := range c.AllowedOrigins {
		val.ValidateOrigin(strings.ToUpper(KeyAllowedOrigins), origin)
	}

	if c.Backend == storage.BackendMinio {
		val.ValidateRequired(strings.ToUpper(KeyEndpoint), c.Endpoint)
		val.ValidateRequired(strings.ToUpper(KeyAccessKey), c.AccessKey)
		val.ValidateRequired(strings.ToUpper(KeySecretKey), c.SecretKey)
	}
	if c.Backend == storage.BackendS3 && (c.AccessKey == "") != (c.SecretKey == "") {
		val.AddError(strings.ToUpper(KeyAccessKey), "access and secret key must be set together")
	}

	if val.HasErrors() {
		return errors.New(val.ErrorString())
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
