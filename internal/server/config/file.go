package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: http_addr is read from
// GOPHVAULT_HTTP_ADDR.
const EnvPrefix = "GOPHVAULT"

// FileConfig is the on-disk and environment shape of Config. Durations are
// Go duration strings ("90s", "1h").
type FileConfig struct {
	HTTPAddr                    string        `mapstructure:"http_addr"`
	LogLevel                    string        `mapstructure:"log_level"`
	StorageBackend              string        `mapstructure:"storage_backend"`
	DatabaseDSN                 string        `mapstructure:"database_dsn"`
	BoltPath                    string        `mapstructure:"bolt_path"`
	SecretKey                   string        `mapstructure:"secret_key"`
	EncryptionSecret            string        `mapstructure:"encryption_secret"`
	AccessTokenValidityDuration time.Duration `mapstructure:"access_token_validity_duration"`
	RenewalThreshold            time.Duration `mapstructure:"renewal_threshold"`
	TOTPIssuer                  string        `mapstructure:"totp_issuer"`
	TOTPSkew                    uint          `mapstructure:"totp_skew"`
	BcryptCost                  int           `mapstructure:"bcrypt_cost"`
	AuditQueueSize              int           `mapstructure:"audit_queue_size"`
	MaxUploadSize               int64         `mapstructure:"max_upload_size"`
	CORSOrigins                 []string      `mapstructure:"cors_origins"`
	PayloadBackend              string        `mapstructure:"payload_backend"`
	S3RootUser                  string        `mapstructure:"s3_root_user"`
	S3RootPassword              string        `mapstructure:"s3_root_password"`
	S3Bucket                    string        `mapstructure:"s3_bucket"`
	S3Region                    string        `mapstructure:"s3_region"`
	S3BaseEndpoint              string        `mapstructure:"s3_base_endpoint"`
}

func fromConfig(c *Config) FileConfig {
	return FileConfig{
		HTTPAddr:                    c.HTTPAddr,
		LogLevel:                    c.LogLevel,
		StorageBackend:              c.StorageBackend,
		DatabaseDSN:                 c.DatabaseDSN,
		BoltPath:                    c.BoltPath,
		SecretKey:                   c.SecretKey,
		EncryptionSecret:            c.EncryptionSecret,
		AccessTokenValidityDuration: c.AccessTokenValidityDuration,
		RenewalThreshold:            c.RenewalThreshold,
		TOTPIssuer:                  c.TOTPIssuer,
		TOTPSkew:                    c.TOTPSkew,
		BcryptCost:                  c.BcryptCost,
		AuditQueueSize:              c.AuditQueueSize,
		MaxUploadSize:               c.MaxUploadSize,
		CORSOrigins:                 c.CORSOrigins,
		PayloadBackend:              c.PayloadBackend,
		S3RootUser:                  c.S3RootUser,
		S3RootPassword:              c.S3RootPassword,
		S3Bucket:                    c.S3Bucket,
		S3Region:                    c.S3Region,
		S3BaseEndpoint:              c.S3BaseEndpoint,
	}
}

func (f FileConfig) apply(c *Config) {
	c.HTTPAddr = f.HTTPAddr
	c.LogLevel = f.LogLevel
	c.StorageBackend = f.StorageBackend
	c.DatabaseDSN = f.DatabaseDSN
	c.BoltPath = f.BoltPath
	c.SecretKey = f.SecretKey
	c.EncryptionSecret = f.EncryptionSecret
	c.AccessTokenValidityDuration = f.AccessTokenValidityDuration
	c.RenewalThreshold = f.RenewalThreshold
	c.TOTPIssuer = f.TOTPIssuer
	c.TOTPSkew = f.TOTPSkew
	c.BcryptCost = f.BcryptCost
	c.AuditQueueSize = f.AuditQueueSize
	c.MaxUploadSize = f.MaxUploadSize
	c.CORSOrigins = f.CORSOrigins
	c.PayloadBackend = f.PayloadBackend
	c.S3RootUser = f.S3RootUser
	c.S3RootPassword = f.S3RootPassword
	c.S3Bucket = f.S3Bucket
	c.S3Region = f.S3Region
	c.S3BaseEndpoint = f.S3BaseEndpoint
}

// parseFile overlays values from the config file at path (JSON, YAML or TOML,
// chosen by extension; "" means no file) and from GOPHVAULT_* environment
// variables onto config. The current values of config act as defaults, so
// keys missing from both sources are left untouched.
func parseFile(config *Config, path string) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range fromConfig(config).settings() {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	fc.apply(config)
	return nil
}

// settings flattens f into viper keys. Every key must be registered so that
// AutomaticEnv can see it during Unmarshal.
func (f FileConfig) settings() map[string]any {
	return map[string]any{
		"http_addr":                      f.HTTPAddr,
		"log_level":                      f.LogLevel,
		"storage_backend":                f.StorageBackend,
		"database_dsn":                   f.DatabaseDSN,
		"bolt_path":                      f.BoltPath,
		"secret_key":                     f.SecretKey,
		"encryption_secret":              f.EncryptionSecret,
		"access_token_validity_duration": f.AccessTokenValidityDuration,
		"renewal_threshold":              f.RenewalThreshold,
		"totp_issuer":                    f.TOTPIssuer,
		"totp_skew":                      f.TOTPSkew,
		"bcrypt_cost":                    f.BcryptCost,
		"audit_queue_size":               f.AuditQueueSize,
		"max_upload_size":                f.MaxUploadSize,
		"cors_origins":                   f.CORSOrigins,
		"payload_backend":                f.PayloadBackend,
		"s3_root_user":                   f.S3RootUser,
		"s3_root_password":               f.S3RootPassword,
		"s3_bucket":                      f.S3Bucket,
		"s3_region":                      f.S3Region,
		"s3_base_endpoint":               f.S3BaseEndpoint,
	}
}
