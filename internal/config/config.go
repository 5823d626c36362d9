// Package config loads lineagecore settings from .env files, an optional
// lineagecore.yaml and LINEAGECORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "LINEAGECORE"

// Config holds application configuration.
type Config struct {
	StorageDriver string `mapstructure:"STORAGE_DRIVER" validate:"required,oneof=memory sqlite postgres"`
	SQLitePath    string `mapstructure:"SQLITE_PATH" validate:"required_if=StorageDriver sqlite"`
	PostgresDSN   string `mapstructure:"POSTGRES_DSN" validate:"required_if=StorageDriver postgres,omitempty,url"`

	BlobDriver      string `mapstructure:"BLOB_DRIVER" validate:"required,oneof=memory fs s3"`
	BlobFSRoot      string `mapstructure:"BLOB_FS_ROOT" validate:"required_if=BlobDriver fs"`
	BlobS3Bucket    string `mapstructure:"BLOB_S3_BUCKET" validate:"required_if=BlobDriver s3"`
	BlobS3Region    string `mapstructure:"BLOB_S3_REGION"`
	BlobS3Endpoint  string `mapstructure:"BLOB_S3_ENDPOINT" validate:"omitempty,url"`
	BlobS3PathStyle bool   `mapstructure:"BLOB_S3_PATH_STYLE"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	AccessionPrefix string `mapstructure:"ACCESSION_PREFIX" validate:"required,alphanum,max=8"`
	Genus           string `mapstructure:"GENUS"`
}

var keys = []string{
	"STORAGE_DRIVER",
	"SQLITE_PATH",
	"POSTGRES_DSN",
	"BLOB_DRIVER",
	"BLOB_FS_ROOT",
	"BLOB_S3_BUCKET",
	"BLOB_S3_REGION",
	"BLOB_S3_ENDPOINT",
	"BLOB_S3_PATH_STYLE",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"ACCESSION_PREFIX",
	"GENUS",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		StorageDriver:   "sqlite",
		SQLitePath:      "lineagecore.db",
		BlobDriver:      "fs",
		BlobFSRoot:      "./blobdata",
		BlobS3Region:    "us-east-1",
		LogLevel:        "info",
		LogFormat:       "json",
		AccessionPrefix: "ANT",
		Genus:           "Anthurium",
	}
}

// Load reads .env.local and .env when present, then lineagecore.yaml from
// the working directory or any of extraPaths, then the environment. The
// result is validated.
func Load(extraPaths ...string) (Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("lineagecore")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range extraPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("STORAGE_DRIVER", d.StorageDriver)
	v.SetDefault("SQLITE_PATH", d.SQLitePath)
	v.SetDefault("BLOB_DRIVER", d.BlobDriver)
	v.SetDefault("BLOB_FS_ROOT", d.BlobFSRoot)
	v.SetDefault("BLOB_S3_REGION", d.BlobS3Region)
	v.SetDefault("LOG_LEVEL", d.LogLevel)
	v.SetDefault("LOG_FORMAT", d.LogFormat)
	v.SetDefault("ACCESSION_PREFIX", d.AccessionPrefix)
	v.SetDefault("GENUS", d.Genus)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config unmarshal error: %w", err)
	}
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.BlobDriver = strings.ToLower(strings.TrimSpace(c.BlobDriver))
	c.AccessionPrefix = strings.ToUpper(strings.TrimSpace(c.AccessionPrefix))
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
