// Package config loads vitrina settings from defaults, a YAML file, a .env
// file and VITRINA_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/vitrina/internal/auth"
	"github.com/erazemk/vitrina/internal/db"
	"github.com/erazemk/vitrina/internal/store"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "vitrina.yaml"

// Config is the complete application configuration.
type Config struct {
	Addr     string         `yaml:"addr"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Images   ImagesConfig   `yaml:"images"`
	Session  SessionConfig  `yaml:"session"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// DatabaseConfig selects the document backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Name is the Mongo database; unused by the SQL drivers.
	Name string `yaml:"name"`
}

// AuthConfig holds the back-office account. PasswordHash takes precedence
// over Password.
type AuthConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	JWTSecret    string `yaml:"jwt_secret"`
}

// ImagesConfig configures blob storage for photos.
type ImagesConfig struct {
	Dir          string `yaml:"dir"`
	MaxDimension int    `yaml:"max_dimension"`
}

// SessionConfig locates the CLI session file. Empty means the user config dir.
type SessionConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr: ":8080",
		Log:  LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver: db.DriverSQLite,
			DSN:    "vitrina.sqlite3",
			Name:   "vitrina",
		},
		Images: ImagesConfig{Dir: "images", MaxDimension: 1024},
	}
}

// Load builds the configuration. path may be empty, in which case DefaultFile
// is used when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"VITRINA_ADDR":          &c.Addr,
		"VITRINA_LOG_LEVEL":     &c.Log.Level,
		"VITRINA_LOG_PATH":      &c.Log.Path,
		"VITRINA_DB_DRIVER":     &c.Database.Driver,
		"VITRINA_DB_DSN":        &c.Database.DSN,
		"VITRINA_DB_NAME":       &c.Database.Name,
		"VITRINA_USERNAME":      &c.Auth.Username,
		"VITRINA_PASSWORD":      &c.Auth.Password,
		"VITRINA_PASSWORD_HASH": &c.Auth.PasswordHash,
		"VITRINA_JWT_SECRET":    &c.Auth.JWTSecret,
		"VITRINA_IMAGES_DIR":    &c.Images.Dir,
		"VITRINA_SESSION_PATH":  &c.Session.Path,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("VITRINA_IMAGES_MAX_DIMENSION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VITRINA_IMAGES_MAX_DIMENSION: %w", err)
		}
		c.Images.MaxDimension = n
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Database.Driver {
	case db.DriverSQLite, db.DriverPostgres:
	case store.DriverMongo:
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required for mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Auth.Username == "" {
		errs = append(errs, errors.New("auth.username is required"))
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		errs = append(errs, errors.New("auth.password or auth.password_hash is required"))
	}
	if c.Images.Dir == "" {
		errs = append(errs, errors.New("images.dir is required"))
	}
	if c.Images.MaxDimension <= 0 {
		errs = append(errs, errors.New("images.max_dimension must be positive"))
	}
	return errors.Join(errs...)
}

// Credentials returns the account username and its bcrypt hash, hashing a
// plain password if that is all that was configured.
func (c *Config) Credentials() (username, hash string, err error) {
	if c.Auth.Username == "" {
		return "", "", errors.New("auth.username is required")
	}
	if c.Auth.PasswordHash != "" {
		return c.Auth.Username, c.Auth.PasswordHash, nil
	}
	hash, err = auth.HashPassword(c.Auth.Password)
	if err != nil {
		return "", "", fmt.Errorf("auth.password: %w", err)
	}
	return c.Auth.Username, hash, nil
}
