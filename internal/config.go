package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mediafold/internal/autosave"
	"github.com/starford/mediafold/internal/blobstore"
	"github.com/starford/mediafold/internal/engine"
	"github.com/starford/mediafold/internal/maintenance"
	"github.com/starford/mediafold/internal/mediaref"
	"github.com/starford/mediafold/internal/noteservice"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Blobs    BlobsConfig       `yaml:"blobs"`
	Media    MediaConfig       `yaml:"media"`
	Autosave AutosaveConfig    `yaml:"autosave"`
	GC       GCConfig          `yaml:"gc"`
	Auth     AuthConfig        `yaml:"auth"`
	CORS     CORSConfig        `yaml:"cors"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Vault, &c.SQLite, &c.Blobs, &c.Media, &c.Autosave, &c.GC, &c.Auth,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the directory of canonical documents.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds the note index database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// BlobsConfig selects the blob store backend.
//
// Path is the database file for "sqlite" and the root directory for "fs".
// DSN is used by "postgres". QuotaBytes of 0 means unlimited.
type BlobsConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	DSN        string `yaml:"dsn"`
	QuotaBytes int64  `yaml:"quota_bytes"`
}

// Validate validates the blob store configuration.
func (c *BlobsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(
			blobstore.BackendMemory, blobstore.BackendSQLite, blobstore.BackendFS, blobstore.BackendPostgres)),
		validation.Field(&c.Path, validation.When(
			c.Backend == blobstore.BackendSQLite || c.Backend == blobstore.BackendFS, validation.Required)),
		validation.Field(&c.DSN, validation.When(c.Backend == blobstore.BackendPostgres, validation.Required)),
		validation.Field(&c.QuotaBytes, validation.Min(int64(0))),
	)
}

// Options converts the section to blobstore options.
func (c *BlobsConfig) Options() blobstore.Options {
	return blobstore.Options{Backend: c.Backend, Path: c.Path, DSN: c.DSN, QuotaBytes: c.QuotaBytes}
}

// MediaConfig tunes the reference engine and uploads.
type MediaConfig struct {
	CollapseThreshold int             `yaml:"collapse_threshold"`
	MaxUploadBytes    int             `yaml:"max_upload_bytes"`
	Labels            mediaref.Labels `yaml:"labels"`
}

// Validate validates the media configuration.
func (c *MediaConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CollapseThreshold, validation.Min(0)),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(1)),
	)
}

// AutosaveConfig controls debounced draft saves.
type AutosaveConfig struct {
	Enabled bool          `yaml:"enabled"`
	Delay   time.Duration `yaml:"delay"`
}

// Validate validates the autosave configuration.
func (c *AutosaveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Delay, validation.When(c.Enabled, validation.Required, validation.Min(time.Millisecond))),
	)
}

// GCConfig controls orphan blob collection.
type GCConfig struct {
	Grace time.Duration `yaml:"grace"`
}

// Validate validates the collection configuration.
func (c *GCConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Grace, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// CORSConfig lists the browser origins allowed to call the API. Empty means
// same-origin only.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./mediafold.db",
		},
		Blobs: BlobsConfig{
			Backend: blobstore.BackendSQLite,
			Path:    "./blobs.db",
		},
		Media: MediaConfig{
			CollapseThreshold: engine.DefaultThreshold,
			MaxUploadBytes:    noteservice.DefaultMaxUpload,
			Labels:            mediaref.DefaultLabels(),
		},
		Autosave: AutosaveConfig{
			Enabled: true,
			Delay:   autosave.DefaultDelay,
		},
		GC: GCConfig{
			Grace: maintenance.DefaultGrace,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
