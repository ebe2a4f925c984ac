package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdpub/internal/api"
)

// Auth modes.
const (
	AuthModePassthrough = api.AuthModePassthrough
	AuthModeToken       = api.AuthModeToken
)

// Catalog backends.
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Catalog    CatalogConfig     `yaml:"catalog"`
	Translator TranslatorConfig  `yaml:"translator"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Inbox      InboxConfig       `yaml:"inbox"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	if err := c.Translator.Validate(); err != nil {
		return err
	}
	if c.Catalog.Backend == BackendLocal {
		if err := c.SQLite.Validate(); err != nil {
			return err
		}
	}
	return c.Auth.Validate()
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

// CatalogConfig describes the catalog the service publishes into.
//
// Backend "remote" talks to the catalog web service at URL. Backend "local"
// keeps the catalog in the SQLite database and creates the community and
// orphan folders on startup.
type CatalogConfig struct {
	Backend string        `yaml:"backend"`
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`

	CommunityID      string `yaml:"community_id"`
	OrphanProjectsID string `yaml:"orphan_projects_id"`
	OrphanProductsID string `yaml:"orphan_products_id"`
	ForceUpdate      bool   `yaml:"force_update"`

	MetadataFile string `yaml:"metadata_file"`
	ISO1File     string `yaml:"iso1_file"`
	ISO2File     string `yaml:"iso2_file"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendRemote
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(BackendRemote, BackendLocal)),
		validation.Field(&c.URL, validation.When(c.Backend == BackendRemote, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.CommunityID, validation.Required),
		validation.Field(&c.MetadataFile, validation.Required),
		validation.Field(&c.ISO1File, validation.Required),
		validation.Field(&c.ISO2File, validation.Required),
	)
}

// TranslatorConfig locates the metadata translation service.
type TranslatorConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the translator configuration.
func (c *TranslatorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// SQLiteConfig holds SQLite database configuration for the local backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// InboxConfig holds the request drop directory. An empty path disables it.
type InboxConfig struct {
	Path     string        `yaml:"path"`
	Debounce time.Duration `yaml:"debounce"`
}

// Enabled reports whether the inbox watcher runs.
func (c *InboxConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration.
//
// Mode controls how callers are authenticated:
//   - "passthrough" (default): the caller's bearer token is forwarded to the catalog.
//   - "token": a static bearer token guards the API; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModePassthrough
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModePassthrough, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when the static token is enforced.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
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
		Catalog: CatalogConfig{
			Backend:      BackendRemote,
			Timeout:      60 * time.Second,
			MetadataFile: "md_metadata.json",
			ISO1File:     "md_metadata_iso19115-1.xml",
			ISO2File:     "md_metadata_iso19115-2.xml",
		},
		Translator: TranslatorConfig{
			Timeout: 120 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path: "./mdpub.db",
		},
		Inbox: InboxConfig{
			Debounce: 500 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModePassthrough,
		},
	}
}
