package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/raido/internal/langclient"
	"github.com/starford/raido/internal/session"
	"github.com/starford/raido/internal/transport"
	"github.com/starford/raido/internal/workspace"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App            ApplicationConfig    `yaml:"app"`
	LanguageServer LanguageServerConfig `yaml:"language_server"`
	Workspace      WorkspaceConfig      `yaml:"workspace"`
	Journal        JournalConfig        `yaml:"journal"`
	Auth           AuthConfig           `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.LanguageServer.Validate(); err != nil {
		return fmt.Errorf("language_server: %w", err)
	}
	if err := c.Workspace.Validate(); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("journal: %w", err)
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

// LanguageServerConfig describes where the language server lives and how
// the client talks to it.
//
// URL, when set, is used verbatim. Otherwise the socket URL is derived from
// PageURL and Path the way a browser page would derive it from its own
// location.
type LanguageServerConfig struct {
	URL              string          `yaml:"url"`
	PageURL          string          `yaml:"page_url"`
	Path             string          `yaml:"path"`
	ClientName       string          `yaml:"client_name"`
	DocumentSelector []string        `yaml:"document_selector"`
	HandshakeTimeout time.Duration   `yaml:"handshake_timeout"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
}

// Validate validates the language server configuration.
func (c *LanguageServerConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.By(socketURL)),
		validation.Field(&c.PageURL, validation.When(c.URL == "", validation.Required), validation.By(socketURL)),
		validation.Field(&c.ClientName, validation.Required),
		validation.Field(&c.HandshakeTimeout, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	return c.Reconnect.Validate()
}

func socketURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := transport.ServerURL(s, "")
	return err
}

// ServerURL returns the WebSocket URL of the language server.
func (c *LanguageServerConfig) ServerURL() (string, error) {
	if c.URL != "" {
		return transport.ServerURL(c.URL, "")
	}
	return transport.ServerURL(c.PageURL, c.Path)
}

// ReconnectConfig mirrors transport.Options.
type ReconnectConfig struct {
	MinDelay       time.Duration `yaml:"min_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	GrowFactor     float64       `yaml:"grow_factor"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxRetries     int           `yaml:"max_retries"` // 0 retries forever
}

// Validate validates the reconnect policy.
func (c *ReconnectConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MinDelay, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxDelay, validation.Required),
		validation.Field(&c.GrowFactor, validation.Required, validation.Min(1.0)),
		validation.Field(&c.ConnectTimeout, validation.Required),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	if c.MaxDelay < c.MinDelay {
		return errors.New("reconnect: max_delay is shorter than min_delay")
	}
	return nil
}

// Options converts the policy to transport options.
func (c *ReconnectConfig) Options() transport.Options {
	return transport.Options{
		MinReconnectDelay: c.MinDelay,
		MaxReconnectDelay: c.MaxDelay,
		GrowFactor:        c.GrowFactor,
		ConnectTimeout:    c.ConnectTimeout,
		MaxRetries:        c.MaxRetries,
	}
}

// SessionConfig builds the runner configuration.
func (c *LanguageServerConfig) SessionConfig() (session.Config, error) {
	url, err := c.ServerURL()
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		URL:       url,
		Transport: c.Reconnect.Options(),
		Client: langclient.Config{
			Name:             c.ClientName,
			DocumentSelector: c.DocumentSelector,
			HandshakeTimeout: c.HandshakeTimeout,
		},
	}, nil
}

// WorkspaceConfig lists the documents served to the editor. Root is only
// required when a document is read from a file.
type WorkspaceConfig struct {
	Root      string                     `yaml:"root"`
	Documents []workspace.DocumentSource `yaml:"documents"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Documents, validation.Required),
	); err != nil {
		return err
	}
	for i := range c.Documents {
		if err := c.Documents[i].Validate(); err != nil {
			return fmt.Errorf("documents[%d]: %w", i, err)
		}
		if c.Documents[i].Path != "" && c.Root == "" {
			return fmt.Errorf("documents[%d]: path requires workspace root", i)
		}
	}
	return nil
}

// HasFiles reports whether any document is read from disk.
func (c *WorkspaceConfig) HasFiles() bool {
	for _, d := range c.Documents {
		if d.Path != "" {
			return true
		}
	}
	return false
}

// JournalConfig holds the SQLite session journal location.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
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

// NewDefaultConfig returns a new Config with sensible default values: the
// two sample JSON models and a language server on localhost:3000.
func NewDefaultConfig() *Config {
	def := transport.DefaultOptions()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		LanguageServer: LanguageServerConfig{
			PageURL:          "http://localhost:3000/",
			Path:             "/sampleServer",
			ClientName:       "Sample Language Client",
			DocumentSelector: []string{"json"},
			Reconnect: ReconnectConfig{
				MinDelay:       def.MinReconnectDelay,
				MaxDelay:       def.MaxReconnectDelay,
				GrowFactor:     def.GrowFactor,
				ConnectTimeout: def.ConnectTimeout,
			},
		},
		Workspace: WorkspaceConfig{
			Documents: []workspace.DocumentSource{
				{
					URI:  "inmemory://model1.json",
					Kind: "json",
					Content: `{
    "$schema": "http://json.schemastore.org/coffeelint",
    "line_endings": "unix"
}`,
				},
				{
					URI:          "inmemory://model2.json",
					Kind:         "json",
					AuthoringKey: "0d4991873f334685a9686d1b48e0ff48",
					Content: `{
    "$schema": "http://json.schemastore.org/coffeelint",
    "line_endings": "linux"
}`,
				},
			},
		},
		Journal: JournalConfig{
			Path: "./raido.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
