package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vitae/internal/buildcache"
	"github.com/starford/vitae/internal/profile"
	"github.com/starford/vitae/internal/toolchain"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Profiles  ProfilesConfig    `yaml:"profiles"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Toolchain ToolchainConfig   `yaml:"toolchain"`
	Cache     CacheConfig       `yaml:"cache"`
	Metrics   MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Profiles.Validate(); err != nil {
		return fmt.Errorf("profiles: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Toolchain.Validate(); err != nil {
		return fmt.Errorf("toolchain: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
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

// ProfilesConfig holds the path to the profile directory.
type ProfilesConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the profiles configuration.
func (c *ProfilesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ToolchainConfig describes the external TeX commands and the file names
// they read and write inside a scratch directory.
type ToolchainConfig struct {
	Compile toolchain.Command `yaml:"compile"`
	Filter  toolchain.Command `yaml:"filter"`
	SyncTeX toolchain.Command `yaml:"synctex"`

	Input   string        `yaml:"input"`
	Output  string        `yaml:"output"`
	SideMap string        `yaml:"side_map"`
	Log     string        `yaml:"log"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the toolchain configuration.
func (c *ToolchainConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Input, validation.Required),
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.SideMap, validation.Required),
		validation.Field(&c.Log, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return err
	}
	cmds := []struct {
		label string
		cmd   toolchain.Command
	}{{"compile", c.Compile}, {"filter", c.Filter}, {"synctex", c.SyncTeX}}
	for _, x := range cmds {
		if x.cmd.Name == "" {
			return fmt.Errorf("%s: command name is required", x.label)
		}
	}
	return nil
}

// Apply copies the configured commands and file names onto tc.
func (c *ToolchainConfig) Apply(tc *toolchain.Toolchain) {
	tc.Compile, tc.Filter, tc.SyncTeX = c.Compile, c.Filter, c.SyncTeX
	tc.Input, tc.Output, tc.SideMap, tc.Log = c.Input, c.Output, c.SideMap, c.Log
}

// CacheConfig bounds the in-memory caches and locates scratch directories.
type CacheConfig struct {
	BuildCapacity   int    `yaml:"build_capacity"`
	ProfileCapacity int    `yaml:"profile_capacity"`
	ScratchRoot     string `yaml:"scratch_root"`
	ScratchPrefix   string `yaml:"scratch_prefix"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BuildCapacity, validation.Required, validation.Min(1)),
		validation.Field(&c.ProfileCapacity, validation.Required, validation.Min(1)),
		validation.Field(&c.ScratchRoot, validation.Required),
		validation.Field(&c.ScratchPrefix, validation.Required),
	)
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
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
		Profiles: ProfilesConfig{
			Path: "./profiles",
		},
		SQLite: SQLiteConfig{
			Path: "./vitae.db",
		},
		Toolchain: ToolchainConfig{
			Compile: toolchain.DefaultCompile,
			Filter:  toolchain.DefaultFilter,
			SyncTeX: toolchain.DefaultSyncTeX,
			Input:   toolchain.DefaultInput,
			Output:  toolchain.DefaultOutput,
			SideMap: toolchain.DefaultSideMap,
			Log:     toolchain.DefaultLog,
			Timeout: buildcache.DefaultTimeout,
		},
		Cache: CacheConfig{
			BuildCapacity:   buildcache.DefaultCapacity,
			ProfileCapacity: profile.DefaultCapacity,
			ScratchRoot:     os.TempDir(),
			ScratchPrefix:   buildcache.DefaultPrefix,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
