package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/filetree/internal/util"
	"gopkg.in/yaml.v3"
)

// Bytes per MB
const MB = 1024 * 1024

// CLI verbosity values accepted by [ConfigOverride.LogLvl]
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultRoot            = "files"
	DefaultListenAddr      = ":8080"
	DefaultLogLvl          = util.InfoLevel
	DefaultOverwriteFiles  = true
	DefaultDirPerms        = 0o755
	DefaultFilePerms       = 0o644
	DefaultReadTimeout     = 15.0
	DefaultWriteTimeout    = 30.0
	DefaultShutdownTimeout = 10.0
	DefaultMaxBodyBytes    = 10 * MB
	DefaultDBName          = "filetree.db"
	DefaultRateLimit       = 0.0 // disabled
	DefaultRateBurst       = 20
)

// UserSeed describes a user loaded into the identity store at startup.
// Token is the bearer credential the user authenticates with.
type UserSeed struct {
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email"`
	Token string `yaml:"token" json:"token"`
	Role  string `yaml:"role,omitempty" json:"role,omitempty"` // "user" (default) or "admin"
}

// Config contains runtime configuration values for the service.
type Config struct {
	Root           string        // Directory every operation is confined to (Default ./files)
	ListenAddr     string        // HTTP listen address (Default :8080)
	DBPath         string        // bbolt identity store path (Default <parent of Root>/filetree.db)
	LogLvl         util.LogLevel // (Default info)
	OverwriteFiles bool          // Whether create-file replaces existing files when the caller doesn't say (Default true)
	DirPerms       uint32        // Mode for created folders (Default 0755)
	FilePerms      uint32        // Mode for created files (Default 0644)
	MaxBodyBytes   int64         // Request body limit in bytes (Default 10MB)
	RateLimit      float64       // Sustained requests per second per user; 0 disables (Default 0)
	RateBurst      int           // Requests a user may issue at once (Default 20)
	// Timeouts in seconds
	ReadTimeout     float64
	WriteTimeout    float64
	ShutdownTimeout float64

	Users []UserSeed
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	Root            *string    `yaml:"root,omitempty" json:"root,omitempty"`
	ListenAddr      *string    `yaml:"listen_addr,omitempty" json:"listen_addr,omitempty"`
	DBPath          *string    `yaml:"db_path,omitempty" json:"db_path,omitempty"`
	LogLvl          *int       `yaml:"verbose,omitempty" json:"verbose,omitempty"` // 1 (error) .. 5 (trace)
	OverwriteFiles  *bool      `yaml:"overwrite_files,omitempty" json:"overwrite_files,omitempty"`
	DirPerms        *uint32    `yaml:"dir_perms,omitempty" json:"dir_perms,omitempty"`
	FilePerms       *uint32    `yaml:"file_perms,omitempty" json:"file_perms,omitempty"`
	MaxBodyBytes    *int64     `yaml:"max_body_bytes,omitempty" json:"max_body_bytes,omitempty"`
	RateLimit       *float64   `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	RateBurst       *int       `yaml:"rate_burst,omitempty" json:"rate_burst,omitempty"`
	ReadTimeout     *float64   `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout    *float64   `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	ShutdownTimeout *float64   `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`
	Users           []UserSeed `yaml:"users,omitempty" json:"users,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		Root:            DefaultRoot,
		ListenAddr:      DefaultListenAddr,
		LogLvl:          DefaultLogLvl,
		OverwriteFiles:  DefaultOverwriteFiles,
		DirPerms:        DefaultDirPerms,
		FilePerms:       DefaultFilePerms,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		RateLimit:       DefaultRateLimit,
		RateBurst:       DefaultRateBurst,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// NewConfig returns the defaults with override applied. override may be nil.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.Root != nil {
		c.Root = *override.Root
	}
	if override.ListenAddr != nil {
		c.ListenAddr = *override.ListenAddr
	}
	if override.DBPath != nil {
		c.DBPath = *override.DBPath
	}
	if override.LogLvl != nil {
		c.LogLvl = util.VerbosityToLevel(*override.LogLvl)
	}
	if override.OverwriteFiles != nil {
		c.OverwriteFiles = *override.OverwriteFiles
	}
	if override.DirPerms != nil {
		c.DirPerms = *override.DirPerms
	}
	if override.FilePerms != nil {
		c.FilePerms = *override.FilePerms
	}
	if override.MaxBodyBytes != nil {
		c.MaxBodyBytes = *override.MaxBodyBytes
	}
	if override.RateLimit != nil {
		c.RateLimit = *override.RateLimit
	}
	if override.RateBurst != nil {
		c.RateBurst = *override.RateBurst
	}
	if override.ReadTimeout != nil {
		c.ReadTimeout = *override.ReadTimeout
	}
	if override.WriteTimeout != nil {
		c.WriteTimeout = *override.WriteTimeout
	}
	if override.ShutdownTimeout != nil {
		c.ShutdownTimeout = *override.ShutdownTimeout
	}
	if override.Users != nil {
		c.Users = override.Users
	}
}

// Normalize makes Root absolute, fills in the DBPath default and checks
// the values that can't be defaulted. Call once after all overrides are merged.
func (c *Config) Normalize() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("root directory is required")
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %q: %w", c.Root, err)
	}
	c.Root = root
	if c.DBPath == "" {
		// keep the store outside the managed tree
		c.DBPath = filepath.Join(filepath.Dir(root), DefaultDBName)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate_limit is set, got %d", c.RateBurst)
	}
	for i, u := range c.Users {
		if u.Token == "" {
			return fmt.Errorf("users[%d] (%s): token is required", i, u.Email)
		}
	}
	return nil
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
