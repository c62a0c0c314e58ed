// Package config loads the custodian configuration file.
//
// The file is YAML. It is first validated against the embedded CUE schema,
// so unknown keys and bad enum values are rejected with the offending path,
// then decoded into Config and completed with defaults.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Backup kinds.
const (
	BackupNone  = "none"
	BackupDir   = "dir"
	BackupMinio = "minio"
)

// ErrInvalid is returned for files that fail schema or semantic validation.
var ErrInvalid = errors.New("config: invalid")

// Config is the decoded configuration.
type Config struct {
	Catalog     CatalogConfig     `yaml:"catalog"`
	Identity    IdentityConfig    `yaml:"identity"`
	Environment EnvironmentConfig `yaml:"environment"`
	Backup      BackupConfig      `yaml:"backup"`
	Sync        SyncConfig        `yaml:"sync"`
	Watch       WatchConfig       `yaml:"watch"`
}

type CatalogConfig struct {
	Path            string `yaml:"path"`
	IntegrityPolicy string `yaml:"integrity_policy"`
}

type IdentityConfig struct {
	User   string `yaml:"user"`
	Device string `yaml:"device"`
}

type EnvironmentConfig struct {
	DeviceModel string `yaml:"device_model"`
	OSVersion   string `yaml:"os_version"`
	AppVersion  string `yaml:"app_version"`
	Timezone    string `yaml:"timezone"`
}

type BackupConfig struct {
	Kind  string      `yaml:"kind"`
	Dir   string      `yaml:"dir"`
	Minio MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

type SyncConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type WatchConfig struct {
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
	Patterns []string      `yaml:"patterns"`
}

// DefaultDir is where the catalog and its key live unless configured.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".custodian"
	}
	return filepath.Join(home, ".custodian")
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates and decodes a YAML document.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateSchema(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	doc := ctx.Encode(raw)
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Catalog.Path == "" {
		c.Catalog.Path = filepath.Join(DefaultDir(), "catalog.db")
	}
	if c.Catalog.IntegrityPolicy == "" {
		c.Catalog.IntegrityPolicy = "warn"
	}
	if c.Backup.Kind == "" {
		c.Backup.Kind = BackupNone
	}
	if c.Backup.Minio.Bucket == "" {
		c.Backup.Minio.Bucket = "custodian"
	}
	if c.Sync.Concurrency == 0 {
		c.Sync.Concurrency = 4
	}
	if c.Watch.Interval == 0 {
		c.Watch.Interval = 2 * time.Second
	}
	if len(c.Watch.Patterns) == 0 {
		c.Watch.Patterns = []string{"Screenshot*.png", "Screen Shot*.png"}
	}
}

// Validate checks constraints that span fields.
func (c *Config) Validate() error {
	switch c.Backup.Kind {
	case BackupNone:
	case BackupDir:
		if c.Backup.Dir == "" {
			return fmt.Errorf("%w: backup.dir is required when backup.kind is %q", ErrInvalid, BackupDir)
		}
	case BackupMinio:
		if c.Backup.Minio.Endpoint == "" {
			return fmt.Errorf("%w: backup.minio.endpoint is required when backup.kind is %q", ErrInvalid, BackupMinio)
		}
	default:
		return fmt.Errorf("%w: unknown backup.kind %q", ErrInvalid, c.Backup.Kind)
	}
	for _, p := range c.Watch.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("%w: watch pattern %q: %v", ErrInvalid, p, err)
		}
	}
	return nil
}
