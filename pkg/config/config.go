package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Host string `yaml:"host" toml:"host"`
	Port string `yaml:"port" toml:"port"`

	// Shared secret for admin routes. Empty disables them (500).
	AdminToken    string `yaml:"-" toml:"-"`
	SessionSecret string `yaml:"-" toml:"-"`

	ProjectRoot string `yaml:"project_root" toml:"project_root"`
	ContentDir  string `yaml:"content_dir" toml:"content_dir"`
	CachePath   string `yaml:"cache_path" toml:"cache_path"`
	ProfilePath string `yaml:"profile_path" toml:"profile_path"`

	// Media settings
	MediaDir string `yaml:"media_dir" toml:"media_dir"`
	MediaURL string `yaml:"media_url" toml:"media_url"`

	// Markdown settings
	MarkdownEngine string `yaml:"markdown_engine" toml:"markdown_engine"`
	MarkdownSafe   bool   `yaml:"markdown_safe" toml:"markdown_safe"`

	WatchDebounce Duration `yaml:"watch_debounce" toml:"watch_debounce"`
}

// Duration is a time.Duration written as a Go duration string ("500ms") in
// YAML and TOML files.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func Default() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           "4000",
		ProjectRoot:    ".",
		ContentDir:     filepath.Join("content", "posts"),
		CachePath:      filepath.Join("data", "posts.json"),
		ProfilePath:    filepath.Join("data", "profile.json"),
		MediaDir:       filepath.Join("static", "media"),
		MediaURL:       "/static/media",
		MarkdownEngine: "lite",
		WatchDebounce:  Duration(500 * time.Millisecond),
	}
}

// Load reads .env, then the optional site file at path (YAML or TOML by
// extension), then applies environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("Site config not found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(raw, c)
	case ".toml":
		err = toml.Unmarshal(raw, c)
	default:
		return fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Host = getEnv("HOST", c.Host)
	c.Port = getEnv("PORT", c.Port)
	c.AdminToken = os.Getenv("ADMIN_TOKEN")
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)

	c.ProjectRoot = getEnv("PROJECT_ROOT", c.ProjectRoot)
	c.ContentDir = getEnv("CONTENT_DIR", c.ContentDir)
	c.CachePath = getEnv("CACHE_PATH", c.CachePath)
	c.ProfilePath = getEnv("PROFILE_PATH", c.ProfilePath)

	c.MediaDir = getEnv("MEDIA_DIR", c.MediaDir)
	c.MediaURL = getEnv("MEDIA_URL", c.MediaURL)

	c.MarkdownEngine = getEnv("MARKDOWN_ENGINE", c.MarkdownEngine)
	if v := os.Getenv("MARKDOWN_SAFE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.MarkdownSafe = b
		}
	}
	if v := os.Getenv("WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.WatchDebounce = Duration(d)
		}
	}
}

// Resolve joins rel onto the project root unless it is already absolute.
func (c *Config) Resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.ProjectRoot, rel)
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
