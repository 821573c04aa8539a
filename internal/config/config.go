// Package config loads explorer settings: built-in defaults, then an
// optional TOML file, then KGV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `toml:"env" validate:"oneof=development production"` // KGV_ENV (default "development")
	LogLevel string `toml:"log_level"`                                   // KGV_LOG_LEVEL (optional override)

	APIURL   string `toml:"api_url" validate:"required,url"` // KGV_API_URL (default "http://localhost:8000")
	APIToken string `toml:"api_token"`                       // KGV_API_TOKEN (optional)
	User     string `toml:"user"`                            // KGV_USER (optional, else the last stored user)

	ListenAddr string `toml:"listen_addr" validate:"required"`   // KGV_LISTEN_ADDR (default ":8080")
	AuthToken  string `toml:"auth_token"`                        // KGV_AUTH_TOKEN (optional, empty = auth disabled)
	NATSURL    string `toml:"nats_url" validate:"omitempty,url"` // KGV_NATS_URL (optional, empty = no events)

	DatabaseURL string `toml:"database_url"` // KGV_DATABASE_URL (optional; postgres preferences when set)
	PrefsScope  string `toml:"prefs_scope"`  // KGV_PREFS_SCOPE (default "default")
	PrefsPath   string `toml:"prefs_path"`   // KGV_PREFS_PATH (sqlite file when no database URL)

	ColorSchemeFile string `toml:"color_scheme_file"`                       // KGV_COLOR_SCHEME_FILE (optional)
	ShareBaseURL    string `toml:"share_base_url" validate:"omitempty,url"` // KGV_SHARE_BASE_URL (default APIURL)

	Viewport      Viewport      `toml:"viewport"`                       // KGV_VIEWPORT, "WxH" (default 960x600)
	FrameInterval time.Duration `toml:"frame_interval" validate:"gt=0"` // KGV_FRAME_INTERVAL (default 16ms)

	Export Export `toml:"export"`
}

// Export configures periodic snapshot export. It is enabled when Bucket,
// Dir or GitRepo is set.
type Export struct {
	Bucket    string        `toml:"bucket"`                                     // KGV_EXPORT_BUCKET
	Prefix    string        `toml:"prefix"`                                     // KGV_EXPORT_PREFIX (default "kgv/")
	Region    string        `toml:"region"`                                     // KGV_EXPORT_REGION (default "us-east-1")
	Endpoint  string        `toml:"endpoint" validate:"omitempty,url"`          // KGV_EXPORT_ENDPOINT (custom endpoint for MinIO)
	Dir       string        `toml:"dir"`                                        // KGV_EXPORT_DIR
	GitRepo   string        `toml:"git_repo"`                                   // KGV_EXPORT_GIT_REPO (local clone)
	GitBranch string        `toml:"git_branch"`                                 // KGV_EXPORT_GIT_BRANCH (default "main")
	Interval  time.Duration `toml:"interval" validate:"gte=0"`                  // KGV_EXPORT_INTERVAL (default 5m; 0 = disabled)
	Formats   []string      `toml:"formats" validate:"dive,oneof=svg png json"` // KGV_EXPORT_FORMATS (default svg,json)
}

// Enabled reports whether a destination is configured.
func (e Export) Enabled() bool { return e.Bucket != "" || e.Dir != "" || e.GitRepo != "" }

// Viewport is a canvas size.
type Viewport struct {
	Width  float64 `validate:"gt=0"`
	Height float64 `validate:"gt=0"`
}

// ParseViewport parses "WxH".
func ParseViewport(s string) (Viewport, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Viewport{}, fmt.Errorf("viewport %q: want WxH", s)
	}
	width, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return Viewport{}, fmt.Errorf("viewport %q: %w", s, err)
	}
	height, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return Viewport{}, fmt.Errorf("viewport %q: %w", s, err)
	}
	return Viewport{Width: width, Height: height}, nil
}

// UnmarshalText lets the TOML file write viewport = "1280x720".
func (v *Viewport) UnmarshalText(text []byte) error {
	parsed, err := ParseViewport(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Viewport) String() string {
	return strconv.FormatFloat(v.Width, 'f', -1, 64) + "x" + strconv.FormatFloat(v.Height, 'f', -1, 64)
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Env:           "development",
		APIURL:        "http://localhost:8000",
		ListenAddr:    ":8080",
		PrefsScope:    "default",
		Viewport:      Viewport{Width: 960, Height: 600},
		FrameInterval: 16 * time.Millisecond,
		Export: Export{
			Prefix:    "kgv/",
			Region:    "us-east-1",
			GitBranch: "main",
			Interval:  5 * time.Minute,
			Formats:   []string{"svg", "json"},
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/kgv/config.toml, falling back to
// ~/.config.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "kgv", "config.toml")
}

// Load reads the file named by KGV_CONFIG, or the default path, then the
// environment. A missing default file is fine; a missing KGV_CONFIG file
// is not.
func Load() (*Config, error) {
	path, explicit := os.Getenv("KGV_CONFIG"), true
	if path == "" {
		path, explicit = DefaultPath(), false
	}
	return LoadFrom(path, explicit, os.Getenv)
}

// LoadFrom is Load with an explicit file and environment.
func LoadFrom(path string, required bool, getenv func(string) string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			if !errors.Is(err, os.ErrNotExist) || required {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
		}
	}
	if err := c.applyEnv(getenv); err != nil {
		return nil, err
	}
	if c.ShareBaseURL == "" {
		c.ShareBaseURL = c.APIURL
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	for key, dst := range map[string]*string{
		"KGV_ENV":               &c.Env,
		"KGV_LOG_LEVEL":         &c.LogLevel,
		"KGV_API_URL":           &c.APIURL,
		"KGV_API_TOKEN":         &c.APIToken,
		"KGV_USER":              &c.User,
		"KGV_LISTEN_ADDR":       &c.ListenAddr,
		"KGV_AUTH_TOKEN":        &c.AuthToken,
		"KGV_NATS_URL":          &c.NATSURL,
		"KGV_DATABASE_URL":      &c.DatabaseURL,
		"KGV_PREFS_SCOPE":       &c.PrefsScope,
		"KGV_PREFS_PATH":        &c.PrefsPath,
		"KGV_COLOR_SCHEME_FILE": &c.ColorSchemeFile,
		"KGV_SHARE_BASE_URL":    &c.ShareBaseURL,
		"KGV_EXPORT_BUCKET":     &c.Export.Bucket,
		"KGV_EXPORT_PREFIX":     &c.Export.Prefix,
		"KGV_EXPORT_REGION":     &c.Export.Region,
		"KGV_EXPORT_ENDPOINT":   &c.Export.Endpoint,
		"KGV_EXPORT_DIR":        &c.Export.Dir,
		"KGV_EXPORT_GIT_REPO":   &c.Export.GitRepo,
		"KGV_EXPORT_GIT_BRANCH": &c.Export.GitBranch,
	} {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	for key, dst := range map[string]*time.Duration{
		"KGV_FRAME_INTERVAL":  &c.FrameInterval,
		"KGV_EXPORT_INTERVAL": &c.Export.Interval,
	} {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := getenv("KGV_VIEWPORT"); v != "" {
		vp, err := ParseViewport(v)
		if err != nil {
			return fmt.Errorf("KGV_VIEWPORT: %w", err)
		}
		c.Viewport = vp
	}
	if v := getenv("KGV_EXPORT_FORMATS"); v != "" {
		c.Export.Formats = nil
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				c.Export.Formats = append(c.Export.Formats, f)
			}
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks the settings and lists every invalid field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msgs[i] += "=" + fe.Param()
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
