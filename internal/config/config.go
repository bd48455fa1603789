package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/2beens/withings2weeks/pkg"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

const (
	appName        = "withings2weeks"
	ConfigDirEnv   = "WITHINGS2WEEKS_CONFIG_DIR"
	AppConfigFile  = "app_config.toml"
	TokenFile      = ".withings_tokens.json"
	DefaultScope   = "user.metrics"
	DefaultBaseURL = "https://wbsapi.withings.net"
	DefaultAuthURL = "https://account.withings.com/oauth2_user/authorize2"
)

var (
	ErrConfigNotFound   = errors.New("config file not found")
	ErrMissingOAuthKeys = errors.New("missing withings oauth config keys")
)

type Config struct {
	Withings  Withings  `toml:"withings"`
	App       App       `toml:"app"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
}

type Withings struct {
	OAuth OAuth `toml:"oauth"`
	API   API   `toml:"api"`
}

type OAuth struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
}

type API struct {
	BaseURL   string        `toml:"base_url"`
	AuthURL   string        `toml:"auth_url"`
	Timeout   time.Duration `toml:"timeout"`
	PageDelay time.Duration `toml:"page_delay"`
	MaxPages  int           `toml:"max_pages"`
}

type App struct {
	// Timezone is an IANA name; empty means the system local zone.
	Timezone string `toml:"timezone"`
}

type Logging struct {
	Level    string `toml:"level"`
	File     string `toml:"file"`
	ToStdout bool   `toml:"to_stdout"`
	JSON     bool   `toml:"json"`
}

type Telemetry struct {
	HoneycombEnabled bool   `toml:"honeycomb_enabled"`
	MetricsFile      string `toml:"metrics_file"`
}

func Default() *Config {
	return &Config{
		Withings: Withings{
			OAuth: OAuth{
				Scopes: []string{DefaultScope},
			},
			API: API{
				BaseURL: DefaultBaseURL,
				AuthURL: DefaultAuthURL,
				Timeout: 30 * time.Second,
			},
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads the TOML config at path, or at AppConfigPath when path is empty.
// Unset values keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = AppConfigPath(); err != nil {
			return nil, err
		}
	}

	exists, err := pkg.PathExists(path, false)
	if err != nil {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Warnf("unknown config keys in %s: %v", path, undecoded)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if len(c.Withings.OAuth.Scopes) == 0 {
		c.Withings.OAuth.Scopes = defaults.Withings.OAuth.Scopes
	}
	if c.Withings.API.BaseURL == "" {
		c.Withings.API.BaseURL = defaults.Withings.API.BaseURL
	}
	if c.Withings.API.AuthURL == "" {
		c.Withings.API.AuthURL = defaults.Withings.API.AuthURL
	}
	if c.Withings.API.Timeout <= 0 {
		c.Withings.API.Timeout = defaults.Withings.API.Timeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// ValidateOAuth reports every missing [withings.oauth] key at once.
func (c *Config) ValidateOAuth() error {
	var missing []string
	if strings.TrimSpace(c.Withings.OAuth.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(c.Withings.OAuth.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if strings.TrimSpace(c.Withings.OAuth.RedirectURI) == "" {
		missing = append(missing, "redirect_uri")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingOAuthKeys, strings.Join(missing, ", "))
	}
	return nil
}

// Location resolves App.Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

// Dir returns the config directory without creating it.
func Dir() (string, error) {
	if override := os.Getenv(ConfigDirEnv); override != "" {
		return override, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

func AppConfigPath() (string, error) {
	return pathInDir(AppConfigFile)
}

func TokenPath() (string, error) {
	return pathInDir(TokenFile)
}

func pathInDir(name string) (string, error) {
	dir, err := EnsureDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	migrateLegacyFile(path, name)
	return path, nil
}

// migrateLegacyFile copies a file left in the working directory by older
// versions into the config dir, unless the target already exists.
func migrateLegacyFile(target, legacyName string) {
	if exists, _ := pkg.PathExists(target, false); exists {
		return
	}
	if exists, _ := pkg.PathExists(legacyName, false); !exists {
		return
	}
	if err := pkg.CopyFile(legacyName, target); err != nil {
		log.Warnf("migrate legacy %s: %s", legacyName, err)
		return
	}
	log.Infof("migrated legacy '%s' to new config dir: %s", legacyName, target)
}
