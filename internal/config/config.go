// Package config loads the configuration of the command.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/int128/oauth2scheme"
	"github.com/int128/oauth2scheme/ims"
	"github.com/joho/godotenv"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// Environment variables.
const (
	EnvClientID    = "ADOBE_CLIENT_ID"
	EnvRedirectURI = "ADOBE_REDIRECT_URI"
	EnvScopes      = "ADOBE_SCOPES"
	EnvDir         = "FRAMEIO_OAUTH_DIR"
)

// Config represents the configuration.
type Config struct {
	ClientID    string        `yaml:"client_id"`
	RedirectURI string        `yaml:"redirect_uri"`
	Scopes      []string      `yaml:"scopes"`
	Timeout     time.Duration `yaml:"timeout"`
	// Shared directory with the helper.
	Dir         string `yaml:"dir"`
	TokenFile   string `yaml:"token_file"`
	AllowedHost string `yaml:"allowed_host"`
}

// Default returns the built-in defaults.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Scopes:      append([]string(nil), ims.DefaultScopes...),
		Timeout:     120 * time.Second,
		Dir:         filepath.Join(home, ".frameio-oauth"),
		TokenFile:   filepath.Join(home, ".frameio-tokens.json"),
		AllowedHost: ims.Host,
	}
}

// DefaultPath returns the path of the config file.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "frameio-oauth", "config.yaml")
}

// Load returns the defaults overridden by the config file, the env file and the environment.
// A missing file is ignored.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, xerrors.Errorf("could not decode %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, xerrors.Errorf("could not read %s: %w", path, err)
	}

	dotenv, err := godotenv.Read(envFile)
	if err != nil && !os.IsNotExist(err) {
		return cfg, xerrors.Errorf("could not read %s: %w", envFile, err)
	}
	// the environment wins over the env file
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}
	if v := lookup(EnvClientID); v != "" {
		cfg.ClientID = v
	}
	if v := lookup(EnvRedirectURI); v != "" {
		cfg.RedirectURI = v
	}
	if v := lookup(EnvScopes); v != "" {
		cfg.Scopes = ParseScopes(v)
	}
	if v := lookup(EnvDir); v != "" {
		cfg.Dir = v
	}
	return cfg, nil
}

// ParseScopes splits scopes separated by spaces or commas.
func ParseScopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
}

// Validate returns an error if a mandatory value is missing.
func (c Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if c.RedirectURI == "" {
		missing = append(missing, EnvRedirectURI)
	}
	if len(missing) > 0 {
		return xerrors.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	if _, err := oauth2scheme.RedirectScheme(c.RedirectURI); err != nil {
		return xerrors.Errorf("invalid %s: %w", EnvRedirectURI, err)
	}
	if len(c.Scopes) == 0 {
		return xerrors.New("no scope is configured")
	}
	if c.Timeout <= 0 {
		return xerrors.Errorf("timeout must be positive but was %s", c.Timeout)
	}
	return nil
}
