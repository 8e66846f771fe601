package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configFile, []byte(`
client_id: FILE_CLIENT_ID
redirect_uri: adobe+file://adobeid/FILE_CLIENT_ID
timeout: 30s
token_file: /tmp/tokens.json
`), 0600); err != nil {
		t.Fatalf("WriteFile error: %s", err)
	}
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte(`
ADOBE_CLIENT_ID=DOTENV_CLIENT_ID
ADOBE_SCOPES=email,openid
FRAMEIO_OAUTH_DIR=/tmp/dotenv-dir
`), 0600); err != nil {
		t.Fatalf("WriteFile error: %s", err)
	}
	t.Setenv(EnvClientID, "ENV_CLIENT_ID")
	t.Setenv(EnvRedirectURI, "")
	os.Unsetenv(EnvRedirectURI)
	os.Unsetenv(EnvScopes)
	os.Unsetenv(EnvDir)

	got, err := Load(configFile, envFile)
	if err != nil {
		t.Fatalf("Load error: %s", err)
	}
	want := Default()
	want.ClientID = "ENV_CLIENT_ID"
	want.RedirectURI = "adobe+file://adobeid/FILE_CLIENT_ID"
	want.Scopes = []string{"email", "openid"}
	want.Timeout = 30 * time.Second
	want.Dir = "/tmp/dotenv-dir"
	want.TokenFile = "/tmp/tokens.json"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_NoFile(t *testing.T) {
	dir := t.TempDir()
	for _, key := range []string{EnvClientID, EnvRedirectURI, EnvScopes, EnvDir} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	got, err := Load(filepath.Join(dir, "config.yaml"), filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatalf("Load error: %s", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Default()
	valid.ClientID = "YOUR_CLIENT_ID"
	valid.RedirectURI = "adobe+abc://adobeid/YOUR_CLIENT_ID"
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate error: %s", err)
	}
	for name, mutate := range map[string]func(c *Config){
		"NoClientID":    func(c *Config) { c.ClientID = "" },
		"NoRedirectURI": func(c *Config) { c.RedirectURI = "" },
		"HTTPRedirect":  func(c *Config) { c.RedirectURI = "https://localhost/callback" },
		"NoScope":       func(c *Config) { c.Scopes = nil },
		"NoTimeout":     func(c *Config) { c.Timeout = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatalf("Validate wants error")
			}
			t.Logf("expected error: %s", err)
		})
	}
}

func TestParseScopes(t *testing.T) {
	got := ParseScopes("email profile,openid  offline_access")
	want := []string{"email", "profile", "openid", "offline_access"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
