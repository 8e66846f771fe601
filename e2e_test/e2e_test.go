package e2e_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"testing"
	"time"

	"github.com/int128/oauth2scheme"
	"github.com/int128/oauth2scheme/e2e_test/authserver"
	"github.com/int128/oauth2scheme/e2e_test/client"
	"github.com/int128/oauth2scheme/handoff"
	"github.com/int128/oauth2scheme/internal/helper"
	"github.com/int128/oauth2scheme/internal/platform"
	"golang.org/x/oauth2"
)

const invalidGrantResponse = `{"error":"invalid_grant"}`
const validTokenResponse = `{"access_token": "ACCESS_TOKEN","token_type": "Bearer","expires_in": 3600,"refresh_token": "REFRESH_TOKEN"}`
const redirectURI = "adobe+abc://adobeid/YOUR_CLIENT_ID"

// helperTimeout is the deadline of the helper in the timeout mode.
const helperTimeout = 2 * time.Second

// files written by the helper process for assertions
const registeredFileName = "registered"
const openedFileName = "opened"

// TestHelperProcess is not a test.
// It behaves as the helper when a test launches this binary with the arguments after "--".
//
//	-- MODE DIR ALLOWED_HOST CERT_FILE [URL]
func TestHelperProcess(t *testing.T) {
	for i, arg := range os.Args {
		if arg == "--" && len(os.Args) >= i+5 {
			os.Exit(runHelper(os.Args[i+1:]))
		}
	}
}

func runHelper(args []string) int {
	mode, d, allowedHost, certFile := args[0], handoff.Dir(args[1]), args[2], args[3]
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logf := func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stderr, mode+": "+format+"\n", args...)
	}
	certPool, err := client.LoadCertPool(certFile)
	if err != nil {
		logf("%s", err)
		return 1
	}
	browser := client.Browser{RootCAs: certPool}
	timeout := 10 * time.Second
	if mode == "timeout" {
		timeout = helperTimeout
	}
	cfg := helper.Config{
		Dir: d,
		OS: &platform.OS{
			Dir: d,
			Registrar: registrarFunc(func(scheme string) error {
				return os.WriteFile(d.Path(registeredFileName), []byte(scheme), 0600)
			}),
			Logf: logf,
		},
		OpenURL: func(authURL string) error {
			if err := os.WriteFile(d.Path(openedFileName), []byte(authURL), 0600); err != nil {
				return err
			}
			if mode == "no-browser" || mode == "timeout" {
				return nil
			}
			location, err := browser.GetRedirect(authURL)
			if err != nil {
				return err
			}
			// the OS launches another process for the custom scheme
			cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$", "--", "os-launch", string(d), allowedHost, certFile, location)
			cmd.Stdout, cmd.Stderr = os.Stderr, os.Stderr
			return cmd.Start()
		},
		AllowedHost: allowedHost,
		Timeout:     timeout,
		Logf:        logf,
	}
	if _, err := helper.Run(ctx, cfg, args[4:]); err != nil {
		logf("%s", err)
		return 1
	}
	return 0
}

type registrarFunc func(scheme string) error

func (f registrarFunc) Register(scheme string) error { return f(scheme) }

func newAuthServer(t *testing.T) *httptest.Server {
	return httptest.NewTLSServer(&authserver.Handler{
		TestingT: t,
		NewAuthorizationResponse: func(r authserver.AuthorizationRequest) string {
			if w := "email profile openid offline_access"; r.Scope != w {
				t.Errorf("scope wants %s but %s", w, r.Scope)
				return fmt.Sprintf("%s?error=invalid_scope", r.RedirectURI)
			}
			return fmt.Sprintf("%s?state=%s&code=%s", r.RedirectURI, r.State, "AUTH_CODE")
		},
		NewTokenResponse: func(r authserver.TokenRequest) (int, string) {
			if w := "AUTH_CODE"; r.Code != w {
				t.Errorf("code wants %s but %s", w, r.Code)
				return 400, invalidGrantResponse
			}
			if r.CodeVerifier == "" {
				t.Errorf("code_verifier is missing")
				return 400, invalidGrantResponse
			}
			return 200, validTokenResponse
		},
	})
}

func newConfig(t *testing.T, s *httptest.Server, mode, allowedHost string) oauth2scheme.Config {
	d := handoff.Dir(t.TempDir())
	certFile := filepath.Join(t.TempDir(), "ca.pem")
	if err := client.WriteCert(certFile, s.Certificate()); err != nil {
		t.Fatalf("WriteCert error: %s", err)
	}
	return oauth2scheme.Config{
		OAuth2Config: oauth2.Config{
			ClientID:    "YOUR_CLIENT_ID",
			Scopes:      []string{"email", "profile", "openid", "offline_access"},
			RedirectURL: redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   s.URL + "/auth",
				TokenURL:  s.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		Dir:           d,
		HelperCommand: []string{os.Args[0], "-test.run=^TestHelperProcess$", "--", mode, string(d), allowedHost, certFile},
		Timeout:       10 * time.Second,
		PollInterval:  100 * time.Millisecond,
		Logf:          t.Logf,
	}
}

func serverHost(t *testing.T, s *httptest.Server) string {
	u, err := url.Parse(s.URL)
	if err != nil {
		t.Fatalf("Parse error: %s", err)
	}
	return u.Host
}

func TestHappyPath(t *testing.T) {
	s := newAuthServer(t)
	defer s.Close()
	cfg := newConfig(t, s, "primary", serverHost(t, s))
	ctx, cancel := context.WithTimeout(context.TODO(), 20*time.Second)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.Client())

	token, err := oauth2scheme.GetToken(ctx, cfg)
	if err != nil {
		t.Fatalf("could not get a token: %s", err)
	}
	if token.AccessToken != "ACCESS_TOKEN" {
		t.Errorf("AccessToken wants %s but %s", "ACCESS_TOKEN", token.AccessToken)
	}
	if token.RefreshToken != "REFRESH_TOKEN" {
		t.Errorf("RefreshToken wants %s but %s", "REFRESH_TOKEN", token.RefreshToken)
	}
	registered, err := os.ReadFile(cfg.Dir.Path(registeredFileName))
	if err != nil {
		t.Fatalf("scheme wants registered: %s", err)
	}
	if w := "adobe+abc"; string(registered) != w {
		t.Errorf("registered scheme wants %s but was %s", w, registered)
	}
}

func TestInvalidAuthURL(t *testing.T) {
	s := newAuthServer(t)
	defer s.Close()
	cfg := newConfig(t, s, "primary", "ims-na1.adobelogin.com")
	ctx, cancel := context.WithTimeout(context.TODO(), 20*time.Second)
	defer cancel()

	_, err := oauth2scheme.GetToken(ctx, cfg)
	if !errors.Is(err, handoff.ErrInvalidAuthURL) {
		t.Fatalf("err wants ErrInvalidAuthURL but was %v", err)
	}
	t.Logf("expected error: %s", err)
	if _, err := os.Stat(cfg.Dir.Path(openedFileName)); !os.IsNotExist(err) {
		t.Errorf("browser wants never opened but Stat returned %v", err)
	}
}

func TestContextCancelOnWaitingForBrowser(t *testing.T) {
	s := newAuthServer(t)
	defer s.Close()
	cfg := newConfig(t, s, "no-browser", serverHost(t, s))
	ctx, cancel := context.WithTimeout(context.TODO(), 2*time.Second)
	defer cancel()

	_, err := oauth2scheme.GetToken(ctx, cfg)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err wants DeadlineExceeded but was %v", err)
	}
	t.Logf("expected error: %s", err)
	if _, err := os.Stat(cfg.Dir.Path(openedFileName)); err != nil {
		t.Errorf("browser wants opened but Stat returned %v", err)
	}
	for _, name := range []string{handoff.RequestFileName, handoff.ResultFileName} {
		if _, err := os.Stat(cfg.Dir.Path(name)); !os.IsNotExist(err) {
			t.Errorf("%s wants removed but Stat returned %v", name, err)
		}
	}
}

func TestHelperTimeout(t *testing.T) {
	s := newAuthServer(t)
	defer s.Close()
	cfg := newConfig(t, s, "timeout", serverHost(t, s))
	cfg.Timeout = helperTimeout
	ctx, cancel := context.WithTimeout(context.TODO(), 20*time.Second)
	defer cancel()

	_, err := oauth2scheme.GetToken(ctx, cfg)
	if !errors.Is(err, handoff.ErrTimeout) {
		t.Fatalf("err wants ErrTimeout but was %v", err)
	}
	if errors.Is(err, oauth2scheme.ErrNoOutcome) {
		t.Errorf("err wants distinct from ErrNoOutcome")
	}
	t.Logf("expected error: %s", err)
}
