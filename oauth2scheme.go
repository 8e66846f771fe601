// Package oauth2scheme provides OAuth 2.0 Authorization Code Grant with PKCE on CLI,
// receiving the authorization response via a custom URL scheme.
//
// A custom URL scheme is handled by a separate helper process, which is launched
// by this package and by the OS. The helper and this package communicate through
// files in a shared directory. See the handoff package for the protocol.
package oauth2scheme

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/int128/oauth2scheme/handoff"
	"github.com/int128/oauth2scheme/oauth2params"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

// DefaultNonInteractivePromptText is shown before reading the redirect URL from stdin.
var DefaultNonInteractivePromptText = "Paste the URL you were redirected to: "

// ErrStateMismatch is returned if the state of the redirect is not the one sent.
// The redirect must not be retried.
var ErrStateMismatch = xerrors.New("state does not match")

// ErrNoOutcome is returned if neither the helper nor the shared directory
// delivered an outcome until the deadline.
var ErrNoOutcome = xerrors.New("no outcome from the helper")

// AuthorizationError represents an error response of the authorization server.
// See https://tools.ietf.org/html/rfc6749#section-4.1.2.1
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description == "" {
		return "authorization error from server: " + e.Code
	}
	return "authorization error from server: " + e.Code + " " + e.Description
}

// Config represents a config for GetToken.
type Config struct {
	// OAuth2 config.
	// RedirectURL must be a URI of a custom scheme, such as adobe+xxx://adobeid/xxx.
	OAuth2Config oauth2.Config
	// Options for an authorization request.
	// PKCE options are appended by GetToken.
	AuthCodeOptions []oauth2.AuthCodeOption
	// Options for a token request.
	// PKCE options are appended by GetToken.
	TokenRequestOptions []oauth2.AuthCodeOption

	// Shared directory with the helper.
	// Default to handoff.DefaultDir().
	Dir handoff.Dir
	// Command line of the helper process.
	// Mandatory unless NonInteractive is set.
	HelperCommand []string
	// Deadline to wait for an outcome. Default to 120 seconds.
	// The helper should be given the same deadline.
	// The initiator waits HelperWaitDelay longer to receive the timeout outcome of the helper.
	Timeout time.Duration
	// Interval to poll result.txt. Default to 500ms.
	PollInterval time.Duration
	// Delay before the helper process is killed after an interrupt. Default to 5 seconds.
	HelperWaitDelay time.Duration

	// Read the redirect URL from Stdin instead of launching the helper.
	NonInteractive bool
	// Prompt text shown in the non-interactive mode.
	// Default to DefaultNonInteractivePromptText.
	NonInteractivePromptText string
	// Default to os.Stdin.
	Stdin io.Reader
	// Authorization URL and the prompt are written to it. Default to os.Stderr.
	Prompt io.Writer

	// Logger for diagnostics. Default to none.
	Logf func(format string, args ...interface{})
}

func (c *Config) validateAndSetDefaults() error {
	if c.OAuth2Config.ClientID == "" {
		return xerrors.New("OAuth2Config.ClientID must be set")
	}
	if _, err := RedirectScheme(c.OAuth2Config.RedirectURL); err != nil {
		return xerrors.Errorf("invalid OAuth2Config.RedirectURL: %w", err)
	}
	if !c.NonInteractive && len(c.HelperCommand) == 0 {
		return xerrors.New("HelperCommand must be set")
	}
	if c.Dir == "" {
		d, err := handoff.DefaultDir()
		if err != nil {
			return xerrors.Errorf("could not determine the shared directory: %w", err)
		}
		c.Dir = d
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.HelperWaitDelay == 0 {
		c.HelperWaitDelay = 5 * time.Second
	}
	if c.NonInteractivePromptText == "" {
		c.NonInteractivePromptText = DefaultNonInteractivePromptText
	}
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Prompt == nil {
		c.Prompt = os.Stderr
	}
	if c.Logf == nil {
		c.Logf = func(string, ...interface{}) {}
	}
	return nil
}

// RedirectScheme returns the custom scheme of the redirect URI.
// It returns an error if the URI is not absolute or the scheme is http or https.
func RedirectScheme(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", xerrors.Errorf("could not parse the redirect URI: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "":
		return "", xerrors.Errorf("redirect URI %q has no scheme", redirectURI)
	case "http", "https":
		return "", xerrors.Errorf("redirect URI %q must be of a custom scheme", redirectURI)
	}
	return u.Scheme, nil
}

// GetToken performs Authorization Code Grant Flow with PKCE and returns a token from the provider.
// See https://tools.ietf.org/html/rfc6749#section-4.1 and https://tools.ietf.org/html/rfc7636.
//
// This does the following steps:
//
//  1. Generate a state and PKCE parameters.
//  2. Write the authorization URL to the shared directory and launch the helper.
//  3. The helper opens a browser and waits for the redirect via the custom scheme.
//  4. Receive the redirect URL from the helper or the shared directory.
//  5. Exchange the code and a token.
//  6. Return the token.
func GetToken(ctx context.Context, cfg Config) (*oauth2.Token, error) {
	if err := cfg.validateAndSetDefaults(); err != nil {
		return nil, xerrors.Errorf("invalid config: %w", err)
	}
	state, err := oauth2params.NewState()
	if err != nil {
		return nil, err
	}
	pkce, err := oauth2params.NewPKCE()
	if err != nil {
		return nil, xerrors.Errorf("could not generate PKCE parameters: %w", err)
	}
	authCodeOptions := append(append([]oauth2.AuthCodeOption{}, cfg.AuthCodeOptions...), pkce.AuthCodeOptions()...)
	authURL := cfg.OAuth2Config.AuthCodeURL(state, authCodeOptions...)

	raw, err := receiveCode(ctx, &cfg, authURL)
	if err != nil {
		return nil, xerrors.Errorf("authorization error: %w", err)
	}
	code, err := ParseRedirect(raw, state)
	if err != nil {
		return nil, xerrors.Errorf("authorization error: %w", err)
	}
	cfg.Logf("exchanging the code and a token")
	tokenRequestOptions := append(append([]oauth2.AuthCodeOption{}, cfg.TokenRequestOptions...), pkce.TokenRequestOptions()...)
	token, err := cfg.OAuth2Config.Exchange(ctx, code, tokenRequestOptions...)
	if err != nil {
		return nil, xerrors.Errorf("could not exchange the code and token: %w", err)
	}
	return token, nil
}

// ReceiveCode sends the authorization URL to the helper and returns the redirect URL.
// It returns a *handoff.CaptureError if the helper failed.
func ReceiveCode(ctx context.Context, cfg Config, authURL string) (string, error) {
	if err := cfg.validateAndSetDefaults(); err != nil {
		return "", xerrors.Errorf("invalid config: %w", err)
	}
	return receiveCode(ctx, &cfg, authURL)
}

func receiveCode(ctx context.Context, c *Config, authURL string) (string, error) {
	if c.NonInteractive {
		return receiveCodeViaUserInput(ctx, c, authURL)
	}
	return receiveCodeViaHelper(ctx, c, authURL)
}

// ParseRedirect returns the code in the redirect URL.
// It returns an *AuthorizationError if the redirect carries an error response,
// or ErrStateMismatch if the state is not the one sent.
func ParseRedirect(raw, state string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", xerrors.Errorf("could not parse the redirect URL: %w", err)
	}
	q := u.Query()
	if errorCode := q.Get("error"); errorCode != "" {
		return "", &AuthorizationError{Code: errorCode, Description: q.Get("error_description")}
	}
	code := q.Get("code")
	if code == "" {
		return "", xerrors.New("no code in the redirect URL")
	}
	if got := q.Get("state"); got != state {
		return "", xerrors.Errorf("%w (wants %s but got %s)", ErrStateMismatch, state, got)
	}
	return code, nil
}
