// Package cmd provides the command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/int128/oauth2scheme/internal/config"
	"github.com/int128/oauth2scheme/internal/logging"
	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// DefaultAPIURL is the endpoint to test the token.
const DefaultAPIURL = "https://api.frame.io/v4/me"

// Cmd provides the commands.
type Cmd struct {
	// Default to os.Stdout.
	Stdout io.Writer
	// Errors are written to it. Default to os.Stderr.
	Stderr io.Writer
	// Path of this executable, launched as the helper.
	// Default to os.Executable().
	Executable string
	// Default to DefaultAPIURL.
	APIURL string
	// Default to http.DefaultClient.
	HTTPClient *http.Client

	ctx  context.Context
	opts options
}

type options struct {
	Verbose     bool          `short:"v" long:"verbose" description:"Show debug logs"`
	ConfigFile  string        `long:"config" description:"Path to the config file (default: ~/.config/frameio-oauth/config.yaml)"`
	EnvFile     string        `long:"env-file" default:".env" description:"Path to the env file"`
	ClientID    string        `long:"client-id" description:"OAuth client ID (overrides ADOBE_CLIENT_ID)"`
	RedirectURI string        `long:"redirect-uri" description:"Redirect URI of the custom scheme (overrides ADOBE_REDIRECT_URI)"`
	Scopes      string        `long:"scopes" description:"Scopes separated by spaces (overrides ADOBE_SCOPES)"`
	Dir         string        `long:"dir" description:"Shared directory with the helper (overrides FRAMEIO_OAUTH_DIR)"`
	TokenFile   string        `long:"token-file" description:"Path to the token file"`
	Timeout     time.Duration `long:"timeout" description:"Time to wait for the authorization"`
}

// Run parses the arguments and runs the command.
// It returns the exit code.
func (c *Cmd) Run(ctx context.Context, args []string) int {
	c.ctx = ctx
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	parser := flags.NewParser(&c.opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "frameio-oauth"
	parser.LongDescription = "Authenticate with Frame.io via Adobe IMS using OAuth 2.0 with PKCE and a custom URL scheme."
	mustAddCommand(parser, "auth", "Authenticate and save the token", &authCommand{Cmd: c})
	mustAddCommand(parser, "token", "Show the saved token", &tokenCommand{Cmd: c})
	mustAddCommand(parser, "test", "Call the API with the saved token", &testCommand{Cmd: c})
	mustAddCommand(parser, "logout", "Remove the saved token", &logoutCommand{Cmd: c})
	mustAddCommand(parser, "status", "Show the setup status", &statusCommand{Cmd: c})
	mustAddCommand(parser, "helper", "Capture the redirect (launched by auth or the OS)", &helperCommand{Cmd: c})

	if _, err := parser.ParseArgs(args); err != nil {
		var exitErr *exitError
		var flagsErr *flags.Error
		switch {
		case xerrors.As(err, &exitErr):
			return exitErr.code
		case xerrors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp:
			fmt.Fprintln(c.Stdout, flagsErr.Message)
			return 0
		}
		fmt.Fprintf(c.Stderr, "error: %s\n", err)
		return 1
	}
	return 0
}

func mustAddCommand(parser *flags.Parser, name, description string, data interface{}) {
	if _, err := parser.AddCommand(name, description, description, data); err != nil {
		panic(err)
	}
}

// exitError represents a failure which has already been reported to the user.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// loadConfig returns the config overridden by the flags.
func (c *Cmd) loadConfig() (config.Config, error) {
	path := c.opts.ConfigFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, c.opts.EnvFile)
	if err != nil {
		return cfg, err
	}
	if c.opts.ClientID != "" {
		cfg.ClientID = c.opts.ClientID
	}
	if c.opts.RedirectURI != "" {
		cfg.RedirectURI = c.opts.RedirectURI
	}
	if c.opts.Scopes != "" {
		cfg.Scopes = config.ParseScopes(c.opts.Scopes)
	}
	if c.opts.Dir != "" {
		cfg.Dir = c.opts.Dir
	}
	if c.opts.TokenFile != "" {
		cfg.TokenFile = c.opts.TokenFile
	}
	if c.opts.Timeout != 0 {
		cfg.Timeout = c.opts.Timeout
	}
	return cfg, nil
}

func (c *Cmd) logger(file string) (*log.Logger, func()) {
	return logging.New(logging.Options{Verbose: c.opts.Verbose, File: file})
}

func (c *Cmd) executable() (string, error) {
	if c.Executable != "" {
		return c.Executable, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", xerrors.Errorf("could not determine the executable: %w", err)
	}
	return exe, nil
}
