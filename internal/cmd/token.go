package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/int128/oauth2scheme/ims"
	"github.com/int128/oauth2scheme/internal/config"
	"github.com/int128/oauth2scheme/internal/scheme"
	"github.com/int128/oauth2scheme/internal/tokenstore"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

type tokenCommand struct {
	*Cmd `no-flag:"true"`
}

func (cmd *tokenCommand) Execute([]string) error {
	cfg, err := cmd.loadConfig()
	if err != nil {
		return err
	}
	f := tokenstore.File{Path: cfg.TokenFile}
	r, err := f.Load()
	if err != nil {
		if xerrors.Is(err, tokenstore.ErrNotFound) {
			fmt.Fprint(cmd.Stdout, panel("Token Status", "No tokens found.\n\nRun auth to authenticate.", colorWarning))
			return &exitError{code: 1}
		}
		return err
	}
	rs := []row{
		{"Access Token", truncateToken(r.AccessToken)},
		{"Refresh Token", mark(r.RefreshToken != "", "Present", "Not available")},
	}
	if expiry := r.Expiry(); !expiry.IsZero() {
		rs = append(rs, row{"Expires", fmt.Sprintf("%s (%s)", expiry.Local().Format(time.DateTime),
			mark(time.Now().Before(expiry), "Valid", "EXPIRED"))})
	}
	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = "Unknown"
	}
	rs = append(rs, row{"Token Type", tokenType})
	fmt.Fprint(cmd.Stdout, panel("Token Information", rows(rs...), colorInfo))
	return nil
}

type testCommand struct {
	*Cmd `no-flag:"true"`
}

func (cmd *testCommand) Execute([]string) error {
	cfg, err := cmd.loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := cmd.logger("")
	defer closeLog()
	logger.Infof("testing the Frame.io API connection")

	ctx := context.WithValue(cmd.ctx, oauth2.HTTPClient, cmd.HTTPClient)
	f := tokenstore.File{Path: cfg.TokenFile}
	ts, err := f.TokenSource(ctx, &oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    ims.EndpointOf(cfg.AllowedHost),
		RedirectURL: cfg.RedirectURI,
		Scopes:      cfg.Scopes,
	})
	if err != nil {
		if xerrors.Is(err, tokenstore.ErrNotFound) {
			fmt.Fprint(cmd.Stdout, panel("⚠ No Token", "No valid token available.\n\nRun auth to authenticate.", colorWarning))
			return &exitError{code: 1}
		}
		return err
	}
	if _, err := ts.Token(); err != nil {
		fmt.Fprint(cmd.Stdout, panel("⚠ No Token", fmt.Sprintf("No valid token available.\n\n%s\n\nRun auth to authenticate.", err), colorWarning))
		return &exitError{code: 1}
	}
	req, err := http.NewRequestWithContext(ctx, "GET", cmd.APIURL, nil)
	if err != nil {
		return xerrors.Errorf("could not create a request: %w", err)
	}
	resp, err := oauth2.NewClient(ctx, ts).Do(req)
	if err != nil {
		return xerrors.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.Errorf("could not read the response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(b) > 200 {
			b = b[:200]
		}
		fmt.Fprint(cmd.Stdout, panel("✗ Error", titleStyle.Render("API request failed")+"\n\n"+rows(
			row{"Status", resp.Status},
			row{"Response", string(b)},
		), colorError))
		return &exitError{code: 1}
	}
	fmt.Fprint(cmd.Stdout, panel("✓ Connected", titleStyle.Render("API connection successful!")+"\n\n"+rows(
		row{"User ID", userField(b, "id")},
		row{"Email", userField(b, "email")},
		row{"Name", userField(b, "name")},
	), colorSuccess))
	return nil
}

// userField returns the field of the user, which may be wrapped in data.
func userField(body []byte, name string) string {
	for _, path := range []string{"data." + name, name} {
		if r := gjson.GetBytes(body, path); r.Exists() && r.String() != "" {
			return r.String()
		}
	}
	return "N/A"
}

type logoutCommand struct {
	*Cmd `no-flag:"true"`
}

func (cmd *logoutCommand) Execute([]string) error {
	cfg, err := cmd.loadConfig()
	if err != nil {
		return err
	}
	f := tokenstore.File{Path: cfg.TokenFile}
	if err := f.Clear(); err != nil {
		if xerrors.Is(err, tokenstore.ErrNotFound) {
			fmt.Fprintln(cmd.Stdout, mutedStyle.Render("No tokens to clear"))
			return nil
		}
		return err
	}
	fmt.Fprintln(cmd.Stdout, mark(true, "Logged out successfully", ""))
	return nil
}

type statusCommand struct {
	*Cmd `no-flag:"true"`
}

func (cmd *statusCommand) Execute([]string) error {
	cfg, err := cmd.loadConfig()
	if err != nil {
		return err
	}
	env := rows(
		row{config.EnvClientID, mark(cfg.ClientID != "", "Set", "Missing")},
		row{config.EnvRedirectURI, mark(cfg.RedirectURI != "", "Set", "Missing")},
		row{config.EnvScopes, fmt.Sprintf("%v", cfg.Scopes)},
	)
	helperReady, helperMessage := cmd.helperStatus()
	var tokens string
	f := tokenstore.File{Path: cfg.TokenFile}
	switch r, err := f.Load(); {
	case xerrors.Is(err, tokenstore.ErrNotFound):
		tokens = mutedStyle.Render("No tokens saved")
	case err != nil:
		tokens = mark(false, "", err.Error())
	case r.Expiry().IsZero():
		tokens = mark(true, "Token present", "")
	case time.Now().After(r.Expiry()):
		tokens = mark(false, "", "Token expired")
	default:
		tokens = mark(true, "Valid until "+r.Expiry().Local().Format("2006-01-02 15:04"), "")
	}
	body := titleStyle.Render("Environment") + "\n" + env + "\n\n" +
		titleStyle.Render("Helper") + "\n" + mark(helperReady, helperMessage, helperMessage) + "\n\n" +
		titleStyle.Render("Tokens") + "\n" + tokens
	fmt.Fprint(cmd.Stdout, panel("Frame.io OAuth Status", body, colorInfo))
	return nil
}

// helperStatus reports whether the custom scheme can be registered on this platform.
func (cmd *statusCommand) helperStatus() (bool, string) {
	exe, err := cmd.executable()
	if err != nil {
		return false, err.Error()
	}
	switch runtime.GOOS {
	case "linux":
		if _, err := exec.LookPath("xdg-mime"); err != nil {
			return false, "xdg-mime is not found, install xdg-utils or use auth --no-helper"
		}
		return true, "Ready: " + exe
	case "windows":
		return true, "Ready: " + exe
	}
	return false, scheme.ErrUnsupported.Error() + ", use auth --no-helper"
}
