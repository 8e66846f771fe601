package cmd

import (
	"fmt"
	"time"

	"github.com/int128/oauth2scheme"
	"github.com/int128/oauth2scheme/handoff"
	"github.com/int128/oauth2scheme/ims"
	"github.com/int128/oauth2scheme/internal/logging"
	"github.com/int128/oauth2scheme/internal/tokenstore"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

type authCommand struct {
	*Cmd     `no-flag:"true"`
	NoHelper bool `long:"no-helper" description:"Paste the redirect URL instead of launching the helper"`
}

func (cmd *authCommand) Execute([]string) error {
	logger, closeLog := cmd.logger("")
	defer closeLog()
	cfg, err := cmd.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprint(cmd.Stdout, panel("Setup Required",
			fmt.Sprintf("%s\n\nSet ADOBE_CLIENT_ID and ADOBE_REDIRECT_URI in the environment or .env.", err),
			colorError))
		return &exitError{code: 1}
	}
	logger.Debugf("client ID: %s", truncateToken(cfg.ClientID))
	logger.Debugf("redirect URI: %s", cfg.RedirectURI)
	logger.Debugf("scopes: %v", cfg.Scopes)

	exe, err := cmd.executable()
	if err != nil {
		return err
	}
	helperCommand := []string{exe}
	if cmd.opts.Verbose {
		helperCommand = append(helperCommand, "--verbose")
	}
	helperCommand = append(helperCommand, "helper",
		"--dir", cfg.Dir,
		"--allowed-host", cfg.AllowedHost,
		"--timeout", cfg.Timeout.String(),
	)
	token, err := oauth2scheme.GetToken(cmd.ctx, oauth2scheme.Config{
		OAuth2Config: oauth2.Config{
			ClientID:    cfg.ClientID,
			Endpoint:    ims.EndpointOf(cfg.AllowedHost),
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
		},
		Dir:            handoff.Dir(cfg.Dir),
		HelperCommand:  helperCommand,
		Timeout:        cfg.Timeout,
		NonInteractive: cmd.NoHelper,
		Logf:           logging.Logf(logger),
	})
	if err != nil {
		fmt.Fprint(cmd.Stdout, panel("✗ Failed", rows(
			row{"Error", errorCode(err)},
			row{"Details", err.Error()},
		), colorError))
		return &exitError{code: 1}
	}
	f := tokenstore.File{Path: cfg.TokenFile}
	r, err := f.Save(token)
	if err != nil {
		return xerrors.Errorf("could not save the token: %w", err)
	}
	logger.Infof("token saved to %s (permissions: owner-only)", cfg.TokenFile)
	expires := "Unknown"
	if !r.Expiry().IsZero() {
		expires = r.Expiry().Local().Format(time.DateTime)
	}
	fmt.Fprint(cmd.Stdout, panel("✓ Success", titleStyle.Render("Authentication successful!")+"\n\n"+rows(
		row{"Token expires", expires},
		row{"Refresh token", mark(r.RefreshToken != "", "Saved", "Not provided")},
	), colorSuccess))
	return nil
}

// errorCode returns a short name of the error for the user.
func errorCode(err error) string {
	var authErr *oauth2scheme.AuthorizationError
	var retrieveErr *oauth2.RetrieveError
	switch {
	case xerrors.As(err, &authErr):
		return authErr.Code
	case xerrors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "":
		return retrieveErr.ErrorCode
	case xerrors.Is(err, oauth2scheme.ErrStateMismatch):
		return "state_mismatch"
	case xerrors.Is(err, oauth2scheme.ErrNoOutcome):
		return "timeout"
	}
	if e, ok := handoff.AsCaptureError(err); ok {
		return string(e.Kind)
	}
	return "unknown"
}
