package cmd

import (
	"github.com/int128/oauth2scheme/handoff"
	"github.com/int128/oauth2scheme/internal/browser"
	"github.com/int128/oauth2scheme/internal/helper"
	"github.com/int128/oauth2scheme/internal/logging"
	"github.com/int128/oauth2scheme/internal/platform"
	"github.com/int128/oauth2scheme/internal/scheme"
	"golang.org/x/xerrors"
)

type helperCommand struct {
	*Cmd        `no-flag:"true"`
	AllowedHost string `long:"allowed-host" description:"The only host of an authorization URL to open"`
}

// Execute runs the helper.
// Stdout carries only the outcome line.
func (cmd *helperCommand) Execute(args []string) error {
	cfg, err := cmd.loadConfig()
	if err != nil {
		return err
	}
	d := handoff.Dir(cfg.Dir)
	if err := d.Init(); err != nil {
		return xerrors.Errorf("could not initialize the shared directory: %w", err)
	}
	logger, closeLog := cmd.logger(d.Path(handoff.LogFileName))
	defer closeLog()
	logf := logging.Logf(logger)
	exe, err := cmd.executable()
	if err != nil {
		return err
	}
	allowedHost := cfg.AllowedHost
	if cmd.AllowedHost != "" {
		allowedHost = cmd.AllowedHost
	}
	opener := browser.NewOpener(cmd.Stderr, logf)

	logger.Debugf("helper started with %v", args)
	_, err = helper.Run(cmd.ctx, helper.Config{
		Dir: d,
		OS: &platform.OS{
			Dir: d,
			Registrar: &scheme.Registrar{
				Command: []string{exe, "helper", "--dir", string(d)},
				Logf:    logf,
			},
			Logf: logf,
		},
		OpenURL:     opener.OpenURL,
		AllowedHost: allowedHost,
		Timeout:     cfg.Timeout,
		Output:      cmd.Stdout,
		Logf:        logf,
	}, args)
	if err != nil {
		if xerrors.Is(err, helper.ErrSecondaryInstance) {
			return nil
		}
		if e, ok := handoff.AsCaptureError(err); ok {
			// already printed as the outcome
			logger.Errorf("%s", e)
			return &exitError{code: 1}
		}
		return err
	}
	return nil
}
