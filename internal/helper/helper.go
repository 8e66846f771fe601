// Package helper provides the redirect-capturing helper.
//
// The helper owns the custom URL scheme during an authorization attempt.
// It opens the authorization URL in the browser and waits until the browser
// hands the redirect back via the scheme, then writes the redirect URL to the
// shared directory and exits.
package helper

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/int128/oauth2scheme/handoff"
	"github.com/int128/oauth2scheme/ims"
	"golang.org/x/xerrors"
)

// ErrSecondaryInstance is returned by OS.AcquireInstance if another helper is primary.
// Run returns it when this process handed over to the primary and exited without an outcome.
var ErrSecondaryInstance = xerrors.New("another helper instance is running")

// RequestChanged is forwarded by a secondary launch without a URL.
// The primary instance reads args.json again and starts the new attempt if it differs.
const RequestChanged = "request-changed"

// OS represents the process-global state which the helper touches.
type OS interface {
	// RegisterScheme makes this executable the handler of the URL scheme.
	// Calling it again with the same scheme leaves the same association.
	RegisterScheme(scheme string) error

	// AcquireInstance makes this process the primary instance.
	// It returns ErrSecondaryInstance if another process is primary.
	AcquireInstance() (Instance, error)

	// Forward delivers the URL to the primary instance.
	Forward(ctx context.Context, url string) error
}

// Instance is held by the primary instance.
type Instance interface {
	// Activations returns URLs delivered to this instance,
	// i.e. URLs forwarded by secondary launches or opened by the OS.
	Activations() <-chan string

	// Release gives up the primary role.
	Release() error
}

// Config represents a config for Run.
type Config struct {
	// Shared directory. Mandatory.
	Dir handoff.Dir
	// OS capabilities. Mandatory.
	OS OS
	// Opens the URL in the default browser. Mandatory.
	OpenURL func(url string) error
	// The only host of an authorization URL to open.
	// Default to ims.Host.
	AllowedHost string
	// Deadline to wait for a redirect. Default to 2 minutes.
	Timeout time.Duration
	// Interval to poll result.txt. Default to 500ms.
	PollInterval time.Duration
	// Delay before returning after a capture, to let a concurrent writer or reader settle.
	// Default to 300ms.
	GraceDelay time.Duration
	// Outcome lines are written to it. Default to os.Stdout.
	Output io.Writer
	// Logger for diagnostics. Default to none.
	Logf func(format string, args ...interface{})
}

func (c *Config) validateAndSetDefaults() error {
	if c.Dir == "" {
		return xerrors.New("Dir must be set")
	}
	if c.OS == nil {
		return xerrors.New("OS must be set")
	}
	if c.OpenURL == nil {
		return xerrors.New("OpenURL must be set")
	}
	if c.AllowedHost == "" {
		c.AllowedHost = ims.Host
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.PollInterval == 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.GraceDelay == 0 {
		c.GraceDelay = 300 * time.Millisecond
	}
	if c.Output == nil {
		c.Output = os.Stdout
	}
	if c.Logf == nil {
		c.Logf = func(string, ...interface{}) {}
	}
	return nil
}

// Run captures a redirect of the authorization attempt described in the shared directory.
// args are the positional arguments of the process, which may carry the redirect URL
// when the OS launched this process as the scheme handler.
//
// It returns the captured URL,
// a *handoff.CaptureError if the attempt failed,
// or ErrSecondaryInstance if this process exited in favor of the primary instance.
// The outcome is also printed to Config.Output and written to result.txt.
func Run(ctx context.Context, cfg Config, args []string) (string, error) {
	if err := cfg.validateAndSetDefaults(); err != nil {
		return "", xerrors.Errorf("invalid config: %w", err)
	}
	h := &helper{Config: cfg}
	return h.run(ctx, args)
}

type helper struct {
	Config
}

func (h *helper) run(ctx context.Context, args []string) (string, error) {
	// The OS may launch a new process for the scheme, bypassing the primary instance.
	if raw := capturedArg(args); raw != "" {
		h.Logf("received the redirect as an argument")
		if err := h.OS.Forward(ctx, raw); err != nil {
			h.Logf("could not notify the primary instance: %s", err)
		}
		return h.complete(raw), nil
	}

	instance, err := h.OS.AcquireInstance()
	if err != nil {
		if xerrors.Is(err, ErrSecondaryInstance) {
			raw := urlArg(args)
			if raw == "" {
				// a new attempt may have been started while the primary is waiting
				raw = RequestChanged
			}
			if err := h.OS.Forward(ctx, raw); err != nil {
				h.Logf("could not forward to the primary instance: %s", err)
			}
			h.Logf("exiting in favor of the primary instance")
			return "", ErrSecondaryInstance
		}
		return "", xerrors.Errorf("could not acquire the instance lock: %w", err)
	}
	defer func() {
		if err := instance.Release(); err != nil {
			h.Logf("could not release the instance lock: %s", err)
		}
	}()
	activations := instance.Activations()

	if raw, err := h.Dir.ReadResult(); err == nil {
		h.Logf("found the redirect captured by another instance")
		return h.complete(raw), nil
	}

	req, err := h.Dir.ReadRequest()
	if err != nil {
		h.Logf("waiting for an activation only: %s", err)
		return h.wait(ctx, activations, nil)
	}
	if err := h.start(req); err != nil {
		return "", err
	}
	return h.wait(ctx, activations, req)
}

// start registers the scheme and opens the authorization URL of req.
func (h *helper) start(req *handoff.Request) error {
	if err := h.OS.RegisterScheme(req.URLScheme); err != nil {
		return h.fail(req, handoff.NewCaptureError(handoff.KindRegistrationFailed,
			"could not register the scheme %s: %s", req.URLScheme, err))
	}
	h.Logf("registered the scheme %s", req.URLScheme)

	if err := ValidateAuthURL(req.AuthURL, h.AllowedHost); err != nil {
		return h.fail(req, handoff.NewCaptureError(handoff.KindInvalidAuthURL, "%s", err))
	}

	if err := h.Dir.ClearResult(); err != nil {
		h.Logf("could not clear the stale result: %s", err)
	}
	h.Logf("opening %s", req.AuthURL)
	if err := h.OpenURL(req.AuthURL); err != nil {
		h.Logf("could not open the browser: %s", err)
		h.Logf("open the following URL manually: %s", req.AuthURL)
	}
	return nil
}

// wait returns the first capture delivered by an activation or found in result.txt.
// If req is nil, it waits only for an activation until a request is forwarded.
// A changed request restarts the attempt with a new deadline.
func (h *helper) wait(ctx context.Context, activations <-chan string, req *handoff.Request) (string, error) {
	timer := time.NewTimer(h.Timeout)
	defer timer.Stop()
	var results <-chan handoff.Outcome
	stopWatch := func() {}
	defer func() { stopWatch() }()
	watch := func() {
		stopWatch()
		watchCtx, cancel := context.WithCancel(ctx)
		stopWatch = cancel
		results = h.Dir.Watch(watchCtx, h.PollInterval)
	}
	if req != nil {
		watch()
	}
	for {
		select {
		case raw, ok := <-activations:
			if !ok {
				activations = nil
				continue
			}
			if raw == RequestChanged {
				next, err := h.Dir.ReadRequest()
				if err != nil {
					h.Logf("ignored a changed request: %s", err)
					continue
				}
				if req != nil && *next == *req {
					h.Logf("request is not changed")
					continue
				}
				h.Logf("restarting for the new request")
				if err := h.start(next); err != nil {
					return "", err
				}
				req = next
				timer.Reset(h.Timeout)
				watch()
				continue
			}
			if !handoff.IsCapture(raw) {
				h.Logf("ignored an activation without code")
				continue
			}
			h.Logf("received the redirect via an activation")
			return h.complete(raw), nil
		case o, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if o.Err != nil {
				h.Logf("ignored a failure in %s: %s", handoff.ResultFileName, o.Err)
				results = nil
				continue
			}
			h.Logf("found the redirect in %s", handoff.ResultFileName)
			return h.complete(o.URL), nil
		case <-timer.C:
			return "", h.fail(req, handoff.NewCaptureError(handoff.KindTimeout,
				"no redirect received within %s", h.Timeout))
		case <-ctx.Done():
			return "", xerrors.Errorf("interrupted while waiting for the redirect: %w", ctx.Err())
		}
	}
}

func (h *helper) complete(raw string) string {
	if err := h.Dir.WriteResult(raw); err != nil {
		h.Logf("could not write the result: %s", err)
	}
	fmt.Fprintln(h.Output, handoff.FormatCaptured(raw))
	time.Sleep(h.GraceDelay)
	return raw
}

// fail reports the failure.
// The marker is written to result.txt only while args.json still describes req,
// so that a stale instance does not fail a newer attempt.
func (h *helper) fail(req *handoff.Request, e *handoff.CaptureError) error {
	switch {
	case req == nil:
	case h.Dir.RequestMatches(*req):
		if err := h.Dir.WriteFailure(e); err != nil {
			h.Logf("could not write the failure: %s", err)
		}
	default:
		h.Logf("not writing the failure because another attempt has started")
	}
	fmt.Fprintln(h.Output, handoff.FormatFailure(e))
	return e
}

func capturedArg(args []string) string {
	for _, arg := range args {
		if handoff.IsCapture(arg) {
			return arg
		}
	}
	return ""
}

func urlArg(args []string) string {
	for _, arg := range args {
		u, err := url.Parse(arg)
		// a single letter is a drive of Windows
		if err == nil && len(u.Scheme) > 1 {
			return arg
		}
	}
	return ""
}
