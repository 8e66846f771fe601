package oauth2scheme

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/int128/oauth2scheme/handoff"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

func receiveCodeViaHelper(ctx context.Context, c *Config, authURL string) (string, error) {
	scheme, err := RedirectScheme(c.OAuth2Config.RedirectURL)
	if err != nil {
		return "", err
	}
	if err := c.Dir.Init(); err != nil {
		return "", xerrors.Errorf("could not initialize the shared directory: %w", err)
	}
	if err := c.Dir.ClearResult(); err != nil {
		return "", xerrors.Errorf("could not clear the stale result: %w", err)
	}
	if err := c.Dir.WriteRequest(handoff.Request{URLScheme: scheme, AuthURL: authURL}); err != nil {
		return "", xerrors.Errorf("could not write the request: %w", err)
	}
	defer func() {
		if err := c.Dir.RemoveRequest(); err != nil {
			c.Logf("could not remove the request: %s", err)
		}
		if err := c.Dir.ClearResult(); err != nil {
			c.Logf("could not remove the result: %s", err)
		}
	}()

	// The helper arms its own deadline of the same Timeout after it has started,
	// so wait a little longer to receive its timeout outcome.
	deadline := c.Timeout + c.HelperWaitDelay
	parentCtx := ctx
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	outcomeCh := make(chan handoff.Outcome)
	var resp *handoff.Outcome
	var eg errgroup.Group
	eg.Go(func() error {
		select {
		case o := <-outcomeCh:
			resp = &o // pick only the first outcome
			cancel()
			return nil
		case <-ctx.Done():
			if parentCtx.Err() != nil {
				return xerrors.Errorf("context done while waiting for the redirect: %w", parentCtx.Err())
			}
			return xerrors.Errorf("%w within %s", ErrNoOutcome, deadline)
		}
	})
	eg.Go(func() error {
		if err := runHelper(ctx, c, outcomeCh); err != nil {
			// the result file may still arrive until the deadline
			c.Logf("helper error: %s", err)
		}
		return nil
	})
	eg.Go(func() error {
		for o := range c.Dir.Watch(ctx, c.PollInterval) {
			select {
			case outcomeCh <- o:
			case <-ctx.Done():
			}
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return "", err
	}
	if resp.Err != nil {
		return "", resp.Err
	}
	return resp.URL, nil
}

// runHelper runs the helper process and sends outcomes printed to its stdout.
// The process is interrupted when ctx is done.
func runHelper(ctx context.Context, c *Config, outcomeCh chan<- handoff.Outcome) error {
	cmd := exec.CommandContext(ctx, c.HelperCommand[0], c.HelperCommand[1:]...)
	cmd.Cancel = func() error { return interruptProcess(cmd.Process) }
	cmd.WaitDelay = c.HelperWaitDelay
	cmd.Stderr = &lineWriter{logf: c.Logf}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return xerrors.Errorf("could not open stdout of the helper: %w", err)
	}
	c.Logf("starting the helper: %v", cmd.Args)
	if err := cmd.Start(); err != nil {
		return xerrors.Errorf("could not start the helper: %w", err)
	}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		o, ok := handoff.ParseOutcomeLine(scanner.Text())
		if !ok {
			c.Logf("helper: %s", scanner.Text())
			continue
		}
		select {
		case outcomeCh <- o:
		case <-ctx.Done():
		}
	}
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return xerrors.Errorf("helper exited: %w", err)
	}
	c.Logf("helper exited")
	return nil
}

func interruptProcess(p *os.Process) error {
	if err := p.Signal(os.Interrupt); err != nil {
		// os.Interrupt is not implemented on Windows
		return p.Kill()
	}
	return nil
}

// lineWriter sends each line to the logger.
type lineWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	logf func(format string, args ...interface{})
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the incomplete line
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.logf("helper: %s", bytes.TrimRight([]byte(line), "\r\n"))
	}
}
