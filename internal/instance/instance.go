// Package instance provides the single-instance lock of the helper.
//
// The primary instance holds a file lock in the shared directory and serves
// a loopback endpoint, so that a secondary launch can hand its URL over.
package instance

import (
	"bytes"
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/int128/listener"
	"github.com/int128/oauth2scheme/handoff"
	"github.com/int128/oauth2scheme/internal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// ErrLocked is returned by Acquire if another process holds the lock.
var ErrLocked = xerrors.New("the lock is held by another process")

// TokenHeader carries the token published in helper.addr.
const TokenHeader = "X-Helper-Token"

const activatePath = "/activate"

// maxURLSize is the limit of a forwarded URL.
const maxURLSize = 16 * 1024

// Primary represents the primary instance.
type Primary struct {
	dir         handoff.Dir
	lock        *flock.Flock
	server      *http.Server
	activations chan string
	eg          errgroup.Group
	logf        func(format string, args ...interface{})
}

// Acquire takes the lock in the directory and starts the forwarding endpoint.
// It returns ErrLocked if another process is primary.
func Acquire(d handoff.Dir, logf func(format string, args ...interface{})) (*Primary, error) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	lock := flock.New(d.Path(handoff.LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, xerrors.Errorf("could not try the lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	p, err := start(d, lock, logf)
	if err != nil {
		if err := lock.Unlock(); err != nil {
			logf("could not unlock: %s", err)
		}
		return nil, err
	}
	return p, nil
}

func start(d handoff.Dir, lock *flock.Flock, logf func(format string, args ...interface{})) (*Primary, error) {
	token, err := internal.RandomHex(32)
	if err != nil {
		return nil, xerrors.Errorf("could not generate a token: %w", err)
	}
	l, err := listener.New([]string{"127.0.0.1:0"})
	if err != nil {
		return nil, xerrors.Errorf("could not start the forwarding endpoint: %w", err)
	}
	addr := fmt.Sprintf("%s %s\n", l.URL.String(), token)
	if err := os.WriteFile(d.Path(handoff.AddrFileName), []byte(addr), 0600); err != nil {
		l.Close()
		return nil, xerrors.Errorf("could not write %s: %w", handoff.AddrFileName, err)
	}

	p := &Primary{
		dir:         d,
		lock:        lock,
		activations: make(chan string, 16),
		logf:        logf,
	}
	p.server = &http.Server{
		Handler: &activateHandler{
			token:       token,
			activations: p.activations,
			logf:        logf,
		},
		ReadHeaderTimeout: 5 * time.Second,
	}
	p.eg.Go(func() error {
		if err := p.server.Serve(l); err != nil && err != http.ErrServerClosed {
			return xerrors.Errorf("could not serve the forwarding endpoint: %w", err)
		}
		return nil
	})
	logf("forwarding endpoint is listening on %s", l.URL)
	return p, nil
}

// Activations returns URLs forwarded by secondary launches.
// It is closed when Release stops the endpoint.
func (p *Primary) Activations() <-chan string { return p.activations }

// Release stops the endpoint and gives up the lock.
func (p *Primary) Release() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.server.Shutdown(ctx); err != nil {
		// a handler may still be running
		p.logf("could not shutdown the forwarding endpoint: %s", err)
	} else {
		close(p.activations)
	}
	if err := p.eg.Wait(); err != nil {
		p.logf("forwarding endpoint error: %s", err)
	}
	if err := os.Remove(p.dir.Path(handoff.AddrFileName)); err != nil && !os.IsNotExist(err) {
		p.logf("could not remove %s: %s", handoff.AddrFileName, err)
	}
	if err := p.lock.Unlock(); err != nil {
		return xerrors.Errorf("could not unlock: %w", err)
	}
	return nil
}

type activateHandler struct {
	token       string
	activations chan<- string
	logf        func(format string, args ...interface{})
}

func (h *activateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == "POST" && r.URL.Path == activatePath:
		h.handleActivate(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *activateHandler) handleActivate(w http.ResponseWriter, r *http.Request) {
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(TokenHeader)), []byte(h.token)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxURLSize+1))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	if len(b) > maxURLSize {
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
		return
	}
	url := strings.TrimSpace(string(b))
	if url == "" {
		http.Error(w, "empty URL", http.StatusBadRequest)
		return
	}
	select {
	case h.activations <- url:
		w.WriteHeader(http.StatusNoContent)
	default:
		h.logf("dropped an activation because the queue is full")
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}
}

// Forward posts the URL to the primary instance published in the directory.
func Forward(ctx context.Context, d handoff.Dir, url string) error {
	b, err := os.ReadFile(d.Path(handoff.AddrFileName))
	if err != nil {
		return xerrors.Errorf("could not read %s: %w", handoff.AddrFileName, err)
	}
	fields := strings.Fields(string(b))
	if len(fields) != 2 {
		return xerrors.Errorf("invalid %s", handoff.AddrFileName)
	}
	endpoint, token := fields[0], fields[1]

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint+activatePath, bytes.NewBufferString(url))
	if err != nil {
		return xerrors.Errorf("could not create a request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set(TokenHeader, token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return xerrors.Errorf("could not send the URL: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return xerrors.Errorf("primary instance returned %s", resp.Status)
	}
	return nil
}
