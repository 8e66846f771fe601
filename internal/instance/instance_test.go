package instance

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/int128/oauth2scheme/handoff"
)

func TestAcquire(t *testing.T) {
	d := handoff.Dir(t.TempDir())
	p, err := Acquire(d, t.Logf)
	if err != nil {
		t.Fatalf("Acquire error: %s", err)
	}
	if _, err := Acquire(d, t.Logf); !errors.Is(err, ErrLocked) {
		t.Errorf("second Acquire wants ErrLocked but was %v", err)
	}
	fi, err := os.Stat(d.Path(handoff.AddrFileName))
	if err != nil {
		t.Fatalf("Stat error: %s", err)
	}
	if fi.Mode().Perm() != 0600 {
		t.Errorf("mode wants 0600 but was %o", fi.Mode().Perm())
	}

	if err := p.Release(); err != nil {
		t.Fatalf("Release error: %s", err)
	}
	if _, err := os.Stat(d.Path(handoff.AddrFileName)); !os.IsNotExist(err) {
		t.Errorf("%s wants removed but Stat returned %v", handoff.AddrFileName, err)
	}
	if _, ok := <-p.Activations(); ok {
		t.Errorf("activations wants closed")
	}

	p, err = Acquire(d, t.Logf)
	if err != nil {
		t.Fatalf("Acquire after Release error: %s", err)
	}
	if err := p.Release(); err != nil {
		t.Fatalf("Release error: %s", err)
	}
}

func TestForward(t *testing.T) {
	d := handoff.Dir(t.TempDir())
	p, err := Acquire(d, t.Logf)
	if err != nil {
		t.Fatalf("Acquire error: %s", err)
	}
	defer func() {
		if err := p.Release(); err != nil {
			t.Errorf("Release error: %s", err)
		}
	}()

	const url = "adobe+abc://adobeid/abc?code=AUTH_CODE&state=STATE"
	if err := Forward(context.TODO(), d, url); err != nil {
		t.Fatalf("Forward error: %s", err)
	}
	select {
	case got := <-p.Activations():
		if got != url {
			t.Errorf("activation wants %s but was %s", url, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout while waiting for the activation")
	}
}

func TestForward_NoPrimary(t *testing.T) {
	d := handoff.Dir(t.TempDir())
	err := Forward(context.TODO(), d, "adobe+abc://adobeid/abc?code=x")
	if err == nil {
		t.Fatalf("Forward wants error")
	}
	t.Logf("expected error: %s", err)
}

func TestActivate_WrongToken(t *testing.T) {
	d := handoff.Dir(t.TempDir())
	p, err := Acquire(d, t.Logf)
	if err != nil {
		t.Fatalf("Acquire error: %s", err)
	}
	defer func() {
		if err := p.Release(); err != nil {
			t.Errorf("Release error: %s", err)
		}
	}()
	b, err := os.ReadFile(d.Path(handoff.AddrFileName))
	if err != nil {
		t.Fatalf("ReadFile error: %s", err)
	}
	endpoint := strings.Fields(string(b))[0]

	for _, token := range []string{"", "wrong"} {
		req, err := http.NewRequest("POST", endpoint+activatePath, bytes.NewBufferString("adobe+abc://adobeid/abc?code=x"))
		if err != nil {
			t.Fatalf("NewRequest error: %s", err)
		}
		if token != "" {
			req.Header.Set(TokenHeader, token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Do error: %s", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status wants 403 but was %d", resp.StatusCode)
		}
	}
	select {
	case got := <-p.Activations():
		t.Errorf("activation wants nothing but was %s", got)
	default:
	}
}
