package handoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/int128/oauth2scheme/handoff"
)

func TestDir_Watch(t *testing.T) {
	t.Run("Captured", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.TODO(), 2*time.Second)
		defer cancel()
		d := handoff.Dir(t.TempDir())
		ch := d.Watch(ctx, 50*time.Millisecond)
		time.Sleep(100 * time.Millisecond)
		// not a capture yet
		if err := d.WriteResult("adobe+abc://adobeid/abc?state=S"); err != nil {
			t.Fatalf("WriteResult error: %s", err)
		}
		time.Sleep(100 * time.Millisecond)
		const raw = "adobe+abc://adobeid/abc?code=AUTH_CODE&state=S"
		if err := d.WriteResult(raw); err != nil {
			t.Fatalf("WriteResult error: %s", err)
		}
		o, ok := <-ch
		if !ok {
			t.Fatalf("channel closed: %s", ctx.Err())
		}
		if o.Err != nil || o.URL != raw {
			t.Errorf("outcome wants %s but was %+v", raw, o)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.TODO(), 2*time.Second)
		defer cancel()
		d := handoff.Dir(t.TempDir())
		if err := d.WriteFailure(handoff.NewCaptureError(handoff.KindTimeout, "")); err != nil {
			t.Fatalf("WriteFailure error: %s", err)
		}
		o, ok := <-d.Watch(ctx, 50*time.Millisecond)
		if !ok {
			t.Fatalf("channel closed: %s", ctx.Err())
		}
		if !errors.Is(o.Err, handoff.ErrTimeout) {
			t.Errorf("outcome wants a timeout but was %+v", o)
		}
	})

	t.Run("ContextDone", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.TODO(), 200*time.Millisecond)
		defer cancel()
		d := handoff.Dir(t.TempDir())
		if o, ok := <-d.Watch(ctx, 50*time.Millisecond); ok {
			t.Errorf("channel wants closed but received %+v", o)
		}
	})
}
