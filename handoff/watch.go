package handoff

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch sends the first outcome found in result.txt and closes the channel.
// The channel is closed without a value when ctx is done.
//
// It reacts to file system events of the directory and also polls the file at
// the interval, because events are not delivered on some file systems.
func (d Dir) Watch(ctx context.Context, interval time.Duration) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		var events <-chan fsnotify.Event
		var errs <-chan error
		if w, err := fsnotify.NewWatcher(); err == nil {
			defer w.Close()
			if err := w.Add(string(d)); err == nil {
				events, errs = w.Events, w.Errors
			}
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if o, ok := d.readOutcome(); ok {
				ch <- o
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case _, ok := <-events:
				if !ok {
					events = nil
				}
			case _, ok := <-errs:
				if !ok {
					errs = nil
				}
			}
		}
	}()
	return ch
}

func (d Dir) readOutcome() (Outcome, bool) {
	raw, err := d.ReadResult()
	if err == nil {
		return Outcome{URL: raw}, true
	}
	if e, ok := AsCaptureError(err); ok {
		return Outcome{Err: e}, true
	}
	return Outcome{}, false
}
