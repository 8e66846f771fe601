// Package browser opens a URL in the default browser.
package browser

import (
	"io"
	"os"

	"github.com/pkg/browser"
	"github.com/skratchdot/open-golang/open"
	"golang.org/x/xerrors"
)

// Opener opens a URL by the first method which succeeds.
type Opener struct {
	// Methods to try in order. Default to pkg/browser and then open-golang.
	Methods []func(url string) error
	// Logger for diagnostics. Default to none.
	Logf func(format string, args ...interface{})
}

// NewOpener returns an Opener which writes output of the browser process to w.
// Stdout of the helper is reserved for the outcome, so w is usually os.Stderr.
//
// The output of pkg/browser is process-global,
// so it should be called once in a process.
func NewOpener(w io.Writer, logf func(format string, args ...interface{})) *Opener {
	if w == nil {
		w = os.Stderr
	}
	browser.Stdout, browser.Stderr = w, w
	return &Opener{Logf: logf}
}

// OpenURL opens the URL.
func (o *Opener) OpenURL(url string) error {
	logf := o.Logf
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	methods := o.Methods
	if len(methods) == 0 {
		methods = []func(string) error{browser.OpenURL, open.Run}
	}
	var err error
	for _, method := range methods {
		if err = method(url); err == nil {
			return nil
		}
		logf("could not open the browser: %s", err)
	}
	return xerrors.Errorf("could not open the browser: %w", err)
}
