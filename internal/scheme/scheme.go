// Package scheme registers this executable as the handler of a custom URL scheme.
package scheme

import (
	"os/exec"
	"regexp"

	"golang.org/x/xerrors"
)

// ErrUnsupported is returned by Register on a platform without scheme registration.
var ErrUnsupported = xerrors.New("URL scheme registration is not supported on this platform")

var validScheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*$`)

// Registrar associates a URL scheme with a command.
type Registrar struct {
	// Command line to launch for a URL. The URL is appended as the last argument.
	// Mandatory.
	Command []string

	// Directory of desktop entries is resolved under it (Linux only).
	// Default to $XDG_DATA_HOME or ~/.local/share.
	DataHome string

	// Runs an external command.
	// Default to exec.Command.
	Run func(name string, args ...string) error

	// Logger for diagnostics. Default to none.
	Logf func(format string, args ...interface{})
}

// Register makes the command the handler of the scheme.
// Registering the same scheme again leaves the same association.
func (r *Registrar) Register(scheme string) error {
	if !validScheme.MatchString(scheme) {
		return xerrors.Errorf("invalid URL scheme %q", scheme)
	}
	if len(r.Command) == 0 {
		return xerrors.New("Command must be set")
	}
	if r.Run == nil {
		r.Run = runCommand
	}
	if r.Logf == nil {
		r.Logf = func(string, ...interface{}) {}
	}
	return r.register(scheme)
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return xerrors.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}
