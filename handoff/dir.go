// Package handoff provides the files exchanged between an authorization initiator
// and the redirect-capturing helper.
//
// The shared directory is the whole wire between the two processes.
// The initiator writes args.json and the helper reads it.
// The helper writes result.txt and the initiator reads it.
// Every write replaces the file as a whole.
package handoff

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// File names in the shared directory.
const (
	RequestFileName = "args.json"
	ResultFileName  = "result.txt"
	LockFileName    = "helper.lock"
	AddrFileName    = "helper.addr"
	LogFileName     = "helper.log"
)

var (
	// ErrNoRequest is returned by ReadRequest if args.json does not exist.
	ErrNoRequest = xerrors.New("no authorization request")
	// ErrNoResult is returned by ReadResult if result.txt does not exist
	// or does not contain a captured redirect yet.
	ErrNoResult = xerrors.New("no captured redirect")
)

// Request is the content of args.json.
type Request struct {
	URLScheme string `json:"urlScheme"`
	AuthURL   string `json:"authUrl"`
}

// Dir is the shared directory.
type Dir string

// DefaultDir returns the per-user shared directory, i.e. ~/.frameio-oauth.
func DefaultDir() (Dir, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", xerrors.Errorf("could not determine the home directory: %w", err)
	}
	return Dir(filepath.Join(home, ".frameio-oauth")), nil
}

// Path returns the path of the file in the directory.
func (d Dir) Path(name string) string {
	return filepath.Join(string(d), name)
}

// Init creates the directory if needed and restricts it to the owner.
func (d Dir) Init() error {
	if err := os.MkdirAll(string(d), 0700); err != nil {
		return xerrors.Errorf("could not create the directory %s: %w", d, err)
	}
	if err := os.Chmod(string(d), 0700); err != nil {
		return xerrors.Errorf("could not change the mode of %s: %w", d, err)
	}
	return nil
}

// WriteRequest writes args.json.
func (d Dir) WriteRequest(req Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return xerrors.Errorf("could not encode the request: %w", err)
	}
	return writeFile(string(d), RequestFileName, b)
}

// ReadRequest reads args.json.
// It returns ErrNoRequest if the file does not exist,
// or an error if the file is malformed or has an empty field.
func (d Dir) ReadRequest() (*Request, error) {
	b, err := os.ReadFile(d.Path(RequestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRequest
		}
		return nil, xerrors.Errorf("could not read %s: %w", RequestFileName, err)
	}
	var req Request
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, xerrors.Errorf("malformed %s: %w", RequestFileName, err)
	}
	if req.URLScheme == "" {
		return nil, xerrors.Errorf("malformed %s: urlScheme is empty", RequestFileName)
	}
	if req.AuthURL == "" {
		return nil, xerrors.Errorf("malformed %s: authUrl is empty", RequestFileName)
	}
	return &req, nil
}

// RequestMatches reports whether args.json still describes req.
// It returns false once a newer attempt has replaced the file.
func (d Dir) RequestMatches(req Request) bool {
	current, err := d.ReadRequest()
	if err != nil {
		return false
	}
	return *current == req
}

// RemoveRequest removes args.json if it exists.
func (d Dir) RemoveRequest() error {
	return removeFile(d.Path(RequestFileName))
}

// WriteResult writes the captured redirect URL to result.txt verbatim.
func (d Dir) WriteResult(raw string) error {
	return writeFile(string(d), ResultFileName, []byte(raw))
}

// WriteFailure writes the error marker of e to result.txt.
func (d Dir) WriteFailure(e *CaptureError) error {
	return writeFile(string(d), ResultFileName, []byte(FormatFailure(e)))
}

// ReadResult reads result.txt.
// It returns the content verbatim if it is a captured redirect,
// a *CaptureError if the file carries an error marker,
// or ErrNoResult if the file does not exist or has no code yet.
func (d Dir) ReadResult() (string, error) {
	b, err := os.ReadFile(d.Path(ResultFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoResult
		}
		return "", xerrors.Errorf("could not read %s: %w", ResultFileName, err)
	}
	s := string(b)
	if e, ok := parseFailure(s); ok {
		return "", e
	}
	if !IsCapture(s) {
		return "", ErrNoResult
	}
	return s, nil
}

// ClearResult removes result.txt if it exists.
func (d Dir) ClearResult() error {
	return removeFile(d.Path(ResultFileName))
}

// writeFile replaces the file by renaming a temporary file,
// so that a reader never sees a partially written content.
func writeFile(dir, name string, b []byte) error {
	f, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return xerrors.Errorf("could not create a temporary file for %s: %w", name, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return xerrors.Errorf("could not write %s: %w", name, err)
	}
	if err := f.Chmod(0600); err != nil {
		_ = f.Close()
		return xerrors.Errorf("could not change the mode of %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return xerrors.Errorf("could not close %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		return xerrors.Errorf("could not replace %s: %w", name, err)
	}
	return nil
}

func removeFile(name string) error {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return xerrors.Errorf("could not remove %s: %w", name, err)
	}
	return nil
}
