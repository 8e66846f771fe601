package helper

import (
	"net/url"

	"golang.org/x/xerrors"
)

// ValidateAuthURL returns an error unless raw is an https URL of allowedHost.
// Any other scheme or host is rejected, including an unparsable URL.
func ValidateAuthURL(raw, allowedHost string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return xerrors.Errorf("could not parse the authorization URL: %w", err)
	}
	if u.Scheme != "https" {
		return xerrors.Errorf("authorization URL must be https but was %q", u.Scheme)
	}
	if u.User != nil {
		return xerrors.Errorf("authorization URL must not contain user info")
	}
	if allowedHost == "" || u.Host != allowedHost {
		return xerrors.Errorf("authorization URL must be on %s but was %q", allowedHost, u.Host)
	}
	return nil
}
