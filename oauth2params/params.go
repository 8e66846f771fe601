// Package oauth2params provides the parameters of an authorization request.
package oauth2params

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/int128/oauth2scheme/internal"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

// NewState returns a state parameter.
func NewState() (string, error) {
	s, err := internal.NewOAuth2State()
	if err != nil {
		return "", xerrors.Errorf("could not generate a state: %w", err)
	}
	return s, nil
}

// PKCE represents a set of PKCE parameters.
// See https://tools.ietf.org/html/rfc7636.
type PKCE struct {
	CodeChallenge       string
	CodeChallengeMethod string
	CodeVerifier        string
}

// AuthCodeOptions returns options for oauth2.Config.AuthCodeURL.
func (pkce *PKCE) AuthCodeOptions() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(pkce.CodeVerifier)}
}

// TokenRequestOptions returns options for oauth2.Config.Exchange.
func (pkce *PKCE) TokenRequestOptions() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{oauth2.VerifierOption(pkce.CodeVerifier)}
}

// NewPKCE returns PKCE parameters of the S256 method.
// The verifier is 86 characters of 64 random bytes,
// longer than oauth2.GenerateVerifier which reads 32 bytes.
func NewPKCE() (*PKCE, error) {
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		return nil, xerrors.Errorf("could not generate a random: %w", err)
	}
	s := computeS256(b)
	return &s, nil
}

func computeS256(b []byte) PKCE {
	v := base64.RawURLEncoding.EncodeToString(b)
	return PKCE{
		CodeChallenge:       oauth2.S256ChallengeFromVerifier(v),
		CodeChallengeMethod: "S256",
		CodeVerifier:        v,
	}
}
