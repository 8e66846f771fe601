package oauth2params

import (
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"
)

func Test_computeS256(t *testing.T) {
	// Testdata described at:
	// https://tools.ietf.org/html/rfc7636#appendix-B
	b := []byte{
		116, 24, 223, 180, 151, 153, 224, 37, 79, 250, 96, 125, 216, 173,
		187, 186, 22, 212, 37, 77, 105, 214, 191, 240, 91, 88, 5, 88, 83,
		132, 141, 121,
	}
	got := computeS256(b)
	want := PKCE{
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: "S256",
		CodeVerifier:        "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNewPKCE(t *testing.T) {
	p1, err := NewPKCE()
	if err != nil {
		t.Fatalf("NewPKCE error: %s", err)
	}
	p2, err := NewPKCE()
	if err != nil {
		t.Fatalf("NewPKCE error: %s", err)
	}
	if p1.CodeVerifier == p2.CodeVerifier {
		t.Errorf("verifier wants different on each call")
	}
	if n := len(p1.CodeVerifier); n < 43 || n > 128 {
		t.Errorf("verifier length wants 43 to 128 but was %d", n)
	}
	if diff := cmp.Diff(computeS256Verifier(t, p1.CodeVerifier), p1.CodeChallenge); diff != "" {
		t.Errorf("challenge mismatch (-want +got):\n%s", diff)
	}
}

func computeS256Verifier(t *testing.T, verifier string) string {
	t.Helper()
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

func TestPKCE_Options(t *testing.T) {
	// https://tools.ietf.org/html/rfc7636#appendix-B
	pkce := PKCE{
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: "S256",
		CodeVerifier:        "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
	}
	cfg := oauth2.Config{
		ClientID: "YOUR_CLIENT_ID",
		Endpoint: oauth2.Endpoint{AuthURL: "https://ims-na1.adobelogin.com/ims/authorize/v2"},
	}
	u, err := url.Parse(cfg.AuthCodeURL("STATE", pkce.AuthCodeOptions()...))
	if err != nil {
		t.Fatalf("Parse error: %s", err)
	}
	q := u.Query()
	if got := q.Get("code_challenge"); got != pkce.CodeChallenge {
		t.Errorf("code_challenge wants %s but was %s", pkce.CodeChallenge, got)
	}
	if got := q.Get("code_challenge_method"); got != "S256" {
		t.Errorf("code_challenge_method wants S256 but was %s", got)
	}
	if q.Has("code_verifier") {
		t.Errorf("authorization URL must not contain code_verifier")
	}
	if n := len(pkce.TokenRequestOptions()); n != 1 {
		t.Errorf("token request options wants 1 but was %d", n)
	}
}
