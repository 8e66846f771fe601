// Package ims provides the Adobe Identity Management System endpoint used by Frame.io.
package ims

import "golang.org/x/oauth2"

// Host is the only host which the helper opens in the browser.
// It can be replaced at build time with -ldflags "-X github.com/int128/oauth2scheme/ims.Host=...".
var Host = "ims-na1.adobelogin.com"

// Endpoint is Adobe IMS's OAuth 2.0 endpoint for native apps.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://ims-na1.adobelogin.com/ims/authorize/v2",
	TokenURL:  "https://ims-na1.adobelogin.com/ims/token/v3",
	AuthStyle: oauth2.AuthStyleInParams,
}

// DefaultScopes are requested when no scope is configured.
var DefaultScopes = []string{"email", "profile", "openid", "offline_access"}

// EndpointOf returns the endpoint on the host.
// It returns Endpoint for Host or an empty host.
func EndpointOf(host string) oauth2.Endpoint {
	if host == "" || host == Host {
		return Endpoint
	}
	return oauth2.Endpoint{
		AuthURL:   "https://" + host + "/ims/authorize/v2",
		TokenURL:  "https://" + host + "/ims/token/v3",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}
