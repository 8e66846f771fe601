// Package tokenstore persists a token to a file.
package tokenstore

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

// ErrNotFound is returned if no token is saved.
var ErrNotFound = xerrors.New("no token is saved")

// EarlyExpiry is the margin to refresh a token before it expires.
const EarlyExpiry = 5 * time.Minute

// Record represents the content of the token file.
// Timestamps are in Unix seconds.
type Record struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	SavedAt      int64  `json:"saved_at"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Token returns the token of the record.
func (r *Record) Token() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
	}
	if r.ExpiresAt > 0 {
		t.Expiry = time.Unix(r.ExpiresAt, 0)
	}
	if r.IDToken != "" {
		t = t.WithExtra(map[string]interface{}{"id_token": r.IDToken})
	}
	return t
}

// Expiry returns the expiry, or zero if unknown.
func (r *Record) Expiry() time.Time {
	if r.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(r.ExpiresAt, 0)
}

// File is a token file.
type File struct {
	Path string
	// Default to time.Now.
	Now func() time.Time
}

func (f *File) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// Save writes the token with the timestamps.
// The file is readable only by the owner.
func (f *File) Save(t *oauth2.Token) (*Record, error) {
	now := f.now()
	r := &Record{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		SavedAt:      now.Unix(),
	}
	if idToken, ok := t.Extra("id_token").(string); ok {
		r.IDToken = idToken
	}
	if !t.Expiry.IsZero() {
		r.ExpiresAt = t.Expiry.Unix()
		r.ExpiresIn = r.ExpiresAt - r.SavedAt
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, xerrors.Errorf("could not encode the token: %w", err)
	}
	if err := os.WriteFile(f.Path, b, 0600); err != nil {
		return nil, xerrors.Errorf("could not write the token: %w", err)
	}
	if err := os.Chmod(f.Path, 0600); err != nil {
		return nil, xerrors.Errorf("could not restrict the token file: %w", err)
	}
	return r, nil
}

// Load reads the token.
// It returns ErrNotFound if the file does not exist.
func (f *File) Load() (*Record, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, xerrors.Errorf("could not read the token: %w", err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, xerrors.Errorf("could not decode the token: %w", err)
	}
	return &r, nil
}

// Clear removes the token.
// It returns ErrNotFound if the file does not exist.
func (f *File) Clear() error {
	if err := os.Remove(f.Path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return xerrors.Errorf("could not remove the token: %w", err)
	}
	return nil
}

// TokenSource returns a token source of the saved token.
// It refreshes the token EarlyExpiry before the expiry and saves the refreshed token.
func (f *File) TokenSource(ctx context.Context, cfg *oauth2.Config) (oauth2.TokenSource, error) {
	r, err := f.Load()
	if err != nil {
		return nil, err
	}
	t := r.Token()
	// a token without the access token is always refreshed
	refresher := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: t.RefreshToken})
	return &persistingTokenSource{
		file: f,
		base: oauth2.ReuseTokenSourceWithExpiry(t, refresher, EarlyExpiry),
		last: t,
	}, nil
}

type persistingTokenSource struct {
	mu   sync.Mutex
	file *File
	base oauth2.TokenSource
	last *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.base.Token()
	if err != nil {
		return nil, xerrors.Errorf("could not refresh the token: %w", err)
	}
	if t.AccessToken == s.last.AccessToken {
		return t, nil
	}
	if t.RefreshToken == "" {
		t.RefreshToken = s.last.RefreshToken
	}
	if _, err := s.file.Save(t); err != nil {
		return nil, err
	}
	s.last = t
	return t, nil
}
