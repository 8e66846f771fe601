package internal

import (
	"encoding/hex"
	"testing"
)

func TestNewOAuth2State(t *testing.T) {
	t.Run("different results are returned", func(t *testing.T) {
		s1, err := NewOAuth2State()
		if err != nil {
			t.Fatalf("unexpected error calling NewOAuth2State(): %v", err)
		}
		s2, err := NewOAuth2State()
		if err != nil {
			t.Fatalf("unexpected error calling NewOAuth2State(): %v", err)
		}
		if s1 == s2 {
			t.Errorf("NewOAuth2State() returned the same value on different invocations: %q", s1)
		}
	})
	t.Run("32 bytes in hex", func(t *testing.T) {
		s, err := NewOAuth2State()
		if err != nil {
			t.Fatalf("unexpected error calling NewOAuth2State(): %v", err)
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			t.Fatalf("state is not hex: %v", err)
		}
		if len(b) != 32 {
			t.Errorf("state wants 32 bytes but was %d bytes", len(b))
		}
	})
}
