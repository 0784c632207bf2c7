package game

import (
	"errors"
	"testing"
	"time"
)

func TestAuthenticatorRoundTrip(t *testing.T) {
	a := NewAuthenticator("secret", time.Hour)
	token, err := a.IssueToken("agent-1")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	id, err := a.ValidateToken(token)
	if err != nil || id != "agent-1" {
		t.Fatalf("ValidateToken = %q, %v", id, err)
	}
}

func TestAuthenticatorRejects(t *testing.T) {
	a := NewAuthenticator("secret", time.Hour)
	other := NewAuthenticator("other", time.Hour)
	token, _ := other.IssueToken("agent-1")

	if _, err := a.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong key: %v", err)
	}
	if _, err := a.ValidateToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: %v", err)
	}

	expired := NewAuthenticator("secret", time.Nanosecond)
	old, _ := expired.IssueToken("agent-1")
	time.Sleep(time.Second + 10*time.Millisecond)
	if _, err := a.ValidateToken(old); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: %v", err)
	}
}
