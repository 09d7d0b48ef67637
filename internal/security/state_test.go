package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSignedStateRoundTrip(t *testing.T) {
	state, err := NewRandomString(24)
	if err != nil {
		t.Fatal(err)
	}
	signed := SignState(state, "state-key-0123456789")

	got, ok := VerifySignedState(signed, "state-key-0123456789")
	if !ok || got != state {
		t.Fatalf("expected state %q to verify, got %q ok=%v", state, got, ok)
	}
	if _, ok := VerifySignedState(signed, "another-key-0123456789"); ok {
		t.Fatal("expected verification with another key to fail")
	}
	if _, ok := VerifySignedState(state+".tampered", "state-key-0123456789"); ok {
		t.Fatal("expected tampered mac to fail")
	}
	if _, ok := VerifySignedState("", "state-key-0123456789"); ok {
		t.Fatal("expected empty value to fail")
	}
}

func TestGetCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "oauth_state", Value: "abc"})
	if got := GetCookie(r, "oauth_state"); got != "abc" {
		t.Fatalf("expected cookie value, got %q", got)
	}
	if got := GetCookie(r, "missing"); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}
