package service

import (
	"context"
	"testing"
	"time"

	"github.com/mahamart/commerce-backend/internal/apperr"
	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/security"
)

func TestTokenServiceIssueAndVerify(t *testing.T) {
	svc := NewTokenService(security.NewJWTManager(testJWTSecret, time.Hour))

	token, err := svc.IssueForUser(context.Background(), &domain.User{ID: 12})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Verify(context.Background(), token, "header")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	id, err := ParseSubject(claims.Subject)
	if err != nil || id != 12 {
		t.Fatalf("expected subject 12, got %d err=%v", id, err)
	}
	if svc.TTL() != time.Hour {
		t.Fatalf("unexpected ttl %s", svc.TTL())
	}
}

func TestTokenServiceRejectsForeignSignature(t *testing.T) {
	svc := NewTokenService(security.NewJWTManager(testJWTSecret, time.Hour))
	other := security.NewJWTManager("another-secret-with-enough-entropy-xyz", time.Hour)
	token, err := other.Issue("1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(context.Background(), token, "header"); err == nil {
		t.Fatal("expected foreign signature to be rejected")
	}
}

func TestTokenServiceIssueForUserRequiresID(t *testing.T) {
	svc := NewTokenService(security.NewJWTManager(testJWTSecret, time.Hour))
	_, err := svc.IssueForUser(context.Background(), &domain.User{})
	assertKind(t, err, apperr.KindInvalidInput, "")
}

func TestParseSubject(t *testing.T) {
	for _, bad := range []string{"", "0", "-1", "abc", "1.5"} {
		if _, err := ParseSubject(bad); apperr.KindOf(err) != apperr.KindInvalidToken {
			t.Fatalf("expected invalid token for %q, got %v", bad, err)
		}
	}
	if id, err := ParseSubject(FormatSubject(77)); err != nil || id != 77 {
		t.Fatalf("round trip failed: %d %v", id, err)
	}
}
