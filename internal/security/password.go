package security

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/mahamart/commerce-backend/internal/apperr"
)

const DefaultBcryptCost = 10

// Hasher hashes and compares passwords with bcrypt. Concurrent bcrypt work is
// bounded so a burst of logins cannot starve the rest of the server of CPU.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

func NewHasher(cost, concurrency int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(concurrency))}
}

func (h *Hasher) Cost() int { return h.cost }

// Hash returns a bcrypt hash embedding a fresh salt and the configured cost.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", apperr.InvalidInput("password is required")
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.InvalidInput("password must be at most 72 bytes")
		}
		return "", fmt.Errorf("generate password hash: %w", err)
	}
	return string(out), nil
}

// Compare reports whether plaintext matches the stored hash. A mismatch is
// (false, nil); a hash that cannot be parsed is a comparison error.
func (h *Hasher) Compare(ctx context.Context, plaintext, hash string) (bool, error) {
	if plaintext == "" || hash == "" {
		return false, apperr.InvalidInput("password and hash are required")
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return false, apperr.Comparison("stored password hash is malformed", err)
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, apperr.Comparison("compare password hash", err)
	}
}
