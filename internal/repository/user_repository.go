package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/observability"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create inserts a user. passwordHash is nil for OAuth-only accounts.
	// A duplicate email yields ErrUserExists.
	Create(ctx context.Context, email string, passwordHash *string) (*domain.User, error)
	// UpdatePassword replaces the stored hash and reports how many rows changed.
	UpdatePassword(ctx context.Context, id uint, passwordHash string) (int64, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, r.lookupError(ctx, "find_by_id", err)
	}
	observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, r.lookupError(ctx, "find_by_email", err)
	}
	observability.RecordRepositoryOperation(ctx, "user", "find_by_email", "success")
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, email string, passwordHash *string) (*domain.User, error) {
	u := &domain.User{Email: email, PasswordHash: passwordHash}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			observability.RecordRepositoryOperation(ctx, "user", "create", "conflict")
			return nil, ErrUserExists
		}
		observability.RecordRepositoryOperation(ctx, "user", "create", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "create", "success")
	return u, nil
}

func (r *GormUserRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("password", passwordHash)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "user", "update_password", "error")
		return 0, res.Error
	}
	outcome := "success"
	if res.RowsAffected == 0 {
		outcome = "not_found"
	}
	observability.RecordRepositoryOperation(ctx, "user", "update_password", outcome)
	return res.RowsAffected, nil
}

func (r *GormUserRepository) lookupError(ctx context.Context, op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		observability.RecordRepositoryOperation(ctx, "user", op, "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(ctx, "user", op, "error")
	return err
}
