package service

import (
	"context"

	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/security"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
	Me(ctx context.Context, subject string) (*domain.User, error)
	GoogleCodeFlowEnabled() bool
	GoogleLoginURL(state string) string
	LoginWithGoogleCode(ctx context.Context, code string) (*AuthResult, error)
}

type ProductServiceInterface interface {
	Create(ctx context.Context, in ProductInput, image *ImageUpload) (*domain.Product, error)
	List(ctx context.Context, page, limit int) ([]domain.Product, error)
	GetByID(ctx context.Context, id uint) (*domain.Product, error)
	Update(ctx context.Context, id uint, in ProductInput, image *ImageUpload) (*domain.Product, error)
	Delete(ctx context.Context, id uint) error
}

type OrderServiceInterface interface {
	Create(ctx context.Context, callerID uint, in CreateOrderInput) (*domain.Order, error)
	List(ctx context.Context, userID *uint) ([]domain.OrderSummary, error)
	UpdateStatus(ctx context.Context, id uint, status string) (*domain.Order, error)
}

// TokenVerifier is the slice of TokenService the auth gate depends on.
type TokenVerifier interface {
	Verify(ctx context.Context, token, source string) (security.Claims, error)
}

var (
	_ AuthServiceInterface    = (*AuthService)(nil)
	_ ProductServiceInterface = (*ProductService)(nil)
	_ OrderServiceInterface   = (*OrderService)(nil)
	_ TokenVerifier           = (*TokenService)(nil)
	_ IdentityVerifier        = (*GoogleIDTokenVerifier)(nil)
	_ MailSender              = (*SMTPMailSender)(nil)
	_ MailSender              = (*LogMailSender)(nil)
	_ ImageStorage            = (*MinIOStorageService)(nil)
	_ ImageStorage            = DisabledImageStorage{}
	_ ProductListCache        = (*RedisProductListCache)(nil)
	_ ProductListCache        = (*InMemoryProductListCache)(nil)
	_ OAuthProvider           = (*GoogleOAuthProvider)(nil)
)
