// Package auth はアカウント登録、ログイン、トークン認証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/adhira/adhira/internal/metrics"
	"github.com/adhira/adhira/internal/model"
	"github.com/adhira/adhira/internal/repository"
	"github.com/adhira/adhira/internal/security"
)

// RegisterCustomerInput はcustomer登録の入力。
type RegisterCustomerInput struct {
	FullName        string
	Email           string
	MobileNumber    string
	Address         string
	Password        string
	ConfirmPassword string
}

// RegisterSellerInput はseller登録の入力。
type RegisterSellerInput struct {
	FullName        string
	Email           string
	MobileNumber    string
	ShopName        string
	ShopDescription string
	BusinessAddress string
	Password        string
	ConfirmPassword string
}

// Result は登録・ログイン成功時の結果。
// UserのPasswordHashは空にして返す。
type Result struct {
	User  *model.UserWithProfile
	Token string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	sanitizer security.ProfileSanitizer
	metrics   metrics.MetricsCollector
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	sanitizer security.ProfileSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		tokens:    tokens,
		sanitizer: sanitizer,
		metrics:   collector,
	}
}

// RegisterCustomer はcustomerアカウントを作成し、トークンを発行する。
func (s *Service) RegisterCustomer(ctx context.Context, in RegisterCustomerInput) (*Result, error) {
	user, token, err := s.prepareUser(ctx, model.RoleCustomer, in.FullName, in.Email, in.MobileNumber, in.Password, in.ConfirmPassword)
	if err != nil {
		return nil, err
	}

	customer := &model.Customer{
		ID:      uuid.New().String(),
		Address: s.sanitizer.Sanitize(in.Address),
	}

	if err := s.userRepo.CreateCustomer(ctx, user, customer); err != nil {
		return nil, s.mapCreateError(err, user.Role)
	}

	s.metrics.RecordRegistration(string(model.RoleCustomer))
	slog.InfoContext(ctx, "customer account created",
		slog.String("user_id", user.ID),
	)

	user.PasswordHash = ""
	return &Result{
		User:  &model.UserWithProfile{User: *user, Customer: customer},
		Token: token,
	}, nil
}

// RegisterSeller はsellerアカウントを作成し、トークンを発行する。
func (s *Service) RegisterSeller(ctx context.Context, in RegisterSellerInput) (*Result, error) {
	user, token, err := s.prepareUser(ctx, model.RoleSeller, in.FullName, in.Email, in.MobileNumber, in.Password, in.ConfirmPassword)
	if err != nil {
		return nil, err
	}

	seller := &model.Seller{
		ID:              uuid.New().String(),
		ShopName:        s.sanitizer.Sanitize(in.ShopName),
		ShopDescription: s.sanitizer.Sanitize(in.ShopDescription),
		BusinessAddress: s.sanitizer.Sanitize(in.BusinessAddress),
	}

	if err := s.userRepo.CreateSeller(ctx, user, seller); err != nil {
		return nil, s.mapCreateError(err, user.Role)
	}

	s.metrics.RecordRegistration(string(model.RoleSeller))
	slog.InfoContext(ctx, "seller account created",
		slog.String("user_id", user.ID),
	)

	user.PasswordHash = ""
	return &Result{
		User:  &model.UserWithProfile{User: *user, Seller: seller},
		Token: token,
	}, nil
}

// prepareUser は登録共通の検証、ハッシュ化、トークン発行を行い、未保存のユーザーを返す。
// トークンのクレームはログイン時と同じ {sub, email, role} とする。
func (s *Service) prepareUser(ctx context.Context, role model.Role, fullName, email, mobile, password, confirm string) (*model.User, string, error) {
	if password != confirm {
		return nil, "", model.ErrPasswordMismatch
	}

	exists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, "", model.ErrDuplicateEmail
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		FullName:     s.sanitizer.Sanitize(fullName),
		Email:        email,
		MobileNumber: mobile,
		PasswordHash: digest,
		Role:         role,
	}

	token, err := s.tokens.Issue(Claims{UserID: user.ID, Email: user.Email, Role: role})
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	user.Token = token

	return user, token, nil
}

// mapCreateError は同時登録による一意制約違反をErrDuplicateEmailに変換する。
func (s *Service) mapCreateError(err error, role model.Role) error {
	if errors.Is(err, model.ErrConstraintViolation) {
		return fmt.Errorf("%w: %w", model.ErrDuplicateEmail, err)
	}
	return fmt.Errorf("failed to create %s: %w", role, err)
}

// Login はメールアドレスとパスワードで認証し、新しいトークンを発行する。
// ユーザー不在とパスワード不一致は同じErrInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginError)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.RecordLogin(metrics.LoginInvalidCredentials)
		return nil, model.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(Claims{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginError)
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if err := s.userRepo.UpdateToken(ctx, user.ID, token); err != nil {
		s.metrics.RecordLogin(metrics.LoginError)
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	slog.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	user.PasswordHash = ""
	user.Token = token
	return &Result{User: user, Token: token}, nil
}

// Authenticate はトークンを検証し、主体となるユーザーを返す。
// ユーザーが削除済みの場合はErrUserNotFoundを返す。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.UserWithProfile, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.ErrUserNotFound
	}

	user.PasswordHash = ""
	return user, nil
}
