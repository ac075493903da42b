package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/internal/users"
	pkgauth "github.com/partsdepot/partsdepot-backend/pkg/auth"
	"github.com/partsdepot/partsdepot-backend/pkg/auth/session"
	"github.com/partsdepot/partsdepot-backend/pkg/config"
	"github.com/partsdepot/partsdepot-backend/pkg/db/models"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/security"
)

const minPasswordLen = 8

// RegisterInput creates a new customer account.
type RegisterInput struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Phone     *string `json:"phone,omitempty"`
}

// LoginInput authenticates an existing account.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshInput rotates an access/refresh pair.
type RefreshInput struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UserView is the public account shape.
type UserView struct {
	ID        uuid.UUID      `json:"id"`
	Email     string         `json:"email"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Phone     *string        `json:"phone,omitempty"`
	Role      enums.UserRole `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

// TokenPair carries the issued credentials.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthResult bundles the account and its fresh tokens.
type AuthResult struct {
	User   UserView  `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// Service exposes account registration and the token lifecycle.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Refresh(ctx context.Context, input RefreshInput) (*TokenPair, error)
	Logout(ctx context.Context, accessID string) error
	GetUser(ctx context.Context, userID uuid.UUID) (*UserView, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type service struct {
	repo        *users.Repository
	sessions    sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService wires the auth service.
func NewService(
	repo *users.Repository,
	sessions sessionManager,
	jwtCfg config.JWTConfig,
	passwordCfg config.PasswordConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if jwtCfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		repo:        repo,
		sessions:    sessions,
		jwtCfg:      jwtCfg,
		passwordCfg: passwordCfg,
		logg:        logg,
		now:         time.Now,
	}, nil
}

// Register creates a customer account and signs it in.
func (s *service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	email := users.NormalizeEmail(input.Email)
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing account")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an account with this email already exists")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        input.Phone,
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "account registered")
	return &AuthResult{User: viewFromUser(user), Tokens: *tokens}, nil
}

// Login verifies credentials and issues a fresh token pair.
func (s *service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	if user == nil || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp last login")
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "account logged in")
	return &AuthResult{User: viewFromUser(user), Tokens: *tokens}, nil
}

// Refresh rotates the session and mints a new access token. The expired
// access token is only inspected for its session ID.
func (s *service) Refresh(ctx context.Context, input RefreshInput) (*TokenPair, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, input.AccessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, input.RefreshToken)
	if err != nil {
		if err == session.ErrInvalidRefreshToken {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	access, err := pkgauth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgauth.AccessTokenPayload{
		UserID: claims.UserID,
		Role:   claims.Role,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Logout revokes the active session for the presented access token.
func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// GetUser loads the public account shape.
func (s *service) GetUser(ctx context.Context, userID uuid.UUID) (*UserView, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	view := viewFromUser(user)
	return &view, nil
}

func (s *service) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessID := session.NewAccessID()
	access, err := pkgauth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session")
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func validateRegisterInput(input RegisterInput) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(input.Email)); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if len(input.Password) < minPasswordLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "first and last name are required")
	}
	return nil
}

func viewFromUser(user *models.User) UserView {
	return UserView{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
