package auth

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/partsdepot/partsdepot-backend/internal/users"
	pkgauth "github.com/partsdepot/partsdepot-backend/pkg/auth"
	"github.com/partsdepot/partsdepot-backend/pkg/auth/session"
	"github.com/partsdepot/partsdepot-backend/pkg/config"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
)

type fakeSessions struct {
	tokens map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: map[string]string{}}
}

func (f *fakeSessions) Generate(_ context.Context, accessID string) (string, error) {
	token := uuid.NewString()
	f.tokens[accessID] = token
	return token, nil
}

func (f *fakeSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.tokens[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.tokens, oldAccessID)
	newAccessID := session.NewAccessID()
	newToken := uuid.NewString()
	f.tokens[newAccessID] = newToken
	return newAccessID, newToken, nil
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	delete(f.tokens, accessID)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  phone TEXT,
  role TEXT NOT NULL DEFAULT 'customer',
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create users table: %v", err)
	}
	return db
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret",
		Issuer:                 "partsdepot-test",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60,
	}
}

func newTestService(t *testing.T) (Service, *fakeSessions) {
	t.Helper()
	db := newTestDB(t)
	repo, err := users.NewRepositoryWithDB(db)
	if err != nil {
		t.Fatalf("users repository: %v", err)
	}

	sessions := newFakeSessions()
	svc, err := NewService(
		repo,
		sessions,
		testJWTConfig(),
		config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16},
		logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, sessions
}

func registerInput() RegisterInput {
	return RegisterInput{
		Email:     "Dana@Example.com",
		Password:  "correct-horse",
		FirstName: "Dana",
		LastName:  "Walker",
	}
}

func TestRegisterCreatesCustomerAndSignsIn(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.User.Email != "dana@example.com" {
		t.Fatalf("expected normalized email, got %s", result.User.Email)
	}
	if result.User.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role, got %s", result.User.Role)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != result.User.ID || claims.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, registerInput()); err != nil {
		t.Fatalf("first register: %v", err)
	}

	input := registerInput()
	input.Email = "DANA@example.com"
	_, err := svc.Register(ctx, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	input := registerInput()
	input.Password = "short"

	_, err := svc.Register(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginVerifiesPassword(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, registerInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := svc.Login(ctx, LoginInput{Email: "dana@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Tokens.AccessToken == "" {
		t.Fatal("expected access token")
	}

	_, err = svc.Login(ctx, LoginInput{Email: "dana@example.com", Password: "wrong-horse"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "correct-horse"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	pair, err := svc.Refresh(ctx, RefreshInput{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.AccessToken == result.Tokens.AccessToken || pair.RefreshToken == result.Tokens.RefreshToken {
		t.Fatal("expected rotated tokens")
	}

	// The old refresh token is burned after rotation.
	_, err = svc.Refresh(ctx, RefreshInput{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized on replay, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	t.Parallel()

	svc, sessions := newTestService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if err := svc.Logout(ctx, claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := sessions.tokens[claims.ID]; ok {
		t.Fatal("expected session removed")
	}

	_, err = svc.Refresh(ctx, RefreshInput{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized after logout, got %v", err)
	}
}
