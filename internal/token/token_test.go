package token

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/domain"
)

func createTestService() *service {
	svc := NewService(Config{
		Secret:     "test-secret-key-123",
		Issuer:     "test-service",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, cache.NewMemoryCache(), zap.NewNop())
	return svc.(*service)
}

func createTestAccount() *domain.Account {
	return &domain.Account{
		ID:    "7d1f3c1e-9f55-4a3e-9a39-5d7bb0b8f001",
		Email: "test@example.com",
		Role:  domain.UserRoleUser,
	}
}

func TestService_IssueAndValidate(t *testing.T) {
	svc := createTestService()
	account := createTestAccount()
	ctx := context.Background()

	pair, err := svc.Issue(account)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("tokens should not be empty")
	}

	claims, err := svc.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if claims.UserID != account.ID {
		t.Errorf("Expected UserID %s, got %s", account.ID, claims.UserID)
	}
	if claims.Email != account.Email {
		t.Errorf("Expected Email %s, got %s", account.Email, claims.Email)
	}
	if !claims.ExpiresAt.Time.Equal(pair.ExpiresAt.Truncate(time.Second)) {
		t.Errorf("Expected expiry %v, got %v", pair.ExpiresAt, claims.ExpiresAt.Time)
	}

	if _, err := svc.ValidateRefresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("ValidateRefresh failed: %v", err)
	}
}

func TestService_TypeMismatch(t *testing.T) {
	svc := createTestService()
	pair, _ := svc.Issue(createTestAccount())

	if _, err := svc.ValidateAccess(context.Background(), pair.RefreshToken); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.ValidateRefresh(context.Background(), pair.AccessToken); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestService_Expired(t *testing.T) {
	svc := createTestService()
	base := time.Now()
	svc.now = func() time.Time { return base }
	pair, _ := svc.Issue(createTestAccount())

	svc.now = func() time.Time { return base.Add(time.Hour) }
	if _, err := svc.ValidateAccess(context.Background(), pair.AccessToken); err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestService_WrongSecretOrIssuer(t *testing.T) {
	svc := createTestService()
	pair, _ := svc.Issue(createTestAccount())

	other := createTestService()
	other.cfg.Secret = "another-secret-key-456"
	if _, err := other.ValidateAccess(context.Background(), pair.AccessToken); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for wrong secret, got %v", err)
	}

	other = createTestService()
	other.cfg.Issuer = "someone-else"
	if _, err := other.ValidateAccess(context.Background(), pair.AccessToken); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for wrong issuer, got %v", err)
	}

	if _, err := svc.ValidateAccess(context.Background(), "garbage"); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestService_Revoke(t *testing.T) {
	svc := createTestService()
	ctx := context.Background()
	pair, _ := svc.Issue(createTestAccount())

	if err := svc.Revoke(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := svc.ValidateAccess(ctx, pair.AccessToken); err != ErrTokenRevoked {
		t.Errorf("Expected ErrTokenRevoked, got %v", err)
	}
	// 刷新令牌有独立的 jti，不受影响
	if _, err := svc.ValidateRefresh(ctx, pair.RefreshToken); err != nil {
		t.Errorf("refresh token should still be valid: %v", err)
	}
	if err := svc.Revoke(ctx, "garbage"); err != nil {
		t.Errorf("revoking an invalid token should be a no-op, got %v", err)
	}
}
