package services

import (
	"context"
	"errors"
	"testing"

	"couple-sync-backend/internal/models"
)

func TestCreateUserIssuesToken(t *testing.T) {
	service := NewUserService(NewFakeUserStore(), "test-secret")

	user, token, err := service.CreateUser(context.Background(), "  Alice  ")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if user.DisplayName != "Alice" {
		t.Errorf("expected trimmed display name, got %q", user.DisplayName)
	}
	if user.ID == "" {
		t.Error("expected a generated user id")
	}

	userID, err := service.ValidateJWT(token)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if userID != user.ID {
		t.Fatalf("expected token for %s, got %s", user.ID, userID)
	}
}

func TestCreateUserDefaultsName(t *testing.T) {
	service := NewUserService(NewFakeUserStore(), "test-secret")

	user, _, err := service.CreateUser(context.Background(), "   ")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if user.DisplayName != "User" {
		t.Fatalf("expected fallback name, got %q", user.DisplayName)
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	users := NewFakeUserStore()
	service := NewUserService(users, "test-secret")
	ctx := context.Background()

	first, err := service.Bootstrap(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("first bootstrap failed: %v", err)
	}
	second, err := service.Bootstrap(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	if first.ID != second.ID || second.DisplayName != "Alice" {
		t.Fatalf("expected the same profile back, got %+v then %+v", first, second)
	}
}

func TestBootstrapKeepsExistingName(t *testing.T) {
	users := NewFakeUserStore()
	service := NewUserService(users, "test-secret")
	ctx := context.Background()

	if _, err := service.Bootstrap(ctx, "u1", "Alice"); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	profile, err := service.Bootstrap(ctx, "u1", "")
	if err != nil {
		t.Fatalf("bootstrap without a name failed: %v", err)
	}
	if profile.DisplayName != "Alice" {
		t.Fatalf("expected existing name preserved, got %q", profile.DisplayName)
	}
}

func TestBootstrapRequiresUserID(t *testing.T) {
	service := NewUserService(NewFakeUserStore(), "test-secret")

	_, err := service.Bootstrap(context.Background(), "", "Alice")
	if !errors.Is(err, models.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	issuer := NewUserService(NewFakeUserStore(), "secret-a")
	verifier := NewUserService(NewFakeUserStore(), "secret-b")

	token, err := issuer.GenerateJWT("u1")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := verifier.ValidateJWT(token); err == nil {
		t.Fatal("expected validation failure under a different secret")
	}
}

func TestValidateJWTRejectsGarbage(t *testing.T) {
	service := NewUserService(NewFakeUserStore(), "test-secret")

	if _, err := service.ValidateJWT("not-a-token"); err == nil {
		t.Fatal("expected validation failure for garbage input")
	}
}
