package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"couple-sync-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const jwtExpDays = 365

// UserService handles identity: profile bootstrap and token issuing
type UserService struct {
	users     UserStore
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(users UserStore, jwtSecret string) *UserService {
	return &UserService{
		users:     users,
		jwtSecret: jwtSecret,
	}
}

// CreateUser creates a new user profile and issues its token
func (s *UserService) CreateUser(ctx context.Context, displayName string) (*models.UserProfile, string, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "User"
	}

	userID := uuid.New().String()
	user, err := s.users.Upsert(ctx, userID, name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.GenerateJWT(userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// Bootstrap upserts the profile keyed by id. Called on every authenticated
// load; repeated calls are idempotent.
func (s *UserService) Bootstrap(ctx context.Context, userID, displayName string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		if existing, err := s.users.GetByID(ctx, userID); err == nil {
			name = existing.DisplayName
		} else {
			name = "User"
		}
	}
	return s.users.Upsert(ctx, userID, name)
}

// GetProfile returns a user profile by id
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	return s.users.GetByID(ctx, userID)
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", models.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", models.ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", models.ErrInvalidToken
	}

	return userID, nil
}
