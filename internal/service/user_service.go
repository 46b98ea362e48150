package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/mailer"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// DefaultAccessTokenExpiration applies when no expiry is configured
	DefaultAccessTokenExpiration = 24 * time.Hour
)

// RegisterInput is a validated registration request
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is returned by Register and Login
type AuthResult struct {
	User  *domain.User
	Token string
}

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Logout revokes the access token with the given jti
	Logout(ctx context.Context, tokenID uuid.UUID) error
	// Authenticate validates a bearer token and checks it was not revoked
	Authenticate(ctx context.Context, tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	// VerifyEmail checks a signed verification link and marks the address
	// verified. It reports whether the address had already been verified.
	VerifyEmail(ctx context.Context, id, hash, expires, signature string) (alreadyVerified bool, err error)
	ResendVerification(ctx context.Context, userID uuid.UUID) error
}

// Claims represents the JWT claims. RegisteredClaims.ID carries the jti.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// TokenID returns the parsed jti
func (c *Claims) TokenID() (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}

type userService struct {
	store       repository.Store
	mailer      mailer.Mailer
	events      events.Publisher
	signer      *VerificationSigner
	jwtSecret   string
	tokenExpiry time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewUserService creates a new instance of UserService
func NewUserService(
	store repository.Store,
	mail mailer.Mailer,
	publisher events.Publisher,
	signer *VerificationSigner,
	jwtSecret string,
	tokenExpiry time.Duration,
	logger *zap.Logger,
) UserService {
	if tokenExpiry <= 0 {
		tokenExpiry = DefaultAccessTokenExpiration
	}
	return &userService{
		store:       store,
		mailer:      mail,
		events:      publisher,
		signer:      signer,
		jwtSecret:   jwtSecret,
		tokenExpiry: tokenExpiry,
		logger:      logger,
		now:         time.Now,
	}
}

// NormalizeEmail is the stored form of an address: trimmed and lower-cased,
// so addresses differing only in case belong to one account
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user account with hashed password, sends the
// verification email in the background and issues a token
func (s *userService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)

	existingUser, err := s.store.Users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	go func(ctx context.Context) {
		if err := s.sendVerification(ctx, user); err != nil {
			s.logger.Error("Failed to send verification email",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
	}(context.WithoutCancel(ctx))

	token, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	publish(ctx, s.events, s.logger, events.TopicUserRegistered, user.ID.String(), map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"name":    user.Name,
	})

	return &AuthResult{User: user, Token: token}, nil
}

// Login authenticates a user and returns a bearer token. Unverified
// accounts get ErrEmailNotVerified and no token.
func (s *userService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.store.Users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.HasVerifiedEmail() {
		return nil, ErrEmailNotVerified
	}

	token, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Logout revokes the current token
func (s *userService) Logout(ctx context.Context, tokenID uuid.UUID) error {
	if err := s.store.AccessTokens.Revoke(ctx, tokenID); err != nil {
		if errors.Is(err, repository.ErrAccessTokenNotFound) {
			// Token doesn't exist, consider it already logged out
			return nil
		}
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	return nil
}

// Authenticate validates a JWT token, then checks the token record so that
// revoked tokens are refused before they expire
func (s *userService) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	tokenID, err := claims.TokenID()
	if err != nil {
		return nil, ErrInvalidToken
	}

	record, err := s.store.AccessTokens.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrAccessTokenNotFound) || errors.Is(err, repository.ErrAccessTokenRevoked) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load access token: %w", err)
	}

	if record.UserID != claims.UserID || s.now().After(record.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *userService) VerifyEmail(ctx context.Context, id, hash, expires, signature string) (bool, error) {
	if err := s.signer.Check(id, hash, expires, signature, s.now()); err != nil {
		return false, err
	}

	userID, err := uuid.Parse(id)
	if err != nil {
		return false, ErrInvalidVerificationLink
	}

	user, err := s.store.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to find user: %w", err)
	}

	if !hashMatches(user.Email, hash) {
		return false, ErrInvalidVerificationLink
	}

	if user.HasVerifiedEmail() {
		return true, nil
	}

	verified, err := s.store.Users.MarkEmailVerified(ctx, user.ID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to verify email: %w", err)
	}
	if verified {
		s.logger.Info("Email verified", zap.String("user_id", user.ID.String()))
	}

	// a concurrent click may have won the update
	return !verified, nil
}

func (s *userService) ResendVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.HasVerifiedEmail() {
		return ErrEmailAlreadyVerified
	}

	return s.sendVerification(ctx, user)
}

func (s *userService) sendVerification(ctx context.Context, user *domain.User) error {
	msg, err := mailer.VerificationMessage(user.Email, user.Name, s.signer.URL(user, s.now()))
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}

// hashPassword hashes a password using bcrypt with cost factor 10
func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// verifyPassword verifies a password against a bcrypt hash
func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// issueToken records a new access token and returns it signed
func (s *userService) issueToken(ctx context.Context, user *domain.User) (string, error) {
	now := s.now()
	record := &domain.AccessToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.tokenExpiry),
		CreatedAt: now,
	}
	if err := s.store.AccessTokens.Create(ctx, record); err != nil {
		return "", err
	}

	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        record.ID.String(),
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
