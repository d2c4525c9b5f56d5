// Package identity implements signup, login and the two-step login flow
// for profiles with TOTP enabled.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/saaskit/backend/internal/domain/identity"
	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/infrastructure/auth"
)

// TwoFactorVerifier checks second-factor codes during the login flow.
type TwoFactorVerifier interface {
	VerifyCode(ctx context.Context, userID uuid.UUID, code, ip, userAgent string) error
	VerifyBackupCode(ctx context.Context, userID uuid.UUID, code, ip, userAgent string) error
}

// CustomerProvisioner creates the payment provider customer for a profile
// and links its ID, so webhook deliveries can be matched back to the user.
type CustomerProvisioner interface {
	EnsureCustomer(ctx context.Context, userID uuid.UUID) (string, error)
}

// ProfileView is the profile shape exposed to API clients.
type ProfileView struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	DisplayName      string     `json:"display_name"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

// AuthResult is returned from signup and completed logins.
type AuthResult struct {
	Profile *ProfileView    `json:"user"`
	Tokens  *auth.TokenPair `json:"tokens"`
}

// LoginResult is returned from Login. When the profile has two-factor
// enabled, Tokens is nil and PendingToken carries a short-lived token
// that only the verification endpoints accept.
type LoginResult struct {
	TwoFactorRequired bool            `json:"two_factor_required"`
	PendingToken      string          `json:"pending_token,omitempty"`
	Profile           *ProfileView    `json:"user,omitempty"`
	Tokens            *auth.TokenPair `json:"tokens,omitempty"`
}

// Service handles profile registration and authentication.
type Service struct {
	profiles    identity.ProfileRepository
	twoFactor   TwoFactorVerifier
	jwt         *auth.JWTService
	provisioner CustomerProvisioner
	logger      *zap.Logger
}

// NewService creates the identity service.
func NewService(
	profiles identity.ProfileRepository,
	twoFactor TwoFactorVerifier,
	jwtService *auth.JWTService,
	logger *zap.Logger,
) *Service {
	return &Service{
		profiles:  profiles,
		twoFactor: twoFactor,
		jwt:       jwtService,
		logger:    logger,
	}
}

// SetCustomerProvisioner enables payment customer provisioning on signup.
// Without one, profiles are created with no provider-side customer.
func (s *Service) SetCustomerProvisioner(p CustomerProvisioner) {
	s.provisioner = p
}

// Register creates a profile and issues a token pair.
func (s *Service) Register(ctx context.Context, email, displayName, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", shared.ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", shared.ErrInvalidInput)
	}

	if _, err := s.profiles.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", shared.ErrAlreadyExists)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := identity.NewProfile(email, displayName, string(hash))
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	// Best effort: a payment provider outage must not block signup. The
	// provisioner retries lazily on the next EnsureCustomer call.
	if s.provisioner != nil {
		if _, err := s.provisioner.EnsureCustomer(ctx, profile.ID); err != nil {
			s.logger.Warn("Failed to provision payment customer",
				zap.String("user_id", profile.ID.String()),
				zap.Error(err))
		}
	}

	tokens, err := s.jwt.GenerateTokenPair(auth.GenerateTokenInput{
		UserID: profile.ID,
		Email:  profile.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	s.logger.Info("Profile registered",
		zap.String("user_id", profile.ID.String()),
		zap.String("email", profile.Email))

	return &AuthResult{Profile: toProfileView(profile), Tokens: tokens}, nil
}

// Login authenticates with email and password. Profiles with two-factor
// enabled get a pending token instead of a full pair; the login finishes
// in CompleteTwoFactorLogin.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	profile, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", shared.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("Login failed", zap.String("email", email))
		return nil, fmt.Errorf("%w: invalid credentials", shared.ErrUnauthorized)
	}

	if profile.TwoFactorEnabled {
		pending, err := s.jwt.GenerateTokenPair(auth.GenerateTokenInput{
			UserID:           profile.ID,
			Email:            profile.Email,
			TwoFactorPending: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to issue pending token: %w", err)
		}
		return &LoginResult{
			TwoFactorRequired: true,
			PendingToken:      pending.AccessToken,
		}, nil
	}

	return s.completeLogin(ctx, profile)
}

// CompleteTwoFactorLogin finishes a pending login by verifying a TOTP or
// backup code and issuing the full token pair.
func (s *Service) CompleteTwoFactorLogin(ctx context.Context, pendingToken, code string, useBackupCode bool, ip, userAgent string) (*LoginResult, error) {
	claims, err := s.jwt.ValidateAccessToken(pendingToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pending token", shared.ErrUnauthorized)
	}
	if !claims.TwoFactorPending {
		return nil, fmt.Errorf("%w: token is not pending verification", shared.ErrUnauthorized)
	}

	userID, err := claims.GetUserUUID()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pending token", shared.ErrUnauthorized)
	}

	if useBackupCode {
		err = s.twoFactor.VerifyBackupCode(ctx, userID, code, ip, userAgent)
	} else {
		err = s.twoFactor.VerifyCode(ctx, userID, code, ip, userAgent)
	}
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return s.completeLogin(ctx, profile)
}

// Refresh exchanges a refresh token for a new pair. The profile must
// still exist.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", shared.ErrUnauthorized)
	}

	userID, err := claims.GetUserUUID()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", shared.ErrUnauthorized)
	}

	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: profile no longer exists", shared.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	tokens, err := s.jwt.GenerateTokenPair(auth.GenerateTokenInput{
		UserID: profile.ID,
		Email:  profile.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return tokens, nil
}

// GetProfile returns the profile view for the given user.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileView, error) {
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return toProfileView(profile), nil
}

func (s *Service) completeLogin(ctx context.Context, profile *identity.Profile) (*LoginResult, error) {
	profile.RecordLogin(time.Now())
	if err := s.profiles.Update(ctx, profile); err != nil {
		s.logger.Warn("Failed to record login time",
			zap.String("user_id", profile.ID.String()),
			zap.Error(err))
	}

	tokens, err := s.jwt.GenerateTokenPair(auth.GenerateTokenInput{
		UserID: profile.ID,
		Email:  profile.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	s.logger.Info("Login succeeded", zap.String("user_id", profile.ID.String()))
	return &LoginResult{Profile: toProfileView(profile), Tokens: tokens}, nil
}

func toProfileView(p *identity.Profile) *ProfileView {
	return &ProfileView{
		ID:               p.ID,
		Email:            p.Email,
		DisplayName:      p.DisplayName,
		TwoFactorEnabled: p.TwoFactorEnabled,
		CreatedAt:        p.CreatedAt,
		LastLoginAt:      p.LastLoginAt,
	}
}
