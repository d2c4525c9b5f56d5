// Package twofactor implements TOTP enrollment and verification with
// single-use backup codes.
package twofactor

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/identity"
	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/infrastructure/cache"
)

const (
	setupKeyPrefix = "2fa:setup:"
	totpPeriod     = 30
	totpDigits     = otp.DigitsSix

	// Codes one step either side of the current window are accepted, to
	// absorb clock drift between client and server.
	totpSkew = 1

	qrCodeSize = 256
)

// Config holds two-factor service settings.
type Config struct {
	Issuer          string
	SetupTTL        time.Duration
	BackupCodeCount int
}

// SetupResponse is returned when enrollment starts. The plaintext backup
// codes appear here once and are never recoverable afterwards.
type SetupResponse struct {
	Secret        string   `json:"secret"`
	OTPAuthURL    string   `json:"otpauth_url"`
	QRCodeDataURL string   `json:"qr_code_url"`
	BackupCodes   []string `json:"backup_codes"`
}

// Status describes a profile's two-factor state.
type Status struct {
	Enabled              bool   `json:"enabled"`
	Method               string `json:"method,omitempty"`
	BackupCodesRemaining int    `json:"backup_codes_remaining"`
}

// pendingSetup is the cached state between Setup and Enable.
type pendingSetup struct {
	Secret      string    `json:"secret"`
	BackupCodes []string  `json:"backup_codes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service manages TOTP enrollment, verification and backup codes.
type Service struct {
	profiles identity.ProfileRepository
	logs     identity.TwoFactorLogRepository
	cache    cache.Provider
	config   Config
	logger   *zap.Logger
}

// NewService creates the two-factor service.
func NewService(
	profiles identity.ProfileRepository,
	logs identity.TwoFactorLogRepository,
	cacheProvider cache.Provider,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.Issuer == "" {
		cfg.Issuer = "SaaS Platform"
	}
	if cfg.SetupTTL <= 0 {
		cfg.SetupTTL = 15 * time.Minute
	}
	if cfg.BackupCodeCount <= 0 {
		cfg.BackupCodeCount = 8
	}
	return &Service{
		profiles: profiles,
		logs:     logs,
		cache:    cacheProvider,
		config:   cfg,
		logger:   logger,
	}
}

// Setup starts TOTP enrollment: generates a secret, the provisioning QR
// and fresh backup codes, and caches them until Enable confirms.
func (s *Service) Setup(ctx context.Context, userID uuid.UUID, email, ip, userAgent string) (*SetupResponse, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}

	backupCodes, err := generateBackupCodes(s.config.BackupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}

	state := pendingSetup{
		Secret:      key.Secret(),
		BackupCodes: backupCodes,
		CreatedAt:   time.Now(),
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode setup state: %w", err)
	}
	if err := s.cache.Set(ctx, setupKeyPrefix+userID.String(), string(data), s.config.SetupTTL); err != nil {
		return nil, fmt.Errorf("failed to cache setup state: %w", err)
	}

	s.audit(ctx, userID, identity.TwoFactorActionSetup, ip, userAgent)

	return &SetupResponse{
		Secret:        key.Secret(),
		OTPAuthURL:    key.URL(),
		QRCodeDataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		BackupCodes:   backupCodes,
	}, nil
}

// Enable confirms enrollment with a code from the authenticator app.
// On success the secret and hashed backup codes are persisted on the
// profile and the pending setup is discarded.
func (s *Service) Enable(ctx context.Context, userID uuid.UUID, code, ip, userAgent string) error {
	raw, err := s.cache.Get(ctx, setupKeyPrefix+userID.String())
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return fmt.Errorf("%w: no two-factor setup in progress", shared.ErrInvalidState)
		}
		return fmt.Errorf("failed to load setup state: %w", err)
	}

	var state pendingSetup
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return fmt.Errorf("failed to decode setup state: %w", err)
	}

	if !s.validateCode(code, state.Secret) {
		return fmt.Errorf("%w: invalid verification code", shared.ErrInvalidCode)
	}

	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	hashes := make([]string, 0, len(state.BackupCodes))
	for _, bc := range state.BackupCodes {
		hashes = append(hashes, hashBackupCode(bc))
	}

	profile.EnableTwoFactor(state.Secret, hashes)
	if err := s.profiles.Update(ctx, profile); err != nil {
		return fmt.Errorf("failed to persist two-factor state: %w", err)
	}

	if err := s.cache.Delete(ctx, setupKeyPrefix+userID.String()); err != nil {
		s.logger.Warn("Failed to clear two-factor setup state",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}

	s.audit(ctx, userID, identity.TwoFactorActionEnabled, ip, userAgent)
	s.logger.Info("Two-factor enabled", zap.String("user_id", userID.String()))
	return nil
}

// VerifyCode checks a TOTP code against the enrolled secret.
func (s *Service) VerifyCode(ctx context.Context, userID uuid.UUID, code, ip, userAgent string) error {
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if !profile.TwoFactorEnabled || profile.TwoFactorSecret == "" {
		return fmt.Errorf("%w: two-factor is not enabled", shared.ErrInvalidState)
	}

	if !s.validateCode(code, profile.TwoFactorSecret) {
		s.audit(ctx, userID, identity.TwoFactorActionVerifyFailure, ip, userAgent)
		return fmt.Errorf("%w: invalid verification code", shared.ErrInvalidCode)
	}

	s.audit(ctx, userID, identity.TwoFactorActionVerifySuccess, ip, userAgent)
	return nil
}

// VerifyBackupCode checks a backup code and consumes it. Each code works
// exactly once.
func (s *Service) VerifyBackupCode(ctx context.Context, userID uuid.UUID, code, ip, userAgent string) error {
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if !profile.TwoFactorEnabled {
		return fmt.Errorf("%w: two-factor is not enabled", shared.ErrInvalidState)
	}

	if !profile.ConsumeBackupCode(hashBackupCode(code)) {
		s.audit(ctx, userID, identity.TwoFactorActionVerifyFailure, ip, userAgent)
		return fmt.Errorf("%w: invalid backup code", shared.ErrInvalidCode)
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		return fmt.Errorf("failed to consume backup code: %w", err)
	}

	s.audit(ctx, userID, identity.TwoFactorActionBackupCodeUsed, ip, userAgent)
	s.logger.Info("Backup code used",
		zap.String("user_id", userID.String()),
		zap.Int("remaining", len(profile.BackupCodeHashes)))
	return nil
}

// Disable turns off two-factor and wipes the secret and backup codes.
func (s *Service) Disable(ctx context.Context, userID uuid.UUID, ip, userAgent string) error {
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	profile.DisableTwoFactor()
	if err := s.profiles.Update(ctx, profile); err != nil {
		return fmt.Errorf("failed to persist two-factor state: %w", err)
	}

	s.audit(ctx, userID, identity.TwoFactorActionDisabled, ip, userAgent)
	s.logger.Info("Two-factor disabled", zap.String("user_id", userID.String()))
	return nil
}

// GetStatus returns the profile's two-factor state.
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID) (*Status, error) {
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &Status{
		Enabled:              profile.TwoFactorEnabled,
		Method:               string(profile.TwoFactorMethod),
		BackupCodesRemaining: len(profile.BackupCodeHashes),
	}, nil
}

func (s *Service) validateCode(code, secret string) bool {
	valid, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

func (s *Service) audit(ctx context.Context, userID uuid.UUID, action identity.TwoFactorAction, ip, userAgent string) {
	log := identity.NewTwoFactorLog(userID, action, ip, userAgent)
	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Error("Failed to write two-factor audit log",
			zap.String("user_id", userID.String()),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// generateBackupCodes produces codes shaped XXXX-XXXX-XXXX from random
// hex groups.
func generateBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		groups := make([]string, 0, 3)
		for j := 0; j < 3; j++ {
			b := make([]byte, 2)
			if _, err := rand.Read(b); err != nil {
				return nil, err
			}
			groups = append(groups, strings.ToUpper(hex.EncodeToString(b)))
		}
		codes = append(codes, strings.Join(groups, "-"))
	}
	return codes, nil
}

func hashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
