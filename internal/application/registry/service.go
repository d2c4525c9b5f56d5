// Package registry issues and redeems time-limited artifact download
// tokens gated on an entitled subscription.
package registry

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/domain/billing"
	"github.com/saaskit/backend/internal/domain/registry"
	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/infrastructure/cache"
	"github.com/saaskit/backend/internal/infrastructure/storage"
)

const (
	tokenKeyPrefix = "download:token:"
	tokenBytes     = 32
	defaultTag     = "latest"

	// Presigned URLs are short-lived regardless of the token lifetime.
	downloadURLTTL = 15 * time.Minute
)

// Config holds registry service settings.
type Config struct {
	BaseURL  string
	TokenTTL time.Duration
}

// TokenGrant is returned when a download token is issued.
type TokenGrant struct {
	Token       string    `json:"token"`
	Artifact    string    `json:"artifact"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Artifact describes an image available to entitled subscribers.
type Artifact struct {
	Name        string    `json:"name"`
	Tag         string    `json:"tag"`
	RegistryURL string    `json:"registry_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service issues download tokens, redeems them against object storage and
// keeps the download audit trail.
type Service struct {
	subscriptions billing.SubscriptionRepository
	logs          registry.DownloadLogRepository
	cache         cache.Provider
	objects       storage.ObjectStorage
	config        Config
	logger        *zap.Logger
}

// NewService creates the registry service.
func NewService(
	subscriptions billing.SubscriptionRepository,
	logs registry.DownloadLogRepository,
	cacheProvider cache.Provider,
	objects storage.ObjectStorage,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{
		subscriptions: subscriptions,
		logs:          logs,
		cache:         cacheProvider,
		objects:       objects,
		config:        cfg,
		logger:        logger,
	}
}

// IssueToken grants a download token for the artifact. The caller must
// hold an active or trialing subscription.
func (s *Service) IssueToken(ctx context.Context, userID uuid.UUID, name, tag, ip, userAgent string) (*TokenGrant, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: artifact name is required", shared.ErrInvalidInput)
	}
	if tag == "" {
		tag = defaultTag
	}
	artifact := name + ":" + tag

	if err := s.checkEntitlement(ctx, userID); err != nil {
		s.record(ctx, registry.NewDownloadLog(userID, "", artifact, registry.DownloadActionDenied, ip, userAgent))
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	payload := registry.DownloadToken{
		Token:     token,
		UserID:    userID,
		Artifact:  artifact,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.TokenTTL),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token payload: %w", err)
	}
	if err := s.cache.Set(ctx, tokenKeyPrefix+token, string(data), s.config.TokenTTL); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	s.record(ctx, registry.NewDownloadLog(userID, token, artifact, registry.DownloadActionTokenIssued, ip, userAgent))
	s.logger.Info("Download token issued",
		zap.String("user_id", userID.String()),
		zap.String("artifact", artifact))

	return &TokenGrant{
		Token:       token,
		Artifact:    artifact,
		DownloadURL: s.config.BaseURL + "/" + artifact,
		ExpiresAt:   payload.ExpiresAt,
	}, nil
}

// VerifyToken resolves a token to its payload. Unknown and expired tokens
// both come back as shared.ErrNotFound; expired entries are purged.
func (s *Service) VerifyToken(ctx context.Context, token string) (*registry.DownloadToken, error) {
	raw, err := s.cache.Get(ctx, tokenKeyPrefix+token)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: download token", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	var payload registry.DownloadToken
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode token payload: %w", err)
	}

	if payload.Expired(time.Now()) {
		if err := s.cache.Delete(ctx, tokenKeyPrefix+token); err != nil {
			s.logger.Warn("Failed to purge expired token", zap.Error(err))
		}
		return nil, fmt.Errorf("%w: download token", shared.ErrNotFound)
	}
	return &payload, nil
}

// Redeem exchanges a valid token for a presigned object storage URL and
// records the pull.
func (s *Service) Redeem(ctx context.Context, token, ip, userAgent string) (string, error) {
	payload, err := s.VerifyToken(ctx, token)
	if err != nil {
		return "", err
	}

	url, _, err := s.objects.GenerateDownloadURL(ctx, artifactStorageKey(payload.Artifact), downloadURLTTL)
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}

	s.record(ctx, registry.NewDownloadLog(payload.UserID, token, payload.Artifact, registry.DownloadActionPull, ip, userAgent))
	s.logger.Info("Artifact pulled",
		zap.String("user_id", payload.UserID.String()),
		zap.String("artifact", payload.Artifact))
	return url, nil
}

// ListArtifacts returns the catalog visible to the user. Users without an
// entitled subscription see an empty list.
func (s *Service) ListArtifacts(ctx context.Context, userID uuid.UUID) ([]Artifact, error) {
	if err := s.checkEntitlement(ctx, userID); err != nil {
		if errors.Is(err, shared.ErrSubscriptionRequired) {
			return []Artifact{}, nil
		}
		return nil, err
	}
	return []Artifact{
		{
			Name:        "saas-app",
			Tag:         defaultTag,
			RegistryURL: s.config.BaseURL,
			CreatedAt:   time.Now(),
		},
	}, nil
}

// History returns the user's most recent download log entries.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]*registry.DownloadLog, error) {
	return s.logs.ListByUser(ctx, userID, limit)
}

func (s *Service) checkEntitlement(ctx context.Context, userID uuid.UUID) error {
	_, err := s.subscriptions.FindEntitledByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Download access denied", zap.String("user_id", userID.String()))
			return fmt.Errorf("%w: active subscription required", shared.ErrSubscriptionRequired)
		}
		return fmt.Errorf("failed to check subscription: %w", err)
	}
	return nil
}

// record writes an audit row. Logging failures never block the download
// path.
func (s *Service) record(ctx context.Context, log *registry.DownloadLog) {
	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Error("Failed to write download log",
			zap.String("user_id", log.UserID.String()),
			zap.String("action", string(log.Action)),
			zap.Error(err))
	}
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func artifactStorageKey(artifact string) string {
	return "artifacts/" + artifact
}
