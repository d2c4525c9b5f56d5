package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/saaskit/backend/internal/domain/identity"
	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/infrastructure/persistence/models"
)

func setupProfileTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.ProfileModel{}, &models.TwoFactorLogModel{})
	require.NoError(t, err)

	return db
}

func TestGormProfileRepository_CreateAndFind(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewGormProfileRepository(db)
	ctx := context.Background()

	profile := identity.NewProfile("Alice@Example.com", "Alice", "hash")
	require.NoError(t, repo.Create(ctx, profile))

	t.Run("finds by ID", func(t *testing.T) {
		found, err := repo.FindByID(ctx, profile.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice@Example.com", found.Email)
	})

	t.Run("finds by email case-insensitively", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, profile.ID, found.ID)
	})

	t.Run("empty email is not found", func(t *testing.T) {
		_, err := repo.FindByEmail(ctx, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown ID is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormProfileRepository_FindByStripeCustomerID(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewGormProfileRepository(db)
	ctx := context.Background()

	profile := identity.NewProfile("bob@example.com", "Bob", "hash")
	profile.SetStripeCustomerID("cus_bob")
	require.NoError(t, repo.Create(ctx, profile))

	found, err := repo.FindByStripeCustomerID(ctx, "cus_bob")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, found.ID)

	_, err = repo.FindByStripeCustomerID(ctx, "cus_missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.FindByStripeCustomerID(ctx, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormProfileRepository_TwoFactorRoundTrip(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewGormProfileRepository(db)
	ctx := context.Background()

	profile := identity.NewProfile("carol@example.com", "Carol", "hash")
	require.NoError(t, repo.Create(ctx, profile))

	hashes := []string{"h1", "h2", "h3"}
	profile.EnableTwoFactor("JBSWY3DPEHPK3PXP", hashes)
	require.NoError(t, repo.Update(ctx, profile))

	found, err := repo.FindByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.True(t, found.TwoFactorEnabled)
	assert.Equal(t, identity.TwoFactorMethodTOTP, found.TwoFactorMethod)
	assert.Equal(t, hashes, found.BackupCodeHashes)

	// Consuming a backup code persists the shrunken set.
	require.True(t, found.ConsumeBackupCode("h2"))
	require.NoError(t, repo.Update(ctx, found))

	again, err := repo.FindByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h3"}, again.BackupCodeHashes)

	// Disabling clears everything.
	again.DisableTwoFactor()
	require.NoError(t, repo.Update(ctx, again))

	final, err := repo.FindByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.False(t, final.TwoFactorEnabled)
	assert.Empty(t, final.BackupCodeHashes)
	assert.Empty(t, final.TwoFactorSecret)
}

func TestGormProfileRepository_Delete(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewGormProfileRepository(db)
	ctx := context.Background()

	profile := identity.NewProfile("dave@example.com", "Dave", "hash")
	require.NoError(t, repo.Create(ctx, profile))

	require.NoError(t, repo.Delete(ctx, profile.ID))
	_, err := repo.FindByID(ctx, profile.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, profile.ID), shared.ErrNotFound)
}

func TestGormTwoFactorLogRepository(t *testing.T) {
	db := setupProfileTestDB(t)
	repo := NewGormTwoFactorLogRepository(db)
	ctx := context.Background()

	profileID := uuid.New()
	actions := []identity.TwoFactorAction{
		identity.TwoFactorActionSetup,
		identity.TwoFactorActionEnabled,
		identity.TwoFactorActionVerifySuccess,
	}
	for _, action := range actions {
		log := identity.NewTwoFactorLog(profileID, action, "192.0.2.1", "test-agent")
		require.NoError(t, repo.Create(ctx, log))
	}

	logs, err := repo.ListByProfile(ctx, profileID, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
	for _, log := range logs {
		assert.Equal(t, profileID, log.UserID)
	}

	limited, err := repo.ListByProfile(ctx, profileID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	other, err := repo.ListByProfile(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
