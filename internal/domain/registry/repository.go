package registry

import (
	"context"

	"github.com/google/uuid"
)

// DownloadLogRepository persists download audit rows.
type DownloadLogRepository interface {
	Create(ctx context.Context, log *DownloadLog) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*DownloadLog, error)
}
