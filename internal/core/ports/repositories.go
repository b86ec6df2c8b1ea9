package ports

import (
	"context"

	"webcaster/internal/core/domain"
)

// StreamCache holds recent results of the advisory stream listing so the
// control API does not hammer the signaling server. Lookups that miss or
// error behave as a miss; listing stays advisory end to end.
type StreamCache interface {
	Get(ctx context.Context, application string) ([]domain.StreamItem, bool)
	Set(ctx context.Context, application string, items []domain.StreamItem)
}
