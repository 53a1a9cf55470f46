package service

import (
	"context"

	"calagent/internal/models"
	"calagent/internal/repository"
)

type SyncLogService struct {
	subs     repository.SubscriptionRepo
	syncRuns repository.SyncRunRepo
}

func NewSyncLogService(subs repository.SubscriptionRepo, syncRuns repository.SyncRunRepo) *SyncLogService {
	return &SyncLogService{subs: subs, syncRuns: syncRuns}
}

var _ SyncLog = (*SyncLogService)(nil)

// Recent lists the latest sync runs for a subscription the user owns.
func (s *SyncLogService) Recent(ctx context.Context, userID int, subscriptionID string, limit int) ([]models.SyncRun, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.UserID != userID {
		return nil, ErrNotFound
	}
	return s.syncRuns.ListBySubscription(ctx, subscriptionID, limit)
}
