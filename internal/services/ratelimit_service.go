package services

import (
	"context"
	"fmt"
	"time"

	"reservation-market/internal/models"
	"reservation-market/internal/repository"

	"github.com/google/uuid"
)

// Default bid-placement policy: 5 attempts per 5-minute window
const (
	DefaultMaxAttempts   = 5
	DefaultWindowSeconds = 300
)

// RateLimitService bounds the frequency of sensitive write actions per user
// within a rolling window. It tracks attempts as rate limit records and
// ignores expired ones.
type RateLimitService struct {
	repo          *repository.Repository
	maxAttempts   int
	windowSeconds int
}

func NewRateLimitService(repo *repository.Repository, maxAttempts, windowSeconds int) *RateLimitService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}
	return &RateLimitService{
		repo:          repo,
		maxAttempts:   maxAttempts,
		windowSeconds: windowSeconds,
	}
}

// WithRepo returns the same policy bound to another repository handle,
// typically one inside a caller's transaction. Check and record must share
// the transaction of the action they gate.
func (s *RateLimitService) WithRepo(repo *repository.Repository) *RateLimitService {
	return &RateLimitService{
		repo:          repo,
		maxAttempts:   s.maxAttempts,
		windowSeconds: s.windowSeconds,
	}
}

// CheckAllowed purges expired records for the (user, action) pair and reports
// whether another attempt is admitted. When blocked, retryAfter carries the
// seconds until the oldest counted record expires.
func (s *RateLimitService) CheckAllowed(
	ctx context.Context,
	userID uint,
	actionType string,
) (allowed bool, retryAfter int64, err error) {
	now := time.Now()

	// Taken before counting so two concurrent attempts by the same user
	// cannot both read the window one short of the ceiling.
	if err := s.repo.LockRateLimitWindow(ctx, userID, actionType); err != nil {
		return false, 0, fmt.Errorf("failed to lock rate limit window: %w", err)
	}

	if err := s.repo.PurgeExpiredRateLimitRecords(ctx, userID, actionType, now); err != nil {
		return false, 0, fmt.Errorf("failed to purge rate limit records: %w", err)
	}

	count, err := s.repo.CountActiveRateLimitRecords(ctx, userID, actionType, now)
	if err != nil {
		return false, 0, fmt.Errorf("failed to count rate limit records: %w", err)
	}

	if count < int64(s.maxAttempts) {
		return true, 0, nil
	}

	oldest, err := s.repo.GetOldestActiveRateLimitRecord(ctx, userID, actionType, now)
	if err != nil {
		return false, 0, fmt.Errorf("failed to get oldest rate limit record: %w", err)
	}

	retryAfter = int64(1)
	if oldest != nil {
		remaining := time.Until(oldest.ExpiresAt)
		if secs := int64(remaining.Seconds()); secs > 1 {
			retryAfter = secs
		}
	}

	return false, retryAfter, nil
}

// RecordAttempt counts one attempt against the window. It does not check the
// limit; callers check first and only record admitted attempts.
func (s *RateLimitService) RecordAttempt(ctx context.Context, userID uint, actionType string) error {
	record := &models.RateLimitRecord{
		ID:         uuid.New(),
		UserID:     userID,
		ActionType: actionType,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(time.Duration(s.windowSeconds) * time.Second),
	}

	if err := s.repo.CreateRateLimitRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to record rate limit attempt: %w", err)
	}
	return nil
}
