package repository

import (
	"context"
	"fmt"
	"time"

	"reservation-market/internal/models"

	"gorm.io/gorm"
)

// LockRateLimitWindow serializes concurrent gated attempts for one
// (user, action) pair for the rest of the transaction. The per-listing CAS
// does not cover two attempts by the same user on different listings, so the
// purge/count/insert sequence needs its own serialization point. On Postgres
// this is a transaction-scoped advisory lock; sqlite's single writer already
// serializes transactions.
func (r *Repository) LockRateLimitWindow(ctx context.Context, userID uint, actionType string) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", fmt.Sprintf("%d:%s", userID, actionType)).
		Error
}

// CreateRateLimitRecord creates a rate limit record for one gated attempt
func (r *Repository) CreateRateLimitRecord(ctx context.Context, record *models.RateLimitRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// PurgeExpiredRateLimitRecords deletes expired records for a (user, action)
// pair
func (r *Repository) PurgeExpiredRateLimitRecords(
	ctx context.Context,
	userID uint,
	actionType string,
	now time.Time,
) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND action_type = ? AND expires_at <= ?", userID, actionType, now).
		Delete(&models.RateLimitRecord{}).Error
}

// CountActiveRateLimitRecords counts non-expired records for a (user, action)
// pair
func (r *Repository) CountActiveRateLimitRecords(
	ctx context.Context,
	userID uint,
	actionType string,
	now time.Time,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RateLimitRecord{}).
		Where("user_id = ? AND action_type = ? AND expires_at > ?", userID, actionType, now).
		Count(&count).Error
	return count, err
}

// GetOldestActiveRateLimitRecord retrieves the active record that expires
// first, or nil when none are active. Its expiry drives the retry countdown.
func (r *Repository) GetOldestActiveRateLimitRecord(
	ctx context.Context,
	userID uint,
	actionType string,
	now time.Time,
) (*models.RateLimitRecord, error) {
	var record models.RateLimitRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND action_type = ? AND expires_at > ?", userID, actionType, now).
		Order("expires_at ASC").
		First(&record).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
