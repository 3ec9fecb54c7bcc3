package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/utils"
	"gorm.io/gorm/clause"
)

type IdempotencyStatus string

// IdempotencyStaleAfter is how long a STARTED key blocks retries before another
// request may take it over.
const IdempotencyStaleAfter = 5 * time.Minute

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyKey records a client supplied Idempotency-Key for a create request.
// Unique constraint: (operation, request_key).
type IdempotencyKey struct {
	ID         int               `gorm:"primary_key" json:"id"`
	Operation  string            `gorm:"size:100;not null;index:uniq_idem,unique" json:"operation"`
	RequestKey string            `gorm:"size:255;not null;index:uniq_idem,unique" json:"request_key"`
	Status     IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	ResourceId *int              `json:"resource_id"`
	LastError  *string           `gorm:"type:text" json:"last_error"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeginIdempotentRequest claims key for operation.
// replay is true when an earlier request with the same key already succeeded;
// the caller should answer with the stored ResourceId instead of creating again.
func BeginIdempotentRequest(ctx context.Context, operation string, key string) (record *IdempotencyKey, replay bool, err error) {
	if key == "" || len(key) > 255 {
		return nil, false, utils.NewValidationError("idempotency_key", "key", "must be 1-255 characters")
	}
	db := config.GetDB().WithContext(ctx)

	record = &IdempotencyKey{Operation: operation, RequestKey: key, Status: IdempotencyStatusStarted}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return record, false, nil
	}

	var existing IdempotencyKey
	if err := db.Where("operation = ? AND request_key = ?", operation, key).Take(&existing).Error; err != nil {
		return nil, false, err
	}
	if existing.Status == IdempotencyStatusSucceeded {
		return &existing, true, nil
	}

	// a failed attempt may be retried with the same key, and a started one
	// is taken over once it is older than IdempotencyStaleAfter
	now := time.Now().UTC()
	res = db.Model(&IdempotencyKey{}).
		Where("id = ?", existing.ID).
		Where("status = ? OR (status = ? AND updated_at <= ?)",
			IdempotencyStatusFailed, IdempotencyStatusStarted, now.Add(-IdempotencyStaleAfter)).
		Updates(map[string]interface{}{"status": IdempotencyStatusStarted, "last_error": nil, "updated_at": now})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, utils.NewValidationError("idempotency_key", "key", "request with this key is still in progress")
	}
	existing.Status = IdempotencyStatusStarted
	existing.LastError = nil
	existing.UpdatedAt = now
	return &existing, false, nil
}

func MarkIdempotencySucceeded(ctx context.Context, record *IdempotencyKey, resourceId int) error {
	return config.GetDB().WithContext(ctx).Model(&IdempotencyKey{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{"status": IdempotencyStatusSucceeded, "resource_id": resourceId, "last_error": nil}).Error
}

func MarkIdempotencyFailed(ctx context.Context, record *IdempotencyKey, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return config.GetDB().WithContext(ctx).Model(&IdempotencyKey{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{"status": IdempotencyStatusFailed, "last_error": &msg}).Error
}
