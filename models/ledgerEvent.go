package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEvent is the outbox row written in the same transaction as every ledger change.
// Publishing happens after commit through the outbox dispatcher.
type LedgerEvent struct {
	ID               int                 `gorm:"primary_key;index:idx_ledger_dispatch,priority:3" json:"id"`
	VendorId         int                 `gorm:"index;not null" json:"vendor_id"`
	ReferenceType    LedgerReferenceType `gorm:"size:20;not null" json:"reference_type"`
	ReferenceId      int                 `gorm:"not null" json:"reference_id"`
	Action           LedgerAction        `gorm:"size:1;not null" json:"action"`
	Balance          decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"balance"`
	CorrelationId    string              `gorm:"size:64;index" json:"correlation_id"`
	PublishStatus    string              `gorm:"size:20;index;not null;default:'PENDING';index:idx_ledger_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time          `gorm:"index" json:"published_at"`
	PubSubMessageId  *string             `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int                 `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time          `gorm:"index;index:idx_ledger_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time          `gorm:"index" json:"locked_at"`
	LockedBy         *string             `gorm:"size:100" json:"locked_by"`
	LastPublishError *string             `gorm:"type:text" json:"last_publish_error"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e LedgerEvent) ToMessage() config.LedgerMessage {
	return config.LedgerMessage{
		EventId:       e.ID,
		VendorId:      e.VendorId,
		ReferenceType: string(e.ReferenceType),
		ReferenceId:   e.ReferenceId,
		Action:        string(e.Action),
		Balance:       e.Balance.StringFixed(4),
		CorrelationId: e.CorrelationId,
		OccurredAt:    e.CreatedAt,
	}
}

// applyLedgerChange is the single handler for "ledger changed for vendor X".
// It recomputes the cached balance from source records and records the outbox event.
func applyLedgerChange(tx *gorm.DB, vendorId int, refType LedgerReferenceType, refId int, action LedgerAction) error {
	db := hookDB(tx)
	balance, err := recomputeVendorBalance(db, vendorId)
	if err != nil {
		return err
	}
	return recordLedgerEvent(db, vendorId, refType, refId, action, balance)
}

func recordLedgerEvent(db *gorm.DB, vendorId int, refType LedgerReferenceType, refId int, action LedgerAction, balance decimal.Decimal) error {
	event := LedgerEvent{
		VendorId:      vendorId,
		ReferenceType: refType,
		ReferenceId:   refId,
		Action:        action,
		Balance:       balance,
		CorrelationId: correlationIdFromContextOrNew(db.Statement.Context),
		PublishStatus: OutboxPublishStatusPending,
	}
	return db.Create(&event).Error
}

func ListLedgerEvents(ctx context.Context, vendorId int, publishStatus *string) ([]*LedgerEvent, error) {
	db := config.GetDB()
	var results []*LedgerEvent

	dbCtx := db.WithContext(ctx)
	if vendorId > 0 {
		dbCtx = dbCtx.Where("vendor_id = ?", vendorId)
	}
	if publishStatus != nil && *publishStatus != "" {
		dbCtx = dbCtx.Where("publish_status = ?", *publishStatus)
	}
	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
