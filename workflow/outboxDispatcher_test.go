package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	fail      error
	published []config.LedgerMessage
}

func (p *fakePublisher) PublishLedger(ctx context.Context, msg config.LedgerMessage) (string, error) {
	if p.fail != nil {
		return "", p.fail
	}
	p.published = append(p.published, msg)
	return fmt.Sprintf("msg-%d", len(p.published)), nil
}

func setupTestDB(t *testing.T) {
	t.Helper()
	cfg := config.Defaults()
	cfg.DBDriver = "sqlite"
	cfg.DBPath = filepath.Join(t.TempDir(), "shop.db")
	config.Set(cfg)

	db, err := config.OpenDatabase(cfg)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	config.SetDB(db)
	config.SetRedisClient(nil)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		config.SetDB(nil)
	})
}

func newTestDispatcher(publisher Publisher, now time.Time) *OutboxDispatcher {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	d := NewOutboxDispatcher(config.GetDB(), logger, publisher)
	d.now = func() time.Time { return now }
	return d
}

func loadEvent(t *testing.T, id int) models.LedgerEvent {
	t.Helper()
	var event models.LedgerEvent
	require.NoError(t, config.GetDB().First(&event, id).Error)
	return event
}

func TestDispatchOncePublishesPendingEvents(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Acme", OpeningBalance: decimal.NewFromInt(12)})
	require.NoError(t, err)

	publisher := &fakePublisher{}
	d := newTestDispatcher(publisher, time.Now().UTC())

	assert.Equal(t, 1, d.DispatchOnce(ctx))
	require.Len(t, publisher.published, 1)
	assert.Equal(t, vendor.ID, publisher.published[0].VendorId)
	assert.Equal(t, "VENDOR", publisher.published[0].ReferenceType)
	assert.Equal(t, "C", publisher.published[0].Action)
	assert.Equal(t, "12.0000", publisher.published[0].Balance)

	events, err := models.ListLedgerEvents(ctx, vendor.ID, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, models.OutboxPublishStatusSent, event.PublishStatus)
	require.NotNil(t, event.PubSubMessageId)
	assert.Equal(t, "msg-1", *event.PubSubMessageId)
	assert.Equal(t, 1, event.PublishAttempts)
	assert.Nil(t, event.LockedBy)

	// nothing left to send
	assert.Equal(t, 0, d.DispatchOnce(ctx))
}

func TestDispatchOnceRetriesWithBackoff(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Acme"})
	require.NoError(t, err)
	events, err := models.ListLedgerEvents(ctx, vendor.ID, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	eventID := events[0].ID

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	publisher := &fakePublisher{fail: errors.New("broker unavailable")}
	d := newTestDispatcher(publisher, now)

	assert.Equal(t, 0, d.DispatchOnce(ctx))
	failed := loadEvent(t, eventID)
	assert.Equal(t, models.OutboxPublishStatusFailed, failed.PublishStatus)
	assert.Equal(t, 1, failed.PublishAttempts)
	require.NotNil(t, failed.LastPublishError)
	assert.Equal(t, "broker unavailable", *failed.LastPublishError)
	require.NotNil(t, failed.NextAttemptAt)
	assert.True(t, failed.NextAttemptAt.Equal(now.Add(d.InitialBackoff)))

	// not due yet
	publisher.fail = nil
	assert.Equal(t, 0, d.DispatchOnce(ctx))
	assert.Empty(t, publisher.published)

	d.now = func() time.Time { return now.Add(d.InitialBackoff + time.Second) }
	assert.Equal(t, 1, d.DispatchOnce(ctx))
	sent := loadEvent(t, eventID)
	assert.Equal(t, models.OutboxPublishStatusSent, sent.PublishStatus)
	assert.Equal(t, 2, sent.PublishAttempts)
}

func TestDispatchOnceMovesExhaustedEventsToDead(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Acme"})
	require.NoError(t, err)
	events, err := models.ListLedgerEvents(ctx, vendor.ID, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)

	d := newTestDispatcher(&fakePublisher{fail: errors.New("rejected")}, time.Now().UTC())
	d.MaxAttempts = 1

	assert.Equal(t, 0, d.DispatchOnce(ctx))
	dead := loadEvent(t, events[0].ID)
	assert.Equal(t, models.OutboxPublishStatusDead, dead.PublishStatus)
	assert.Nil(t, dead.NextAttemptAt)
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: 5 * time.Second}
	assert.Equal(t, 5*time.Second, d.backoff(1))
	assert.Equal(t, 10*time.Second, d.backoff(2))
	assert.Equal(t, 40*time.Second, d.backoff(4))
	assert.Equal(t, 10*time.Minute, d.backoff(30))
}

func TestRunLedgerReconciliation(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	vendor, err := models.CreateVendor(ctx, &models.NewVendor{Name: "Acme", OpeningBalance: decimal.NewFromInt(3)})
	require.NoError(t, err)
	require.NoError(t, config.GetDB().Model(&models.Vendor{}).Where("id = ?", vendor.ID).UpdateColumn("balance", 0).Error)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	result, err := RunLedgerReconciliation(ctx, logger, true)
	require.NoError(t, err)
	require.Len(t, result.Drifts, 1)
	assert.Equal(t, 1, result.Repaired)

	repaired, err := models.GetVendor(ctx, vendor.ID)
	require.NoError(t, err)
	assert.True(t, repaired.Balance.Equal(decimal.NewFromInt(3)))
}
