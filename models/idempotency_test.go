package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyKeyLifecycle(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	record, replay, err := models.BeginIdempotentRequest(ctx, "createSale", "key-1")
	require.NoError(t, err)
	assert.False(t, replay)

	_, _, err = models.BeginIdempotentRequest(ctx, "createSale", "key-1")
	assert.True(t, errors.Is(err, utils.ErrorValidation))

	// same key under another operation is independent
	_, replay, err = models.BeginIdempotentRequest(ctx, "createPayment", "key-1")
	require.NoError(t, err)
	assert.False(t, replay)

	require.NoError(t, models.MarkIdempotencySucceeded(ctx, record, 17))
	stored, replay, err := models.BeginIdempotentRequest(ctx, "createSale", "key-1")
	require.NoError(t, err)
	assert.True(t, replay)
	require.NotNil(t, stored.ResourceId)
	assert.Equal(t, 17, *stored.ResourceId)
}

func TestIdempotencyKeyRetryAfterFailure(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	record, _, err := models.BeginIdempotentRequest(ctx, "createPurchase", "key-2")
	require.NoError(t, err)
	require.NoError(t, models.MarkIdempotencyFailed(ctx, record, errors.New("vendor 9 not found")))

	retried, replay, err := models.BeginIdempotentRequest(ctx, "createPurchase", "key-2")
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, record.ID, retried.ID)
	assert.Equal(t, models.IdempotencyStatusStarted, retried.Status)
}

func TestIdempotencyKeyStaleStartedIsReclaimed(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	record, _, err := models.BeginIdempotentRequest(ctx, "createSale", "key-3")
	require.NoError(t, err)

	// the process that claimed the key died without marking it
	old := time.Now().UTC().Add(-2 * models.IdempotencyStaleAfter)
	require.NoError(t, config.GetDB().Model(&models.IdempotencyKey{}).
		Where("id = ?", record.ID).UpdateColumn("updated_at", old).Error)

	reclaimed, replay, err := models.BeginIdempotentRequest(ctx, "createSale", "key-3")
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, record.ID, reclaimed.ID)

	// the new claim is fresh again
	_, _, err = models.BeginIdempotentRequest(ctx, "createSale", "key-3")
	assert.True(t, errors.Is(err, utils.ErrorValidation))
}

func TestIdempotencyKeyLength(t *testing.T) {
	setupTestDB(t)
	_, _, err := models.BeginIdempotentRequest(context.Background(), "createSale", "")
	assert.True(t, errors.Is(err, utils.ErrorValidation))
}
