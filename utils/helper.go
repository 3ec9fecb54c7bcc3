package utils

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/shop_backend/config"
	"github.com/ttacon/libphonenumber"
)

const vendorLockTTL = 30 * time.Second

// NormalizePhoneNumber validates phoneNumber for the region and returns it in E.164 form.
func NormalizePhoneNumber(phoneNumber, countryCode string) (string, error) {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

func NewFalse() *bool {
	b := false
	return &b
}

// DateOnly keeps the calendar date of t and drops the time of day (UTC midnight).
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Timestamp normalizes a point in time for storage.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func UniqueSlice[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

var localVendorLocks sync.Map

// VendorLock serializes ledger mutations per vendor. It uses redislock when redis is
// configured and an in-process mutex otherwise. Ids are locked in ascending order.
// The returned release func must be called once the transaction has finished.
func VendorLock(ctx context.Context, moduleName string, functionName string, vendorIds ...int) (func(), error) {
	ids := make([]int, 0, len(vendorIds))
	for _, id := range UniqueSlice(vendorIds) {
		if id > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	logger := config.GetLogger()
	locker := config.GetRedisLock()
	var releases []func()
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, id := range ids {
		if locker == nil {
			mu, _ := localVendorLocks.LoadOrStore(id, &sync.Mutex{})
			m := mu.(*sync.Mutex)
			m.Lock()
			releases = append(releases, m.Unlock)
			continue
		}

		lockKey := fmt.Sprintf("vendorLedger:%d", id)
		lock, err := locker.Obtain(ctx, lockKey, vendorLockTTL, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 200),
		})
		if errors.Is(err, redislock.ErrNotObtained) {
			config.LogError(logger, moduleName, functionName, "Could not obtain lock for vendor", id, err)
			releaseAll()
			return nil, fmt.Errorf("vendor %d is busy, try again", id)
		} else if err != nil {
			config.LogError(logger, moduleName, functionName, "Error obtaining lock for vendor", id, err)
			releaseAll()
			return nil, err
		}
		releases = append(releases, func() {
			_ = lock.Release(context.Background())
		})
	}
	return releaseAll, nil
}
