package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureVendorLocked(t *testing.T) {
	assert.NoError(t, ensureVendorLocked([]int{3, 7}, 7))
	assert.ErrorIs(t, ensureVendorLocked([]int{3}, 7), errVendorMoved)
	assert.NoError(t, ensureVendorsLocked([]int{3, 7}, []int{7, 3}))
	assert.NoError(t, ensureVendorsLocked(nil, nil))
	assert.ErrorIs(t, ensureVendorsLocked([]int{3}, []int{3, 9}), errVendorMoved)
}

func TestWithVendorRecheckRetriesMovedRecords(t *testing.T) {
	attempts := 0
	err := withVendorRecheck(func() error {
		attempts++
		if attempts < vendorLockAttempts {
			return errVendorMoved
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, vendorLockAttempts, attempts)

	attempts = 0
	err = withVendorRecheck(func() error {
		attempts++
		return errVendorMoved
	})
	assert.ErrorIs(t, err, errVendorMoved)
	assert.Equal(t, vendorLockAttempts, attempts)

	attempts = 0
	boom := errors.New("boom")
	err = withVendorRecheck(func() error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}
