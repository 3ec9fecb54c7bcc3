package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const dashboardCacheSet = "dashboard:keys"

// runLedgerTransaction serializes the mutation per vendor and runs fn in one transaction.
// Dashboard cache entries are dropped once the transaction has committed.
func runLedgerTransaction(ctx context.Context, moduleName string, functionName string, vendorIds []int, fn func(tx *gorm.DB) error) error {
	release, err := utils.VendorLock(ctx, moduleName, functionName, vendorIds...)
	if err != nil {
		return err
	}
	defer release()

	if err := config.GetDB().WithContext(ctx).Transaction(fn); err != nil {
		return err
	}
	clearDashboardCache(ctx)
	return nil
}

const vendorLockAttempts = 3

// errVendorMoved means the record changed vendor between reading it and taking the vendor lock.
var errVendorMoved = errors.New("record moved to another vendor while waiting for lock")

// withVendorRecheck reruns attempt while it fails with errVendorMoved.
func withVendorRecheck(attempt func() error) error {
	var err error
	for i := 0; i < vendorLockAttempts; i++ {
		if err = attempt(); !errors.Is(err, errVendorMoved) {
			return err
		}
	}
	return err
}

func ensureVendorLocked(lockedVendorIds []int, vendorId int) error {
	for _, id := range lockedVendorIds {
		if id == vendorId {
			return nil
		}
	}
	return errVendorMoved
}

func ensureVendorsLocked(lockedVendorIds []int, vendorIds []int) error {
	for _, vendorId := range vendorIds {
		if err := ensureVendorLocked(lockedVendorIds, vendorId); err != nil {
			return err
		}
	}
	return nil
}

// runTransaction is runLedgerTransaction for writes that never touch a vendor ledger.
func runTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := config.GetDB().WithContext(ctx).Transaction(fn); err != nil {
		return err
	}
	clearDashboardCache(ctx)
	return nil
}

func clearDashboardCache(ctx context.Context) {
	if err := utils.ClearCacheSet(ctx, dashboardCacheSet); err != nil {
		config.LogError(config.GetLogger(), "base.go", "clearDashboardCache", "clear dashboard cache", nil, err)
	}
}

// hookDB returns a clean session on the hook's connection, so follow-up queries
// don't inherit the statement being executed.
func hookDB(tx *gorm.DB) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true, Context: tx.Statement.Context})
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// filter column by calendar dates, both bounds inclusive
func applyDateRange(dbCtx *gorm.DB, column string, startDate *time.Time, endDate *time.Time) *gorm.DB {
	if startDate != nil && !startDate.IsZero() {
		dbCtx = dbCtx.Where(column+" >= ?", utils.DateOnly(*startDate))
	}
	if endDate != nil && !endDate.IsZero() {
		dbCtx = dbCtx.Where(column+" < ?", utils.DateOnly(*endDate).AddDate(0, 0, 1))
	}
	return dbCtx
}

// sum a decimal column in Go so no rounding happens in the database
func sumDecimalColumn(dbCtx *gorm.DB, model interface{}, column string, condition string, values ...interface{}) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := dbCtx.Model(model).Where(condition, values...).Pluck(column, &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total, nil
}

func sumIntColumn(dbCtx *gorm.DB, model interface{}, column string, condition string, values ...interface{}) (int, error) {
	var total int
	err := dbCtx.Model(model).
		Select("COALESCE(SUM("+column+"), 0)").
		Where(condition, values...).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func lineTotal(quantity int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}
