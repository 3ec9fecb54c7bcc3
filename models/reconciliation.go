package models

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ReconciliationResult struct {
	CorrelationId   string                          `json:"correlation_id"`
	CheckedVendors  int                             `json:"checked_vendors"`
	CheckedProducts int                             `json:"checked_products"`
	Drifts          []*utils.InconsistentStateError `json:"drifts"`
	Repaired        int                             `json:"repaired"`
}

// RunReconciliationChecks compares every cached vendor balance and product stock with the value
// derived from source records. Drifts are logged, stored as reconciliation reports and,
// when repair is set, fixed.
func RunReconciliationChecks(ctx context.Context, repair bool) (*ReconciliationResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cid := correlationIdFromContextOrNew(ctx)
	ctx = utils.SetCorrelationIdInContext(ctx, cid)
	result := &ReconciliationResult{CorrelationId: cid}

	if err := reconcileVendorBalances(ctx, repair, result); err != nil {
		return result, err
	}
	if err := reconcileProductStock(ctx, repair, result); err != nil {
		return result, err
	}

	config.GetLogger().WithFields(logrus.Fields{
		"field":            "ReconciliationChecks",
		"correlation_id":   cid,
		"checked_vendors":  result.CheckedVendors,
		"checked_products": result.CheckedProducts,
		"drifts":           len(result.Drifts),
		"repaired":         result.Repaired,
	}).Info("ledger reconciliation completed")
	return result, nil
}

func ReconcileVendorBalances(ctx context.Context, repair bool) (*ReconciliationResult, error) {
	result := &ReconciliationResult{CorrelationId: correlationIdFromContextOrNew(ctx)}
	err := reconcileVendorBalances(utils.SetCorrelationIdInContext(ctx, result.CorrelationId), repair, result)
	return result, err
}

func ReconcileProductStock(ctx context.Context, repair bool) (*ReconciliationResult, error) {
	result := &ReconciliationResult{CorrelationId: correlationIdFromContextOrNew(ctx)}
	err := reconcileProductStock(utils.SetCorrelationIdInContext(ctx, result.CorrelationId), repair, result)
	return result, err
}

func reconcileVendorBalances(ctx context.Context, repair bool, result *ReconciliationResult) error {
	db := config.GetDB().WithContext(ctx)
	var vendors []*Vendor
	if err := db.Order("id").Find(&vendors).Error; err != nil {
		return err
	}

	for _, vendor := range vendors {
		result.CheckedVendors++
		expected, err := pendingTotal(db, vendor.ID, vendor.OpeningBalance)
		if err != nil {
			return err
		}
		if expected.Equal(vendor.Balance) {
			continue
		}

		drift := &utils.InconsistentStateError{
			Entity:   "vendor",
			ID:       vendor.ID,
			Field:    "balance",
			Expected: expected.StringFixed(4),
			Actual:   vendor.Balance.StringFixed(4),
		}
		repaired := false
		if repair {
			if _, err := UpdateVendorBalance(ctx, vendor.ID); err != nil {
				return err
			}
			repaired = true
			result.Repaired++
		}
		if err := recordDrift(db, result, ReconciliationCheckVendorBalance, drift, repaired); err != nil {
			return err
		}
	}
	return nil
}

func reconcileProductStock(ctx context.Context, repair bool, result *ReconciliationResult) error {
	db := config.GetDB().WithContext(ctx)
	var products []*Product
	if err := db.Order("id").Find(&products).Error; err != nil {
		return err
	}

	for _, product := range products {
		result.CheckedProducts++
		purchased, err := sumIntColumn(db, &Purchase{}, "quantity", "product_id = ?", product.ID)
		if err != nil {
			return err
		}
		sold, err := sumIntColumn(db, &Sale{}, "quantity", "product_id = ?", product.ID)
		if err != nil {
			return err
		}
		expected := product.OpeningStock + purchased - sold
		if expected == product.Stock {
			continue
		}

		drift := &utils.InconsistentStateError{
			Entity:   "product",
			ID:       product.ID,
			Field:    "stock",
			Expected: strconv.Itoa(expected),
			Actual:   strconv.Itoa(product.Stock),
		}
		repaired := false
		if repair {
			err := runTransaction(ctx, func(tx *gorm.DB) error {
				_, err := resumProductStock(tx, product.ID)
				return err
			})
			if err != nil {
				return err
			}
			repaired = true
			result.Repaired++
		}
		if err := recordDrift(db, result, ReconciliationCheckProductStock, drift, repaired); err != nil {
			return err
		}
	}
	return nil
}

func recordDrift(db *gorm.DB, result *ReconciliationResult, checkType string, drift *utils.InconsistentStateError, repaired bool) error {
	result.Drifts = append(result.Drifts, drift)
	config.LogWarning(config.GetLogger(), "reconciliation.go", "recordDrift", checkType, map[string]interface{}{
		"entity_id": drift.ID,
		"expected":  drift.Expected,
		"actual":    drift.Actual,
		"repaired":  repaired,
	}, drift.Error())

	return db.Create(&ReconciliationReport{
		CheckType:     checkType,
		EntityType:    drift.Entity,
		EntityId:      drift.ID,
		Expected:      drift.Expected,
		Actual:        drift.Actual,
		Details:       fmt.Sprintf("%s %s is %s, derived %s", drift.Entity, drift.Field, drift.Actual, drift.Expected),
		Repaired:      repaired,
		CorrelationId: result.CorrelationId,
	}).Error
}
