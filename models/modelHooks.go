package models

import (
	"fmt"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Every Purchase and Payment write raises a ledger change for the vendors it touches,
// so the cached balance cannot be left stale by any call site.

func (p *Purchase) AfterCreate(tx *gorm.DB) (err error) {
	if _, err := adjustProductStock(hookDB(tx), p.ProductId, p.Quantity); err != nil {
		return err
	}
	return applyLedgerChange(tx, p.VendorId, LedgerReferenceTypePurchase, p.ID, LedgerActionCreate)
}

func (p *Purchase) BeforeUpdate(tx *gorm.DB) (err error) {
	var stored Purchase
	if err := hookDB(tx).Select("id", "vendor_id", "product_id").First(&stored, p.ID).Error; err != nil {
		return err
	}
	p.previousVendorId = stored.VendorId
	p.previousProductId = stored.ProductId
	return nil
}

func (p *Purchase) AfterUpdate(tx *gorm.DB) (err error) {
	db := hookDB(tx)
	for _, productId := range utils.UniqueSlice([]int{p.previousProductId, p.ProductId}) {
		if productId == 0 {
			continue
		}
		if _, err := resumProductStock(db, productId); err != nil {
			return err
		}
	}
	for _, vendorId := range utils.UniqueSlice([]int{p.VendorId, p.previousVendorId}) {
		if vendorId == 0 {
			continue
		}
		if err := applyLedgerChange(tx, vendorId, LedgerReferenceTypePurchase, p.ID, LedgerActionUpdate); err != nil {
			return err
		}
	}
	return nil
}

func (p *Purchase) AfterDelete(tx *gorm.DB) (err error) {
	stock, err := adjustProductStock(hookDB(tx), p.ProductId, -p.Quantity)
	if err != nil {
		return err
	}
	if stock < 0 {
		config.LogWarning(config.GetLogger(), "modelHooks.go", "Purchase.AfterDelete", "stock below zero after purchase removal",
			map[string]int{"purchase_id": p.ID, "product_id": p.ProductId, "stock": stock}, "stock underflow")
	}
	return applyLedgerChange(tx, p.VendorId, LedgerReferenceTypePurchase, p.ID, LedgerActionDelete)
}

func (p *Payment) AfterCreate(tx *gorm.DB) (err error) {
	return applyLedgerChange(tx, p.VendorId, LedgerReferenceTypePayment, p.ID, LedgerActionCreate)
}

func (p *Payment) BeforeUpdate(tx *gorm.DB) (err error) {
	var stored Payment
	if err := hookDB(tx).Select("id", "vendor_id").First(&stored, p.ID).Error; err != nil {
		return err
	}
	p.previousVendorId = stored.VendorId
	return nil
}

func (p *Payment) AfterUpdate(tx *gorm.DB) (err error) {
	for _, vendorId := range utils.UniqueSlice([]int{p.VendorId, p.previousVendorId}) {
		if vendorId == 0 {
			continue
		}
		if err := applyLedgerChange(tx, vendorId, LedgerReferenceTypePayment, p.ID, LedgerActionUpdate); err != nil {
			return err
		}
	}
	return nil
}

func (p *Payment) AfterDelete(tx *gorm.DB) (err error) {
	return applyLedgerChange(tx, p.VendorId, LedgerReferenceTypePayment, p.ID, LedgerActionDelete)
}

func (s *Sale) AfterCreate(tx *gorm.DB) (err error) {
	stock, err := adjustProductStock(hookDB(tx), s.ProductId, -s.Quantity)
	if err != nil {
		return err
	}
	return checkStockUnderflow(s, stock)
}

func (s *Sale) BeforeUpdate(tx *gorm.DB) (err error) {
	var stored Sale
	if err := hookDB(tx).Select("id", "product_id").First(&stored, s.ID).Error; err != nil {
		return err
	}
	s.previousProductId = stored.ProductId
	return nil
}

func (s *Sale) AfterUpdate(tx *gorm.DB) (err error) {
	db := hookDB(tx)
	if s.previousProductId != 0 && s.previousProductId != s.ProductId {
		if _, err := resumProductStock(db, s.previousProductId); err != nil {
			return err
		}
	}
	stock, err := resumProductStock(db, s.ProductId)
	if err != nil {
		return err
	}
	return checkStockUnderflow(s, stock)
}

func (s *Sale) AfterDelete(tx *gorm.DB) (err error) {
	_, err = adjustProductStock(hookDB(tx), s.ProductId, s.Quantity)
	return err
}

// stock below zero is rejected or only logged, depending on REJECT_NEGATIVE_STOCK
func checkStockUnderflow(s *Sale, stock int) error {
	if stock >= 0 {
		return nil
	}
	if config.RejectNegativeStock() {
		return utils.NewValidationError("sale", "quantity", fmt.Sprintf("exceeds stock of product %d by %d", s.ProductId, -stock))
	}
	config.LogWarning(config.GetLogger(), "modelHooks.go", "checkStockUnderflow", "sale drives stock below zero",
		map[string]int{"sale_id": s.ID, "product_id": s.ProductId, "stock": stock}, "stock underflow")
	return nil
}

func (v *Vendor) AfterCreate(tx *gorm.DB) (err error) {
	return recordLedgerEvent(hookDB(tx), v.ID, LedgerReferenceTypeVendor, v.ID, LedgerActionCreate, v.Balance)
}

func (v *Vendor) AfterUpdate(tx *gorm.DB) (err error) {
	return applyLedgerChange(tx, v.ID, LedgerReferenceTypeVendor, v.ID, LedgerActionUpdate)
}

func (v *Vendor) AfterDelete(tx *gorm.DB) (err error) {
	return recordLedgerEvent(hookDB(tx), v.ID, LedgerReferenceTypeVendor, v.ID, LedgerActionDelete, decimal.Zero)
}
