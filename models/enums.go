package models

import (
	"encoding/json"
	"errors"
)

type LedgerReferenceType string

const (
	LedgerReferenceTypeVendor   LedgerReferenceType = "VENDOR"
	LedgerReferenceTypePurchase LedgerReferenceType = "PURCHASE"
	LedgerReferenceTypePayment  LedgerReferenceType = "PAYMENT"
)

func (t LedgerReferenceType) IsValid() bool {
	switch t {
	case LedgerReferenceTypeVendor, LedgerReferenceTypePurchase, LedgerReferenceTypePayment:
		return true
	}
	return false
}

type LedgerAction string

const (
	LedgerActionCreate LedgerAction = "C"
	LedgerActionUpdate LedgerAction = "U"
	LedgerActionDelete LedgerAction = "D"
)

// convert input to enum type
func (a *LedgerAction) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("ledger action must be string")
	}
	switch LedgerAction(str) {
	case LedgerActionCreate, LedgerActionUpdate, LedgerActionDelete:
		*a = LedgerAction(str)
	default:
		return errors.New("invalid ledger action")
	}
	return nil
}
