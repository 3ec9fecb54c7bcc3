package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVendorBalanceFollowsPurchasesAndPayments(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	vendor := newVendor(t, ctx, "Acme", "0")
	product := newProduct(t, ctx, "Rice", 0, "5", "8")

	purchase, autoPayment, err := models.CreatePurchase(ctx, &models.NewPurchase{
		VendorId:  vendor.ID,
		ProductId: product.ID,
		Quantity:  10,
		Price:     dec("5"),
	})
	require.NoError(t, err)
	assert.Nil(t, autoPayment)
	assert.True(t, purchase.TotalPrice.Equal(dec("50")))
	requireVendorBalance(t, ctx, vendor.ID, "50")
	requireStock(t, ctx, product.ID, 10)

	payment, err := models.CreatePayment(ctx, &models.NewPayment{VendorId: vendor.ID, Amount: dec("20")})
	require.NoError(t, err)
	requireVendorBalance(t, ctx, vendor.ID, "30")

	_, err = models.UpdatePayment(ctx, payment.ID, &models.NewPayment{VendorId: vendor.ID, Amount: dec("30")})
	require.NoError(t, err)
	requireVendorBalance(t, ctx, vendor.ID, "20")

	_, err = models.DeletePayment(ctx, payment.ID)
	require.NoError(t, err)
	requireVendorBalance(t, ctx, vendor.ID, "50")

	_, err = models.DeletePurchase(ctx, purchase.ID)
	require.NoError(t, err)
	requireVendorBalance(t, ctx, vendor.ID, "0")
	requireStock(t, ctx, product.ID, 0)
}

func TestVendorOpeningBalanceIsPartOfBalance(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	vendor := newVendor(t, ctx, "Acme", "15")
	requireVendorBalance(t, ctx, vendor.ID, "15")

	_, err := models.UpdateVendor(ctx, vendor.ID, &models.NewVendor{Name: "Acme Ltd", OpeningBalance: dec("40")})
	require.NoError(t, err)
	requireVendorBalance(t, ctx, vendor.ID, "40")

	pending, err := vendor.PendingTotal(ctx)
	require.NoError(t, err)
	// PendingTotal reads the opening balance held by the struct
	assert.True(t, pending.Equal(dec("15")))
}

func TestPurchaseAmountPaidCreatesAutoPayment(t *testing.T) {
	setupTestDB(t)
	ctx := utils.SetUserNameInContext(context.Background(), "cashier")

	vendor := newVendor(t, ctx, "Acme", "0")
	product := newProduct(t, ctx, "Oil", 0, "10", "12")

	purchase, autoPayment, err := models.CreatePurchase(ctx, &models.NewPurchase{
		VendorId:   vendor.ID,
		ProductId:  product.ID,
		Quantity:   10,
		Price:      dec("10"),
		AmountPaid: dec("50"),
	})
	require.NoError(t, err)
	require.NotNil(t, autoPayment)
	assert.True(t, autoPayment.AutoCreated)
	assert.True(t, autoPayment.Amount.Equal(dec("50")))
	require.NotNil(t, autoPayment.PurchaseId)
	assert.Equal(t, purchase.ID, *autoPayment.PurchaseId)
	assert.Equal(t, "cashier", autoPayment.RecordedBy)
	requireVendorBalance(t, ctx, vendor.ID, "50")

	// the auto-created payment belongs to the purchase
	_, err = models.DeletePayment(ctx, autoPayment.ID)
	require.ErrorIs(t, err, utils.ErrorValidation)
	_, err = models.UpdatePayment(ctx, autoPayment.ID, &models.NewPayment{VendorId: vendor.ID, Amount: dec("1")})
	require.ErrorIs(t, err, utils.ErrorValidation)

	_, updated, err := models.UpdatePurchase(ctx, purchase.ID, &models.NewPurchase{
		VendorId:   vendor.ID,
		ProductId:  product.ID,
		Quantity:   10,
		Price:      dec("10"),
		AmountPaid: dec("80"),
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, autoPayment.ID, updated.ID)
	requireVendorBalance(t, ctx, vendor.ID, "20")

	_, cleared, err := models.UpdatePurchase(ctx, purchase.ID, &models.NewPurchase{
		VendorId:  vendor.ID,
		ProductId: product.ID,
		Quantity:  10,
		Price:     dec("10"),
	})
	require.NoError(t, err)
	assert.Nil(t, cleared)
	requireVendorBalance(t, ctx, vendor.ID, "100")

	payments, err := models.ListPayments(ctx, &models.PaymentFilter{PurchaseId: &purchase.ID})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestPurchaseValidation(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	vendor := newVendor(t, ctx, "Acme", "0")
	product := newProduct(t, ctx, "Oil", 0, "10", "12")

	_, _, err := models.CreatePurchase(ctx, &models.NewPurchase{
		VendorId: vendor.ID, ProductId: product.ID, Quantity: 2, Price: dec("10"), AmountPaid: dec("21"),
	})
	var validationErr *utils.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "amount_paid", validationErr.Field)

	_, _, err = models.CreatePurchase(ctx, &models.NewPurchase{
		VendorId: vendor.ID, ProductId: product.ID, Quantity: 0, Price: dec("10"),
	})
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "quantity", validationErr.Field)

	_, _, err = models.CreatePurchase(ctx, &models.NewPurchase{
		VendorId: 999, ProductId: product.ID, Quantity: 1, Price: dec("10"),
	})
	var notFound *utils.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "vendor", notFound.Entity)

	requireVendorBalance(t, ctx, vendor.ID, "0")
	requireStock(t, ctx, product.ID, 0)
}

func TestPaymentValidation(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	acme := newVendor(t, ctx, "Acme", "0")
	other := newVendor(t, ctx, "Other", "0")
	product := newProduct(t, ctx, "Oil", 0, "10", "12")
	purchase, _, err := models.CreatePurchase(ctx, &models.NewPurchase{
		VendorId: acme.ID, ProductId: product.ID, Quantity: 1, Price: dec("10"),
	})
	require.NoError(t, err)

	_, err = models.CreatePayment(ctx, &models.NewPayment{VendorId: acme.ID, Amount: dec("0")})
	require.ErrorIs(t, err, utils.ErrorValidation)

	_, err = models.CreatePayment(ctx, &models.NewPayment{VendorId: other.ID, PurchaseId: &purchase.ID, Amount: dec("5")})
	var validationErr *utils.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "purchase_id", validationErr.Field)

	linked, err := models.CreatePayment(ctx, &models.NewPayment{VendorId: acme.ID, PurchaseId: &purchase.ID, Amount: dec("4"), Note: "  cash  "})
	require.NoError(t, err)
	assert.Equal(t, "cash", linked.Note)
	assert.False(t, linked.AutoCreated)
	requireVendorBalance(t, ctx, acme.ID, "6")
}

func TestPurchaseMovedToAnotherVendorTakesItsPayments(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	acme := newVendor(t, ctx, "Acme", "0")
	other := newVendor(t, ctx, "Other", "0")
	product := newProduct(t, ctx, "Oil", 0, "10", "12")

	purchase, _, err := models.CreatePurchase(ctx, &models.NewPurchase{
		VendorId: acme.ID, ProductId: product.ID, Quantity: 3, Price: dec("10"), AmountPaid: dec("10"),
	})
	require.NoError(t, err)
	manual, err := models.CreatePayment(ctx, &models.NewPayment{VendorId: acme.ID, PurchaseId: &purchase.ID, Amount: dec("5")})
	require.NoError(t, err)
	requireVendorBalance(t, ctx, acme.ID, "15")

	_, _, err = models.UpdatePurchase(ctx, purchase.ID, &models.NewPurchase{
		VendorId: other.ID, ProductId: product.ID, Quantity: 3, Price: dec("10"), AmountPaid: dec("10"),
	})
	require.NoError(t, err)

	requireVendorBalance(t, ctx, acme.ID, "0")
	requireVendorBalance(t, ctx, other.ID, "15")
	moved, err := models.GetPayment(ctx, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, moved.VendorId)
}

func TestPurchaseProductChangeMovesStock(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	vendor := newVendor(t, ctx, "Acme", "0")
	rice := newProduct(t, ctx, "Rice", 2, "1", "2")
	oil := newProduct(t, ctx, "Oil", 0, "1", "2")

	purchase, _, err := models.CreatePurchase(ctx, &models.NewPurchase{
		VendorId: vendor.ID, ProductId: rice.ID, Quantity: 5, Price: dec("1"),
	})
	require.NoError(t, err)
	requireStock(t, ctx, rice.ID, 7)

	_, _, err = models.UpdatePurchase(ctx, purchase.ID, &models.NewPurchase{
		VendorId: vendor.ID, ProductId: oil.ID, Quantity: 4, Price: dec("1"),
	})
	require.NoError(t, err)
	requireStock(t, ctx, rice.ID, 2)
	requireStock(t, ctx, oil.ID, 4)
	requireVendorBalance(t, ctx, vendor.ID, "4")
}

func TestLedgerEventsRecordedPerChange(t *testing.T) {
	setupTestDB(t)
	ctx := utils.SetCorrelationIdInContext(context.Background(), "cid-1")

	vendor := newVendor(t, ctx, "Acme", "0")
	product := newProduct(t, ctx, "Oil", 0, "10", "12")
	_, _, err := models.CreatePurchase(ctx, &models.NewPurchase{
		VendorId: vendor.ID, ProductId: product.ID, Quantity: 1, Price: dec("10"), AmountPaid: dec("4"),
	})
	require.NoError(t, err)

	events, err := models.ListLedgerEvents(ctx, vendor.ID, nil)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.LedgerReferenceTypeVendor, events[0].ReferenceType)
	assert.Equal(t, models.LedgerReferenceTypePurchase, events[1].ReferenceType)
	assert.True(t, events[1].Balance.Equal(dec("10")))
	assert.Equal(t, models.LedgerReferenceTypePayment, events[2].ReferenceType)
	assert.True(t, events[2].Balance.Equal(dec("6")))
	for _, event := range events {
		assert.Equal(t, models.OutboxPublishStatusPending, event.PublishStatus)
		assert.Equal(t, "cid-1", event.CorrelationId)
	}

	msg := events[2].ToMessage()
	assert.Equal(t, "PAYMENT", msg.ReferenceType)
	assert.Equal(t, "6.0000", msg.Balance)
}

func TestPurchaseDateRangeFilter(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	vendor := newVendor(t, ctx, "Acme", "0")
	product := newProduct(t, ctx, "Oil", 0, "10", "12")
	for _, day := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		date, _ := time.Parse("2006-01-02", day)
		_, _, err := models.CreatePurchase(ctx, &models.NewPurchase{
			VendorId: vendor.ID, ProductId: product.ID, Quantity: 1, Price: dec("1"), Date: &date,
		})
		require.NoError(t, err)
	}

	start, _ := time.Parse("2006-01-02", "2024-03-02")
	end, _ := time.Parse("2006-01-02", "2024-03-03")
	purchases, err := models.ListPurchases(ctx, &models.PurchaseFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, purchases, 2)
	assert.Equal(t, "2024-03-03", purchases[0].Date.Format("2006-01-02"))

	purchases, err = models.ListPurchases(ctx, &models.PurchaseFilter{EndDate: &start})
	require.NoError(t, err)
	assert.Len(t, purchases, 2)
}

func TestPaginatePurchases(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	vendor := newVendor(t, ctx, "Acme", "0")
	product := newProduct(t, ctx, "Oil", 0, "10", "12")
	for i := 0; i < 5; i++ {
		_, _, err := models.CreatePurchase(ctx, &models.NewPurchase{
			VendorId: vendor.ID, ProductId: product.ID, Quantity: 1, Price: dec("1"),
		})
		require.NoError(t, err)
	}

	first, err := models.PaginatePurchases(ctx, intPtr(2), nil, nil)
	require.NoError(t, err)
	require.Len(t, first.Edges, 2)
	assert.True(t, *first.PageInfo.HasNextPage)
	assert.Equal(t, 5, first.Edges[0].Node.ID)

	after := first.PageInfo.EndCursor
	second, err := models.PaginatePurchases(ctx, intPtr(10), &after, nil)
	require.NoError(t, err)
	require.Len(t, second.Edges, 3)
	assert.False(t, *second.PageInfo.HasNextPage)
	assert.Equal(t, 3, second.Edges[0].Node.ID)
}

func TestCreatePurchaseWritesOnceWithItsSideEffects(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	vendor := newVendor(t, ctx, "Acme", "0")
	product := newProduct(t, ctx, "Rice", 0, "5", "8")

	_, _, err := models.CreatePurchase(ctx, &models.NewPurchase{VendorId: vendor.ID, ProductId: product.ID, Quantity: 10, Price: dec("5")})
	require.NoError(t, err)

	purchases, err := models.ListPurchases(ctx, &models.PurchaseFilter{})
	require.NoError(t, err)
	assert.Len(t, purchases, 1)
	requireStock(t, ctx, product.ID, 10)
	requireVendorBalance(t, ctx, vendor.ID, "50")

	events, err := models.ListLedgerEvents(ctx, vendor.ID, nil)
	require.NoError(t, err)
	// vendor created, purchase created
	assert.Len(t, events, 2)
}
