package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType enumerates supported inventory movements.
type TransactionType string

const (
	TransactionTypePurchase           TransactionType = "PURCHASE"
	TransactionTypeSale               TransactionType = "SALE"
	TransactionTypeSaleReturn         TransactionType = "SALE_RETURN"
	TransactionTypePurchaseReturn     TransactionType = "PURCHASE_RETURN"
	TransactionTypeAdjustment         TransactionType = "ADJUSTMENT"
	TransactionTypeTransfer           TransactionType = "TRANSFER"
	TransactionTypeLoss               TransactionType = "LOSS"
	TransactionTypeReservation        TransactionType = "RESERVATION"
	TransactionTypeReservationRelease TransactionType = "RESERVATION_RELEASE"
	TransactionTypeFulfillment        TransactionType = "FULFILLMENT"
)

// Valid reports whether t is a known movement type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeSale, TransactionTypeSaleReturn,
		TransactionTypePurchaseReturn, TransactionTypeAdjustment, TransactionTypeTransfer,
		TransactionTypeLoss, TransactionTypeReservation, TransactionTypeReservationRelease,
		TransactionTypeFulfillment:
		return true
	}
	return false
}

// Signed reports whether the type carries a signed quantity. Only
// adjustments do: positive for overage, negative for shortage.
func (t TransactionType) Signed() bool {
	return t == TransactionTypeAdjustment
}

// Transaction models a recorded stock movement. Once linked to a posted
// journal entry it is immutable.
type Transaction struct {
	ID             int64
	Type           TransactionType
	ProductID      int64
	SKU            string
	ProductName    string
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	TotalCost      decimal.Decimal
	FromLocation   string
	ToLocation     string
	OrderID        uuid.UUID
	DocumentNumber string
	Notes          string
	CreatedBy      int64
	CreatedAt      time.Time
	JournalEntryID int64
}

// StockLevel summarises on-hand and reserved stock per product and
// location. Quantities are decimals so fractional units (weight, volume)
// post exactly.
type StockLevel struct {
	ProductID    int64
	Location     string
	OnHand       decimal.Decimal
	Reserved     decimal.Decimal
	ReorderPoint decimal.Decimal
	UpdatedAt    time.Time
}

// RecordInput carries the parameters of recordTransaction. Caller-supplied
// product identity is a documented precondition; the recorder validates
// shape, not existence.
type RecordInput struct {
	Type           TransactionType `validate:"required"`
	ProductID      int64           `validate:"required,gt=0"`
	SKU            string          `validate:"required"`
	ProductName    string          `validate:"required"`
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	ToLocation     string `validate:"required"`
	FromLocation   string
	OrderID        uuid.UUID
	DocumentNumber string
	Notes          string
	CreatedBy      int64 `validate:"required,gt=0"`
	IdempotencyKey string
}

// PeriodFilter bounds the transaction history read path.
type PeriodFilter struct {
	From  time.Time
	To    time.Time
	Types []TransactionType
	Limit int
}

var (
	// ErrInvalidQuantity indicates a zero quantity, or a negative quantity
	// on a type that does not carry sign.
	ErrInvalidQuantity = errors.New("inventory: invalid quantity")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrInvalidLocation indicates a missing location.
	ErrInvalidLocation = errors.New("inventory: location required")
	// ErrNegativeStock triggered when a movement would drive on-hand below zero.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
	// ErrInsufficientReserved triggered when releasing or fulfilling more
	// than is reserved.
	ErrInsufficientReserved = errors.New("inventory: insufficient reserved stock")
	// ErrTransactionNotFound indicates a missing transaction row.
	ErrTransactionNotFound = errors.New("inventory: transaction not found")
)
