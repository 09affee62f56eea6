package domain

// TransactionStatus is the lifecycle state of a sale.
type TransactionStatus string

const (
	TransactionPaid       TransactionStatus = "PAID"
	TransactionDelivered  TransactionStatus = "DELIVERED"
	TransactionRefunded   TransactionStatus = "REFUNDED"
	TransactionDisputed   TransactionStatus = "DISPUTED"
	TransactionChargeback TransactionStatus = "CHARGEBACK"
)

// Terminal reports whether the status admits no further transitions.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionRefunded || s == TransactionChargeback
}

// Transaction represents a completed sale awaiting or past delivery.
// Created externally when a marketplace reports a sale.
// Corresponds to transactions table in PostgreSQL.
type Transaction struct {
	TransactionID string // PRIMARY KEY, uuid
	InventoryID   string
	ListingID     string
	Marketplace   Marketplace

	SalePrice float64
	Fees      float64
	Net       float64

	Status TransactionStatus

	SoldAt      int64 // ms
	DeliveredAt int64 // ms, 0 until delivered

	// Reconciliation metadata written by Collector.
	PaymentRef   string
	ReconciledAt int64 // ms, 0 until reconciled
	CreatedAt    int64
}
