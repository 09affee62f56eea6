package domain

// DeliveryPolicy controls how a purchased item may be delivered.
type DeliveryPolicy string

const (
	DeliveryInstant DeliveryPolicy = "INSTANT"
	DeliveryEscrow  DeliveryPolicy = "ESCROW"
)

// InventoryStatus is the lifecycle state of an owned item.
type InventoryStatus string

const (
	InventoryAvailable   InventoryStatus = "AVAILABLE"
	InventoryReserved    InventoryStatus = "RESERVED"
	InventoryDelivered   InventoryStatus = "DELIVERED"
	InventoryInvalidated InventoryStatus = "INVALIDATED"
)

// Inventory represents a purchased digital good held for resale.
// Corresponds to inventory table in PostgreSQL.
type Inventory struct {
	InventoryID string // PRIMARY KEY, uuid
	CandidateID string // candidate this purchase originated from
	SKU         string
	Kind        InventoryKind
	Title       string
	Brand       string
	Region      string

	Cost       float64
	Source     SupplySource // provenance
	SupplierID string       // supplier record, empty if unknown

	Policy DeliveryPolicy
	Status InventoryStatus

	AcquiredAt  int64 // ms
	DeliveredAt int64 // ms, 0 until delivered
	ExpiresAt   int64 // ms, 0 if the good does not expire
	CreatedAt   int64
}
