package domain

// Supplier is a seller on a supply source, referenced by inventory
// provenance. Corresponds to suppliers table in PostgreSQL.
type Supplier struct {
	SupplierID  string // PRIMARY KEY, uuid
	Name        string
	Source      SupplySource
	Rating      float64 // 0-5
	Country     string
	Blacklisted bool
	CreatedAt   int64 // ms
}
