package domain

// Marketplace identifies a resale venue.
type Marketplace string

const (
	MarketplaceG2G      Marketplace = "G2G"
	MarketplaceKinguin  Marketplace = "KINGUIN"
	MarketplaceEbay     Marketplace = "EBAY"
	MarketplaceGameflip Marketplace = "GAMEFLIP"
	MarketplaceGodaddy  Marketplace = "GODADDY"
	MarketplaceFlippa   Marketplace = "FLIPPA"
)

// AllMarketplaces lists every resale venue in a stable order.
var AllMarketplaces = []Marketplace{
	MarketplaceG2G,
	MarketplaceKinguin,
	MarketplaceEbay,
	MarketplaceGameflip,
	MarketplaceGodaddy,
	MarketplaceFlippa,
}

// SupplySource identifies a venue the engine buys from.
type SupplySource string

const (
	SourceG2A            SupplySource = "G2A"
	SourceKinguin        SupplySource = "KINGUIN"
	SourceCDKeys         SupplySource = "CDKEYS"
	SourceFanatical      SupplySource = "FANATICAL"
	SourceGreenManGaming SupplySource = "GREENMANGAMING"
	SourceExpiredDomains SupplySource = "EXPIREDDOMAINS"
)

// AllSupplySources lists every supply source in a stable order.
var AllSupplySources = []SupplySource{
	SourceG2A,
	SourceKinguin,
	SourceCDKeys,
	SourceFanatical,
	SourceGreenManGaming,
	SourceExpiredDomains,
}
