package merchant

import (
	"strings"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// listingTemplate generates venue copy for one category. Placeholders
// are filled from the inventory item's structured display metadata; the
// SKU itself is opaque and never parsed.
type listingTemplate struct {
	title       string
	description string
}

var templates = map[domain.InventoryKind]listingTemplate{
	domain.KindKey: {
		title: "{title} - Instant Digital Delivery",
		description: "Genuine {brand} activation key for {title}.\n" +
			"Region: {region}. Delivered instantly after payment.\n" +
			"Key sourced from authorized distributors and verified before listing.",
	},
	domain.KindGiftCard: {
		title: "{title} Gift Card - Fast Email Delivery",
		description: "Unused {brand} gift card: {title}.\n" +
			"Region: {region}. Code delivered by message within minutes of payment.",
	},
	domain.KindAccount: {
		title: "{title} - Full Account Access",
		description: "Established account: {title}.\n" +
			"Full credentials and recovery details transferred after purchase.\n" +
			"Manual handover within 24 hours.",
	},
	domain.KindDomain: {
		title: "{title} - Premium Domain For Sale",
		description: "Domain name {title} available for immediate transfer.\n" +
			"Push to your registrar account or authorization-code transfer, your choice.",
	},
	domain.KindSubscription: {
		title: "{title} - Subscription Code",
		description: "Prepaid subscription: {title} ({brand}).\n" +
			"Region: {region}. Redemption code delivered after payment.",
	},
}

// RenderListing fills the category template from an inventory item,
// truncating to the venue's field limits.
func RenderListing(inv *domain.Inventory, maxTitle, maxDescription int) (title, description string) {
	tpl, ok := templates[inv.Kind]
	if !ok {
		tpl = listingTemplate{title: "{title}", description: "{title}"}
	}

	region := inv.Region
	if region == "" {
		region = "GLOBAL"
	}
	brand := inv.Brand
	if brand == "" {
		brand = "official"
	}

	r := strings.NewReplacer(
		"{title}", inv.Title,
		"{brand}", brand,
		"{region}", region,
	)

	title = truncate(r.Replace(tpl.title), maxTitle)
	description = truncate(r.Replace(tpl.description), maxDescription)
	return title, description
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
