package brains

import "github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"

// Template describes one ready-to-run experiment: a control and a
// challenger, both human-readable. The observed metric is whatever the
// stage feeding samples chooses (margin for PRICE/SOURCING, CTR for the
// merchandising types).
type Template struct {
	Name     string
	VariantA string
	VariantB string
}

// templateCatalog is the fixed menu of experiments per type. Proposal
// rotates through a type's templates in order, so re-running a type
// tries the next idea rather than repeating the last one.
var templateCatalog = map[domain.ExperimentType][]Template{
	domain.ExperimentPrice: {
		{
			Name:     "premium vs standard pricing",
			VariantA: "standard markup (1.0x strategy multiplier)",
			VariantB: "premium markup (1.15x strategy multiplier)",
		},
		{
			Name:     "charm pricing endings",
			VariantA: "round dollar price points",
			VariantB: ".99 price endings",
		},
	},
	domain.ExperimentTitle: {
		{
			Name:     "region tag in title",
			VariantA: "title without region tag",
			VariantB: "title with [GLOBAL]/[EU]/[NA] region tag",
		},
		{
			Name:     "delivery speed in title",
			VariantA: "plain product title",
			VariantB: "title with 'Instant Delivery' suffix",
		},
	},
	domain.ExperimentThumbnail: {
		{
			Name:     "branded vs plain thumbnail",
			VariantA: "plain cover art thumbnail",
			VariantB: "cover art with store badge overlay",
		},
	},
	domain.ExperimentCopy: {
		{
			Name:     "short vs detailed description",
			VariantA: "two-line description",
			VariantB: "full template with redemption steps",
		},
	},
	domain.ExperimentSourcing: {
		{
			Name:     "single vs multi-source acquisition",
			VariantA: "buy from the single cheapest source",
			VariantB: "split buys across two cheapest sources",
		},
	},
	domain.ExperimentDelivery: {
		{
			Name:     "message vs email delivery",
			VariantA: "deliver via marketplace message",
			VariantB: "deliver via templated email",
		},
	},
}

// templateFor picks the catalog entry for a type, rotating by how many
// experiments of that type have already run.
func templateFor(t domain.ExperimentType, priorRuns int) (Template, bool) {
	list := templateCatalog[t]
	if len(list) == 0 {
		return Template{}, false
	}
	return list[priorRuns%len(list)], true
}
