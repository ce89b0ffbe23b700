package models

// Prize is the reward label a scratch session reveals.
type Prize string

// CatalogEntry represents a single candidate prize in the promo catalog.
// A zero Weight counts as 1 so a plain list behaves as a uniform catalog.
type CatalogEntry struct {
	Label  string `json:"label" mapstructure:"label"`
	Weight int    `json:"weight" mapstructure:"weight"`
}

// DefaultCatalog is the offer list used when the configuration does not name one.
func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{Label: "Free Classic Bun"},
		{Label: "Extra Maska"},
		{Label: "Premium Drizzle"},
		{Label: "25% Off"},
		{Label: "BOGO Offer"},
		{Label: "Surprise Cookie"},
	}
}
