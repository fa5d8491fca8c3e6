package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product mirrors the upstream catalog shape. The JSON tags match the
// backend payload so cart snapshots round-trip without translation.
type Product struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"name"`
	Description         string          `json:"description,omitempty"`
	Price               decimal.Decimal `json:"price"`
	ImageURL            string          `json:"imageUrl,omitempty"`
	AdditionalImageURLs string          `json:"additionalImageUrls,omitempty"`
	Category            string          `json:"category"`
	Color               string          `json:"color,omitempty"`
	Sizes               string          `json:"sizes,omitempty"`
	Variants            []Variant       `json:"variants,omitempty"`
}

// Variant is a (size, stock, sku) triple belonging to a product.
type Variant struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
	SKU   string `json:"sku"`
}

// Available reports whether the variant can still be sold.
func (v Variant) Available() bool {
	return v.Stock > 0
}

// SizeOptions splits the comma-separated sizes descriptor into clean entries.
func (p Product) SizeOptions() []string {
	if strings.TrimSpace(p.Sizes) == "" {
		return nil
	}
	parts := strings.Split(p.Sizes, ",")
	options := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			options = append(options, trimmed)
		}
	}
	return options
}

// VariantForSize returns the variant matching size, if any.
func (p Product) VariantForSize(size string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Size == size {
			return v, true
		}
	}
	return Variant{}, false
}
