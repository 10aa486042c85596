// Package billing exposes the plan catalog shown on the pricing page.
// Checkout and subscription state belong to the billing provider.
package billing

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultPlans []byte

// Feature is an entitlement a product can grant
type Feature struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"` // boolean, metered
}

// Price is a recurring charge
type Price struct {
	Amount   float64 `yaml:"amount" json:"amount"`
	Currency string  `yaml:"currency" json:"currency"`
	Interval string  `yaml:"interval" json:"interval"` // month, year
}

// Product is a purchasable plan
type Product struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name" json:"name"`
	IsDefault  bool     `yaml:"is_default" json:"is_default"`
	Price      Price    `yaml:"price" json:"price"`
	FeatureIDs []string `yaml:"features" json:"features"`
}

// Catalog is the full set of features and products
type Catalog struct {
	Features []Feature `yaml:"features" json:"features"`
	Products []Product `yaml:"products" json:"products"`
}

// Default returns the catalog compiled into the binary
func Default() (*Catalog, error) {
	return Parse(defaultPlans)
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Product looks up a product by ID
func (c *Catalog) Product(id string) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (c *Catalog) validate() error {
	features := make(map[string]struct{}, len(c.Features))
	for _, f := range c.Features {
		if f.ID == "" {
			return fmt.Errorf("feature with empty id")
		}
		if _, dup := features[f.ID]; dup {
			return fmt.Errorf("duplicate feature %q", f.ID)
		}
		features[f.ID] = struct{}{}
	}

	products := make(map[string]struct{}, len(c.Products))
	for _, p := range c.Products {
		if p.ID == "" {
			return fmt.Errorf("product with empty id")
		}
		if _, dup := products[p.ID]; dup {
			return fmt.Errorf("duplicate product %q", p.ID)
		}
		products[p.ID] = struct{}{}

		if p.Price.Amount < 0 {
			return fmt.Errorf("product %q has negative price", p.ID)
		}
		for _, id := range p.FeatureIDs {
			if _, ok := features[id]; !ok {
				return fmt.Errorf("product %q references unknown feature %q", p.ID, id)
			}
		}
	}
	return nil
}
