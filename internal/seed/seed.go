// Package seed loads a catalog of items, stock options and shipping methods
// from YAML and writes it through the catalog store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/fjod/ordermanagement/internal/repository"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Catalog struct {
	ShippingMethods []ShippingMethod `yaml:"shipping_methods"`
	Items           []Item           `yaml:"items"`
}

type ShippingMethod struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type Item struct {
	ID       int64    `yaml:"id"`
	Name     string   `yaml:"name"`
	SellerID int64    `yaml:"seller_id"`
	Options  []Option `yaml:"options"`
}

type Option struct {
	ID    int64  `yaml:"id"`
	Label string `yaml:"label"`
	Price string `yaml:"price"`
	Stock int    `yaml:"stock"`
}

func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a catalog. Unknown keys are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	methods := map[int64]bool{}
	for _, m := range c.ShippingMethods {
		if m.ID <= 0 || m.Name == "" {
			return fmt.Errorf("shipping method %d: id and name are required", m.ID)
		}
		if methods[m.ID] {
			return fmt.Errorf("shipping method %d: duplicate id", m.ID)
		}
		methods[m.ID] = true
	}

	items := map[int64]bool{}
	options := map[int64]bool{}
	for _, it := range c.Items {
		if it.ID <= 0 || it.Name == "" || it.SellerID <= 0 {
			return fmt.Errorf("item %d: id, name and seller_id are required", it.ID)
		}
		if items[it.ID] {
			return fmt.Errorf("item %d: duplicate id", it.ID)
		}
		items[it.ID] = true

		for _, o := range it.Options {
			if o.ID <= 0 || o.Label == "" {
				return fmt.Errorf("item %d option %d: id and label are required", it.ID, o.ID)
			}
			if options[o.ID] {
				return fmt.Errorf("option %d: duplicate id", o.ID)
			}
			options[o.ID] = true
			price, err := decimal.NewFromString(o.Price)
			if err != nil {
				return fmt.Errorf("option %d: price %q: %w", o.ID, o.Price, err)
			}
			if price.IsNegative() {
				return fmt.Errorf("option %d: price must not be negative", o.ID)
			}
			if o.Stock < 0 {
				return fmt.Errorf("option %d: stock must not be negative", o.ID)
			}
		}
	}
	return nil
}

// Apply writes the catalog. Existing stock levels are left as they are, so
// applying the same file on every start is safe.
func Apply(ctx context.Context, store repository.CatalogStore, c *Catalog) error {
	for _, m := range c.ShippingMethods {
		if err := store.UpsertShippingMethod(ctx, domain.ShippingMethod{ID: m.ID, Name: m.Name}); err != nil {
			return fmt.Errorf("seed shipping method %d: %w", m.ID, err)
		}
	}

	optionCount := 0
	for _, it := range c.Items {
		if err := store.UpsertItem(ctx, domain.Item{ID: it.ID, Name: it.Name, SellerID: it.SellerID}); err != nil {
			return fmt.Errorf("seed item %d: %w", it.ID, err)
		}
		for _, o := range it.Options {
			opt := domain.StockOption{
				ID:        o.ID,
				ItemID:    it.ID,
				ItemName:  it.Name,
				Label:     o.Label,
				Price:     decimal.RequireFromString(o.Price),
				Available: o.Stock,
				SellerID:  it.SellerID,
			}
			if err := store.UpsertStockOption(ctx, opt); err != nil {
				return fmt.Errorf("seed option %d: %w", o.ID, err)
			}
			optionCount++
		}
	}

	slog.InfoContext(ctx, "catalog seeded",
		"shipping_methods", len(c.ShippingMethods), "items", len(c.Items), "options", optionCount)
	return nil
}
