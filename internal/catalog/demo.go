package catalog

import (
	_ "embed"
	"fmt"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoYAML []byte

type demoFile struct {
	Categories []struct {
		ID   int64  `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"categories"`
	Products []struct {
		ID          int64  `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Price       string `yaml:"price"`
		Specs       string `yaml:"specs"`
		CategoryID  int64  `yaml:"category_id"`
		Stock       int    `yaml:"stock"`
	} `yaml:"products"`
}

// DemoData is the placeholder catalog shown in OFFLINE_DEMO mode
type DemoData struct {
	Products   []models.Product
	Categories []models.Category
}

// ParseDemo decodes a demo catalog document
func ParseDemo(raw []byte) (*DemoData, error) {
	var f demoFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse demo catalog: %w", err)
	}

	out := &DemoData{}
	for _, c := range f.Categories {
		out.Categories = append(out.Categories, models.Category{ID: c.ID, Name: c.Name})
	}
	for _, p := range f.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("demo product %d: invalid price %q: %w", p.ID, p.Price, err)
		}
		product := models.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Specs:       p.Specs,
			Price:       price,
			CategoryID:  p.CategoryID,
			Stock:       p.Stock,
		}
		if err := product.Validate(); err != nil {
			return nil, fmt.Errorf("demo catalog: %w", err)
		}
		out.Products = append(out.Products, product)
	}
	return out, nil
}

// Demo returns the embedded demo catalog
func Demo() *DemoData {
	d, err := ParseDemo(demoYAML)
	if err != nil {
		panic(err)
	}
	return d
}
