package billing

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bizpulse/internal/types"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Catalog is the YAML document describing the plan catalog.
type Catalog struct {
	Plans []CatalogPlan `yaml:"plans"`
}

// CatalogPlan is one plan of a Catalog. Active defaults to true.
type CatalogPlan struct {
	Name         string           `yaml:"name"`
	DisplayName  string           `yaml:"displayName"`
	Description  string           `yaml:"description"`
	PriceMonthly float64          `yaml:"priceMonthly"`
	PriceYearly  float64          `yaml:"priceYearly"`
	Discount     *CatalogDiscount `yaml:"discount"`
	Features     []string         `yaml:"features"`
	Active       *bool            `yaml:"active"`
}

// CatalogDiscount is a plan promotion. EndsAt accepts YYYY-MM-DD or RFC 3339.
type CatalogDiscount struct {
	Percent float64 `yaml:"percent"`
	Code    string  `yaml:"code"`
	EndsAt  string  `yaml:"endsAt"`
}

// DefaultCatalog returns the built-in free, pro and business plans.
func DefaultCatalog() ([]*types.SubscriptionPlan, error) {
	return ParseCatalog(bytes.NewReader(defaultCatalog))
}

// ParseCatalog decodes a YAML catalog into plans ready for upsert. Plan ids
// are derived from the lower-cased name.
func ParseCatalog(r io.Reader) ([]*types.SubscriptionPlan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog is empty")
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(c.Plans) == 0 {
		return nil, errors.New("catalog has no plans")
	}

	seen := make(map[string]bool, len(c.Plans))
	plans := make([]*types.SubscriptionPlan, 0, len(c.Plans))
	for i, cp := range c.Plans {
		p, err := cp.toPlan()
		if err != nil {
			return nil, fmt.Errorf("plan %d: %w", i+1, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("plan %d: duplicate name %q", i+1, p.Name)
		}
		seen[p.Name] = true
		plans = append(plans, p)
	}
	return plans, nil
}

func (cp CatalogPlan) toPlan() (*types.SubscriptionPlan, error) {
	name := strings.ToLower(strings.TrimSpace(cp.Name))
	if name == "" {
		return nil, errors.New("name is required")
	}
	if cp.PriceMonthly < 0 || cp.PriceYearly < 0 {
		return nil, fmt.Errorf("%s: prices must not be negative", name)
	}

	features := cp.Features
	if features == nil {
		features = []string{}
	}
	rawFeatures, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("%s: encode features: %w", name, err)
	}

	display := cp.DisplayName
	if display == "" {
		display = strings.ToUpper(name[:1]) + name[1:]
	}

	p := &types.SubscriptionPlan{
		ID:           "plan_" + name,
		Name:         name,
		DisplayName:  display,
		Description:  cp.Description,
		PriceMonthly: Round2(cp.PriceMonthly),
		PriceYearly:  Round2(cp.PriceYearly),
		Features:     rawFeatures,
		IsActive:     cp.Active == nil || *cp.Active,
	}

	if d := cp.Discount; d != nil && d.Percent > 0 {
		if d.Percent > 100 {
			return nil, fmt.Errorf("%s: discount percent must be between 0 and 100", name)
		}
		p.DiscountActive = true
		p.DiscountPercent = d.Percent
		p.DiscountCode = strings.TrimSpace(d.Code)
		if d.EndsAt != "" {
			ends, err := parseCatalogDate(d.EndsAt)
			if err != nil {
				return nil, fmt.Errorf("%s: discount endsAt: %w", name, err)
			}
			p.DiscountEndsAt = &ends
		}
	}
	return p, nil
}

func parseCatalogDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}
