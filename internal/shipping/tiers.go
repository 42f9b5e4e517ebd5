package shipping

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidTierTable = errors.New("invalid shipping tier table")

// Tier is one distance band. A distance d falls into the first tier with d <= MaxKm.
type Tier struct {
	MaxKm float64 `yaml:"max_km" json:"maxKm"`
	Fee   int     `yaml:"fee" json:"fee"`
}

// TierTable maps a distance to a flat fee. Distances above the last tier
// are charged OverflowFee.
type TierTable struct {
	tiers       []Tier
	overflowFee int
}

// DefaultTiers is the canonical fee table.
var DefaultTiers = []Tier{
	{MaxKm: 10, Fee: 500},
	{MaxKm: 25, Fee: 800},
	{MaxKm: 50, Fee: 1200},
	{MaxKm: 100, Fee: 1800},
}

// DefaultOverflowFee applies beyond the last entry of DefaultTiers.
const DefaultOverflowFee = 2500

// NewTierTable validates and builds a table. Thresholds must be strictly
// ascending and fees non-decreasing, including the overflow fee.
func NewTierTable(tiers []Tier, overflowFee int) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTierTable)
	}
	prevKm, prevFee := 0.0, 0
	for i, t := range tiers {
		if t.MaxKm <= prevKm {
			return nil, fmt.Errorf("%w: tier %d threshold %.2f is not above %.2f", ErrInvalidTierTable, i, t.MaxKm, prevKm)
		}
		if t.Fee < prevFee {
			return nil, fmt.Errorf("%w: tier %d fee %d is below %d", ErrInvalidTierTable, i, t.Fee, prevFee)
		}
		prevKm, prevFee = t.MaxKm, t.Fee
	}
	if overflowFee < prevFee {
		return nil, fmt.Errorf("%w: overflow fee %d is below %d", ErrInvalidTierTable, overflowFee, prevFee)
	}

	copied := make([]Tier, len(tiers))
	copy(copied, tiers)
	return &TierTable{tiers: copied, overflowFee: overflowFee}, nil
}

// DefaultTierTable returns the canonical table.
func DefaultTierTable() *TierTable {
	t, err := NewTierTable(DefaultTiers, DefaultOverflowFee)
	if err != nil {
		panic(err)
	}
	return t
}

type tierFile struct {
	Tiers       []Tier `yaml:"tiers"`
	OverflowFee int    `yaml:"overflow_fee"`
}

// LoadTierTable reads a table from a YAML file of the form
//
//	tiers:
//	  - {max_km: 10, fee: 500}
//	overflow_fee: 2500
func LoadTierTable(path string) (*TierTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier file: %w", err)
	}
	var f tierFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tier file: %w", err)
	}
	return NewTierTable(f.Tiers, f.OverflowFee)
}

// Fee returns the fee for a distance in kilometers.
func (t *TierTable) Fee(km float64) int {
	for _, tier := range t.tiers {
		if km <= tier.MaxKm {
			return tier.Fee
		}
	}
	return t.overflowFee
}

// Tiers returns a copy of the configured bands.
func (t *TierTable) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}
