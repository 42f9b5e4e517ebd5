package shipping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierTable_CanonicalBoundaries(t *testing.T) {
	table := DefaultTierTable()

	tests := []struct {
		km  float64
		fee int
	}{
		{0, 500},
		{10, 500},
		{10.01, 800},
		{25, 800},
		{25.01, 1200},
		{50, 1200},
		{50.01, 1800},
		{100, 1800},
		{100.01, 2500},
		{4000, 2500},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.fee, table.Fee(tt.km), "km=%.2f", tt.km)
	}
}

func TestTierTable_MonotonicInDistance(t *testing.T) {
	table := DefaultTierTable()

	prev := table.Fee(0)
	for km := 0.0; km <= 250; km += 0.25 {
		fee := table.Fee(km)
		assert.GreaterOrEqual(t, fee, prev, "fee dropped at %.2f km", km)
		prev = fee
	}
}

func TestNewTierTable_Validation(t *testing.T) {
	tests := []struct {
		name     string
		tiers    []Tier
		overflow int
	}{
		{"empty", nil, 100},
		{"descending thresholds", []Tier{{MaxKm: 20, Fee: 100}, {MaxKm: 10, Fee: 200}}, 300},
		{"duplicate thresholds", []Tier{{MaxKm: 10, Fee: 100}, {MaxKm: 10, Fee: 200}}, 300},
		{"decreasing fee", []Tier{{MaxKm: 10, Fee: 300}, {MaxKm: 20, Fee: 200}}, 400},
		{"overflow below last fee", []Tier{{MaxKm: 10, Fee: 300}}, 100},
		{"zero threshold", []Tier{{MaxKm: 0, Fee: 300}}, 400},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewTierTable(tt.tiers, tt.overflow)
			assert.ErrorIs(t, err, ErrInvalidTierTable)
			assert.Nil(t, table)
		})
	}
}

func TestNewTierTable_CopiesInput(t *testing.T) {
	tiers := []Tier{{MaxKm: 10, Fee: 100}}
	table, err := NewTierTable(tiers, 200)
	require.NoError(t, err)

	tiers[0].Fee = 9999
	assert.Equal(t, 100, table.Fee(5))
}

func TestLoadTierTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	content := "tiers:\n  - {max_km: 5, fee: 300}\n  - {max_km: 40, fee: 900}\noverflow_fee: 1500\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := LoadTierTable(path)
	require.NoError(t, err)

	assert.Equal(t, 300, table.Fee(5))
	assert.Equal(t, 900, table.Fee(5.01))
	assert.Equal(t, 1500, table.Fee(40.01))
	assert.Len(t, table.Tiers(), 2)
}

func TestLoadTierTable_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiers: []\noverflow_fee: 10\n"), 0o600))

	_, err := LoadTierTable(path)
	assert.ErrorIs(t, err, ErrInvalidTierTable)

	_, err = LoadTierTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
