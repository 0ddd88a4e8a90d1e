package billing

import (
	"fmt"

	"wattwise/internal/models"
)

// Table is an ordered, contiguous set of tariff tiers covering [0, ∞).
// Tier boundaries are in whole units: the first tier "0-100" holds units 1 to 100
// and every later tier starts one unit after the previous tier's maximum.
type Table struct {
	name    string
	version string
	slabs   []models.SlabRate
}

// NewTable validates slabs and builds a table from them
func NewTable(name, version string, slabs []models.SlabRate) (*Table, error) {
	if len(slabs) == 0 {
		return nil, &models.ValidationError{Field: "slabs", Message: "at least one slab is required"}
	}

	for i, s := range slabs {
		field := fmt.Sprintf("slabs[%d]", i)
		if s.RatePerUnit < 0 {
			return nil, &models.ValidationError{Field: field, Message: "rate_per_unit must not be negative"}
		}

		last := i == len(slabs)-1
		if s.Unbounded() != last {
			return nil, &models.ValidationError{Field: field, Message: "only the last slab may be unbounded and it must be"}
		}
		if !s.Unbounded() && *s.MaxUnit < s.MinUnit {
			return nil, &models.ValidationError{Field: field, Message: "max_unit must not be below min_unit"}
		}

		if i == 0 {
			if s.MinUnit != 0 {
				return nil, &models.ValidationError{Field: field, Message: "first slab must start at 0"}
			}
			if !s.Unbounded() && *s.MaxUnit <= 0 {
				return nil, &models.ValidationError{Field: field, Message: "first slab must hold at least one unit"}
			}
			continue
		}

		prevMax := *slabs[i-1].MaxUnit
		if s.MinUnit != prevMax+1 {
			return nil, &models.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("min_unit %g must be %g to follow the previous slab", s.MinUnit, prevMax+1),
			}
		}
	}

	copied := make([]models.SlabRate, len(slabs))
	copy(copied, slabs)
	return &Table{name: name, version: version, slabs: copied}, nil
}

// TamilNaduDomestic returns the TNEB domestic bi-monthly tariff.
func TamilNaduDomestic() *Table {
	t, err := NewTable("Tamil Nadu", "TNEB domestic bi-monthly", []models.SlabRate{
		{MinUnit: 0, MaxUnit: units(100), RatePerUnit: 0.00},
		{MinUnit: 101, MaxUnit: units(200), RatePerUnit: 2.35},
		{MinUnit: 201, MaxUnit: units(400), RatePerUnit: 4.70},
		{MinUnit: 401, MaxUnit: units(500), RatePerUnit: 6.30},
		{MinUnit: 501, MaxUnit: units(600), RatePerUnit: 8.40},
		{MinUnit: 601, MaxUnit: units(800), RatePerUnit: 9.45},
		{MinUnit: 801, MaxUnit: units(1000), RatePerUnit: 10.50},
		{MinUnit: 1001, MaxUnit: nil, RatePerUnit: 11.55},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// FlatTable prices every unit at rate. Used when no slab tariff is configured.
func FlatTable(rate float64) *Table {
	if rate < 0 {
		rate = 0
	}
	return &Table{
		name:    "flat",
		version: fmt.Sprintf("%.2f/unit", rate),
		slabs:   []models.SlabRate{{MinUnit: 0, RatePerUnit: rate}},
	}
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) Version() string {
	return t.version
}

// Flat reports whether the table has a single tier.
func (t *Table) Flat() bool {
	return len(t.slabs) == 1
}

// Slabs returns a copy of the tiers.
func (t *Table) Slabs() []models.SlabRate {
	out := make([]models.SlabRate, len(t.slabs))
	copy(out, t.slabs)
	return out
}

// Info lists the tiers for display.
func (t *Table) Info() []models.SlabInfo {
	info := make([]models.SlabInfo, 0, len(t.slabs))
	for _, s := range t.slabs {
		note := fmt.Sprintf("₹%.2f/unit", s.RatePerUnit)
		if s.RatePerUnit == 0 {
			note = "FREE (for 2 months)"
		}
		info = append(info, models.SlabInfo{Range: s.Label(), Rate: s.RatePerUnit, Note: note})
	}
	return info
}

// Position locates a cumulative bi-monthly unit count within the tiers.
func (t *Table) Position(consumed float64) models.SlabPosition {
	if consumed < 0 {
		consumed = 0
	}
	for _, s := range t.slabs {
		if s.Unbounded() || consumed <= *s.MaxUnit {
			pos := models.SlabPosition{CurrentSlab: s.Label(), CurrentRate: s.RatePerUnit}
			if !s.Unbounded() {
				next := *s.MaxUnit + 1
				pos.NextSlabAt = &next
				pos.UnitsToNextSlab = Round2(*s.MaxUnit - consumed + 1)
			}
			return pos
		}
	}
	// unreachable for a validated table
	return models.SlabPosition{}
}

// lowerBound is the unit count already covered by the tiers before slab i.
func (t *Table) lowerBound(i int) float64 {
	if i == 0 {
		return 0
	}
	return *t.slabs[i-1].MaxUnit
}

func units(v float64) *float64 {
	return &v
}
