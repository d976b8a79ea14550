package ratelimit

import (
	"math"
	"time"

	"github.com/comet-platform/golive/pkg/models"
)

// Policy is an immutable (window, max requests) pair applied to a route family.
type Policy struct {
	Window      time.Duration `json:"window"`
	MaxRequests int           `json:"max_requests"`
}

// Preset names for the built-in policy table.
const (
	PresetAuth   = "auth"
	PresetAPI    = "api"
	PresetHeavy  = "heavy"
	PresetPublic = "public"
	PresetAdmin  = "admin"
	PresetWrite  = "write"
	PresetRead   = "read"
)

// Table resolves presets and role multipliers. It is built once at
// construction time and injected into the middleware; it is never mutated
// at request time.
type Table struct {
	presets     map[string]Policy
	multipliers map[models.Role]float64
}

// NewTable builds a policy table from explicit preset and multiplier maps.
// The maps are copied so callers cannot mutate the table afterwards.
func NewTable(presets map[string]Policy, multipliers map[models.Role]float64) *Table {
	t := &Table{
		presets:     make(map[string]Policy, len(presets)),
		multipliers: make(map[models.Role]float64, len(multipliers)),
	}
	for name, p := range presets {
		t.presets[name] = p
	}
	for role, f := range multipliers {
		t.multipliers[role] = f
	}
	return t
}

// DefaultTable returns the built-in preset and role-multiplier tables.
func DefaultTable() *Table {
	return NewTable(
		map[string]Policy{
			PresetAuth:   {Window: 15 * time.Minute, MaxRequests: 5},
			PresetAPI:    {Window: 15 * time.Minute, MaxRequests: 100},
			PresetHeavy:  {Window: 60 * time.Minute, MaxRequests: 10},
			PresetPublic: {Window: time.Minute, MaxRequests: 20},
			PresetAdmin:  {Window: 15 * time.Minute, MaxRequests: 500},
			PresetWrite:  {Window: 15 * time.Minute, MaxRequests: 30},
			PresetRead:   {Window: 15 * time.Minute, MaxRequests: 200},
		},
		map[models.Role]float64{
			models.RoleAdmin:     5,
			models.RoleManager:   3,
			models.RoleDeveloper: 2,
			models.RoleTester:    1.5,
			models.RoleViewer:    1,
		},
	)
}

// Preset returns the named preset policy.
func (t *Table) Preset(name string) (Policy, bool) {
	p, ok := t.presets[name]
	return p, ok
}

// Multiplier returns the quota multiplier for a role, defaulting to 1 for
// unknown or absent roles.
func (t *Table) Multiplier(role models.Role) float64 {
	if f, ok := t.multipliers[role]; ok {
		return f
	}
	return 1
}

// EffectiveLimit scales a policy's base quota by the role multiplier,
// truncating toward zero.
func (t *Table) EffectiveLimit(p Policy, role models.Role) int {
	return int(math.Floor(float64(p.MaxRequests) * t.Multiplier(role)))
}

// Presets returns a copy of the preset table, for the admin config endpoint.
func (t *Table) Presets() map[string]Policy {
	out := make(map[string]Policy, len(t.presets))
	for name, p := range t.presets {
		out[name] = p
	}
	return out
}

// Multipliers returns a copy of the role multiplier table.
func (t *Table) Multipliers() map[models.Role]float64 {
	out := make(map[models.Role]float64, len(t.multipliers))
	for role, f := range t.multipliers {
		out[role] = f
	}
	return out
}
