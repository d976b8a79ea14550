package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comet-platform/golive/pkg/models"
)

func TestDefaultTablePresets(t *testing.T) {
	table := DefaultTable()

	cases := []struct {
		preset string
		window time.Duration
		max    int
	}{
		{PresetAuth, 15 * time.Minute, 5},
		{PresetAPI, 15 * time.Minute, 100},
		{PresetHeavy, 60 * time.Minute, 10},
		{PresetPublic, time.Minute, 20},
		{PresetAdmin, 15 * time.Minute, 500},
		{PresetWrite, 15 * time.Minute, 30},
		{PresetRead, 15 * time.Minute, 200},
	}

	for _, tc := range cases {
		p, ok := table.Preset(tc.preset)
		require.True(t, ok, "preset %s missing", tc.preset)
		assert.Equal(t, tc.window, p.Window, "preset %s window", tc.preset)
		assert.Equal(t, tc.max, p.MaxRequests, "preset %s max", tc.preset)
	}

	_, ok := table.Preset("no-such-preset")
	assert.False(t, ok)
}

func TestRoleMultipliers(t *testing.T) {
	table := DefaultTable()

	assert.Equal(t, 5.0, table.Multiplier(models.RoleAdmin))
	assert.Equal(t, 3.0, table.Multiplier(models.RoleManager))
	assert.Equal(t, 2.0, table.Multiplier(models.RoleDeveloper))
	assert.Equal(t, 1.5, table.Multiplier(models.RoleTester))
	assert.Equal(t, 1.0, table.Multiplier(models.RoleViewer))

	// Unknown and absent roles default to the base quota.
	assert.Equal(t, 1.0, table.Multiplier(models.Role("CONTRACTOR")))
	assert.Equal(t, 1.0, table.Multiplier(models.Role("")))
}

func TestEffectiveLimit(t *testing.T) {
	table := DefaultTable()

	api, _ := table.Preset(PresetAPI)
	assert.Equal(t, 200, table.EffectiveLimit(api, models.RoleDeveloper))
	assert.Equal(t, 500, table.EffectiveLimit(api, models.RoleAdmin))
	assert.Equal(t, 100, table.EffectiveLimit(api, models.Role("")))

	// Fractional multipliers truncate toward zero.
	write, _ := table.Preset(PresetWrite)
	assert.Equal(t, 45, table.EffectiveLimit(write, models.RoleTester))
	auth, _ := table.Preset(PresetAuth)
	assert.Equal(t, 7, table.EffectiveLimit(auth, models.RoleTester))
}

func TestTableCopiesInputs(t *testing.T) {
	presets := map[string]Policy{"x": {Window: time.Minute, MaxRequests: 1}}
	table := NewTable(presets, nil)

	presets["x"] = Policy{Window: time.Hour, MaxRequests: 999}

	p, ok := table.Preset("x")
	require.True(t, ok)
	assert.Equal(t, 1, p.MaxRequests)
}
