package detector

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendDefaults(t *testing.T) {
	rec := Recommend(DefaultLimits)
	assert.Equal(t, Recommendations{WorkgroupX: 256, WorkgroupY: 1, WorkgroupZ: 1, TileX: 16, TileY: 16}, rec)
}

func TestRecommendConstrained(t *testing.T) {
	cases := []struct {
		name   string
		limits Limits
		tile   uint32
		wgX    uint32
	}{
		{"invocations 64", Limits{MaxComputeInvocationsPerWorkgroup: 64, MaxComputeWorkgroupSizeX: 256, MaxComputeWorkgroupSizeY: 256}, 8, 64},
		{"narrow y", Limits{MaxComputeInvocationsPerWorkgroup: 256, MaxComputeWorkgroupSizeX: 256, MaxComputeWorkgroupSizeY: 4}, 4, 256},
		{"nothing", Limits{}, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Recommend(tc.limits)
			assert.Equal(t, tc.tile, rec.TileX)
			assert.Equal(t, tc.tile, rec.TileY)
			assert.Equal(t, tc.wgX, rec.WorkgroupX)
		})
	}
}

func TestReportJSON(t *testing.T) {
	rep := &Report{Backend: "Vulkan", Limits: DefaultLimits, Recommended: Recommend(DefaultLimits), Host: probeHost()}
	s, err := rep.JSON()
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &back))
	assert.Equal(t, "Vulkan", back["backend"])
	host := back["host"].(map[string]any)
	assert.Equal(t, runtime.GOARCH, host["arch"])
}
