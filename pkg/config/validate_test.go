package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AuditConfig {
	return &AuditConfig{
		StartURL: "https://example.com",
	}
}

func TestValidate_MissingStartURL(t *testing.T) {
	cfg := &AuditConfig{}
	_, err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_url")
}

func TestValidate_RejectsBadScheme(t *testing.T) {
	cfg := &AuditConfig{StartURL: "ftp://example.com"}
	_, err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestValidate_AppliesDefaults(t *testing.T) {
	cfg := validConfig()
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)

	assert.Equal(t, CoverageFull, cfg.Coverage)
	assert.Equal(t, []string{"example.com"}, cfg.AllowedDomains)
	assert.Equal(t, 100, cfg.MaxPages)
	assert.Equal(t, 5, cfg.Depth)
	assert.Equal(t, 4, cfg.NumWorkers)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "site-audit/1.0", cfg.UserAgent)
	assert.Equal(t, 300, cfg.ThinContentWords)
	assert.Equal(t, 450, cfg.ServiceThinContentWords)
	assert.Equal(t, 3, cfg.Focus.MinInlinks)
	assert.Equal(t, 10, cfg.Focus.PlanLimit)
	assert.True(t, cfg.RespectRobotsEnabled())
	assert.True(t, cfg.SitemapDiscoveryEnabled())
	assert.True(t, cfg.SERPChecksEnabled())
}

func TestValidate_RejectsUnknownCoverage(t *testing.T) {
	cfg := validConfig()
	cfg.Coverage = "deep"
	_, err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coverage")
}

func TestValidate_RejectsInvalidFocusURL(t *testing.T) {
	cfg := validConfig()
	cfg.Focus.URL = "not a url"
	_, err := cfg.Validate()
	require.Error(t, err)
}

func TestEffectiveDepth_CoverageModes(t *testing.T) {
	tests := []struct {
		coverage string
		depth    int
		want     int
	}{
		{CoverageQuick, 7, 0},
		{CoverageSurface, 7, 2},
		{CoverageSurface, 1, 1},
		{CoverageFull, 7, 7},
	}
	for _, tt := range tests {
		cfg := &AuditConfig{Coverage: tt.coverage, Depth: tt.depth}
		assert.Equalf(t, tt.want, cfg.EffectiveDepth(), "coverage=%s depth=%d", tt.coverage, tt.depth)
	}
}

func TestEffectiveGenericAnchors_Override(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, DefaultGenericAnchors, cfg.EffectiveGenericAnchors())

	cfg.GenericAnchors = []string{"hier klicken"}
	assert.Equal(t, []string{"hier klicken"}, cfg.EffectiveGenericAnchors())
}
