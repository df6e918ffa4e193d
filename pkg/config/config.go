package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Coverage modes controlling discovery aggressiveness
const (
	CoverageQuick   = "quick"   // seed set only, start URL prioritized first
	CoverageSurface = "surface" // shallow discovery around the seeds
	CoverageFull    = "full"    // full breadth-first discovery within bounds
)

// FocusConfig describes the single page a run is specifically optimizing for
type FocusConfig struct {
	URL                     string  `yaml:"url,omitempty"`
	Keyword                 string  `yaml:"keyword,omitempty"`
	MinInlinks              int     `yaml:"min_inlinks,omitempty"`
	MaxGenericAnchorPercent float64 `yaml:"max_generic_anchor_percent,omitempty"`
	PlanLimit               int     `yaml:"plan_limit,omitempty"` // cap on internal-link plan entries
}

// ChecksConfig holds feature toggles for optional rule groups
type ChecksConfig struct {
	SERP *bool `yaml:"serp,omitempty"` // SERP-oriented checks (intent completeness etc.); default on
}

// DatabaseConfig controls persistence of completed reports
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	StateDir string `yaml:"state_dir,omitempty"`
}

// EnrichmentConfig controls the optional LLM proposal enrichment collaborator
type EnrichmentConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Model   string `yaml:"model,omitempty"`
	MaxProposals int `yaml:"max_proposals,omitempty"`
}

// TokenConfig controls optional token counting of extracted main text
type TokenConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Encoding string `yaml:"encoding,omitempty"` // e.g. "cl100k_base"
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// AuditConfig is the full configuration for one audit run
type AuditConfig struct {
	StartURL string `yaml:"start_url"`
	Coverage string `yaml:"coverage,omitempty"`
	MaxPages int    `yaml:"max_pages,omitempty"`
	Depth    int    `yaml:"depth,omitempty"`

	AllowedDomains  []string `yaml:"allowed_domains,omitempty"`
	IncludePatterns []string `yaml:"include_patterns,omitempty"` // glob-style path patterns
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`

	RespectRobots    *bool    `yaml:"respect_robots,omitempty"` // default true
	SitemapDiscovery *bool    `yaml:"sitemap_discovery,omitempty"` // seed from robots.txt sitemap directives; default true
	Sitemaps         []string `yaml:"sitemaps,omitempty"`          // explicitly configured sitemap URLs

	Timeout      time.Duration `yaml:"timeout,omitempty"` // per network operation budget
	NumWorkers   int           `yaml:"num_workers,omitempty"`
	DelayPerHost time.Duration `yaml:"delay_per_host,omitempty"`
	UserAgent    string        `yaml:"user_agent,omitempty"`

	MaxRetries        int           `yaml:"max_retries,omitempty"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay,omitempty"`

	GenericAnchors          []string `yaml:"generic_anchors,omitempty"` // overrides built-in lexicon
	ThinContentWords        int      `yaml:"thin_content_words,omitempty"`
	ServiceThinContentWords int      `yaml:"service_thin_content_words,omitempty"`

	Focus      FocusConfig      `yaml:"focus,omitempty"`
	Checks     ChecksConfig     `yaml:"checks,omitempty"`
	Database   DatabaseConfig   `yaml:"database,omitempty"`
	Enrichment EnrichmentConfig `yaml:"enrichment,omitempty"`
	Tokens     TokenConfig      `yaml:"tokens,omitempty"`

	OutputDir string `yaml:"output_dir,omitempty"` // base directory for per-run artifacts

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// Load reads and parses an audit config file
func Load(path string) (*AuditConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg AuditConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// RespectRobotsEnabled resolves the robots toggle (default true)
func (c *AuditConfig) RespectRobotsEnabled() bool {
	if c.RespectRobots != nil {
		return *c.RespectRobots
	}
	return true
}

// SitemapDiscoveryEnabled resolves the robots-sitemap discovery toggle (default true)
func (c *AuditConfig) SitemapDiscoveryEnabled() bool {
	if c.SitemapDiscovery != nil {
		return *c.SitemapDiscovery
	}
	return true
}

// SERPChecksEnabled resolves the SERP rule-group toggle (default true)
func (c *AuditConfig) SERPChecksEnabled() bool {
	if c.Checks.SERP != nil {
		return *c.Checks.SERP
	}
	return true
}

// EffectiveDepth returns the crawl depth bound adjusted for the coverage mode
func (c *AuditConfig) EffectiveDepth() int {
	switch c.Coverage {
	case CoverageQuick:
		return 0
	case CoverageSurface:
		if c.Depth == 0 || c.Depth > 2 {
			return 2
		}
	}
	return c.Depth
}

// DefaultGenericAnchors is the built-in low-information anchor lexicon, used
// when the config does not override it.
var DefaultGenericAnchors = []string{
	"click here", "here", "read more", "more", "learn more", "link",
	"this", "this page", "website", "details", "see more", "continue reading",
}

// EffectiveGenericAnchors resolves the generic-anchor lexicon
func (c *AuditConfig) EffectiveGenericAnchors() []string {
	if len(c.GenericAnchors) > 0 {
		return c.GenericAnchors
	}
	return DefaultGenericAnchors
}
