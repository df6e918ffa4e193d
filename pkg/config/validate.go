package config

import (
	"fmt"
	"net/url"
	"time"

	"site-audit/pkg/utils"
)

// Validate checks AuditConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AuditConfig) Validate() (warnings []string, err error) {
	// Required: StartURL
	if c.StartURL == "" {
		return nil, fmt.Errorf("%w: start_url is required", utils.ErrConfigValidation)
	}
	parsed, parseErr := url.ParseRequestURI(c.StartURL)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: start_url '%s' is not a valid absolute URL: %v",
			utils.ErrConfigValidation, c.StartURL, parseErr)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: start_url scheme must be http or https, got '%s'",
			utils.ErrConfigValidation, parsed.Scheme)
	}

	// Coverage
	switch c.Coverage {
	case "":
		c.Coverage = CoverageFull
	case CoverageQuick, CoverageSurface, CoverageFull:
	default:
		return nil, fmt.Errorf("%w: coverage must be one of quick/surface/full, got '%s'",
			utils.ErrConfigValidation, c.Coverage)
	}

	// AllowedDomains defaults to the start URL's host
	if len(c.AllowedDomains) == 0 {
		c.AllowedDomains = []string{parsed.Hostname()}
	}

	// MaxPages
	if c.MaxPages <= 0 {
		warnings = append(warnings, "max_pages should be > 0, defaulting to 100")
		c.MaxPages = 100
	}

	// Depth
	if c.Depth < 0 {
		warnings = append(warnings, "depth cannot be negative, setting to 0 (seed only)")
		c.Depth = 0
	}
	if c.Depth == 0 && c.Coverage == CoverageFull {
		c.Depth = 5
	}

	// NumWorkers
	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 4")
		c.NumWorkers = 4
	}

	// Timeout
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}

	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = "site-audit/1.0"
	}

	// Retries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 2
	}
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 15 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// Patterns must compile
	if _, err := utils.CompileGlobPatterns(c.IncludePatterns); err != nil {
		return warnings, err
	}
	if _, err := utils.CompileGlobPatterns(c.ExcludePatterns); err != nil {
		return warnings, err
	}

	// Content thresholds
	if c.ThinContentWords <= 0 {
		c.ThinContentWords = 300
	}
	if c.ServiceThinContentWords <= 0 {
		c.ServiceThinContentWords = 450
	}

	// Focus
	if c.Focus.URL != "" {
		if _, focusErr := url.ParseRequestURI(c.Focus.URL); focusErr != nil {
			return warnings, fmt.Errorf("%w: focus.url '%s' is not a valid absolute URL: %v",
				utils.ErrConfigValidation, c.Focus.URL, focusErr)
		}
	}
	if c.Focus.MinInlinks <= 0 {
		c.Focus.MinInlinks = 3
	}
	if c.Focus.MaxGenericAnchorPercent <= 0 {
		c.Focus.MaxGenericAnchorPercent = 30
	}
	if c.Focus.PlanLimit <= 0 {
		c.Focus.PlanLimit = 10
	}

	// Output / state directories
	if c.OutputDir == "" {
		c.OutputDir = "./runs"
	}
	if c.Database.Enabled && c.Database.StateDir == "" {
		warnings = append(warnings, "database.state_dir is empty, defaulting to './audit_state'")
		c.Database.StateDir = "./audit_state"
	}

	// Enrichment
	if c.Enrichment.Enabled {
		if c.Enrichment.Model == "" {
			c.Enrichment.Model = "gpt-4o-mini"
		}
		if c.Enrichment.MaxProposals <= 0 {
			c.Enrichment.MaxProposals = 5
		}
	}

	// Tokens
	if c.Tokens.Enabled && c.Tokens.Encoding == "" {
		c.Tokens.Encoding = "cl100k_base"
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AuditConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 4
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
