package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// Validate applies defaults in place and checks hard constraints.
// Returns collected warnings and any fatal error.
func (c *CrawlConfig) Validate() (warnings []string, err error) {
	// Concurrency
	if c.Concurrency <= 0 {
		if c.Concurrency < 0 {
			warnings = append(warnings, fmt.Sprintf("concurrency should be > 0, defaulting to %d", DefaultConcurrency))
		}
		c.Concurrency = DefaultConcurrency
	}

	// MaxLinkDepth
	if c.MaxLinkDepth != nil && *c.MaxLinkDepth < 0 {
		warnings = append(warnings, fmt.Sprintf("max_link_depth cannot be negative, defaulting to %d", DefaultMaxLinkDepth))
		depth := DefaultMaxLinkDepth
		c.MaxLinkDepth = &depth
	}

	// Renderer / extraction mode
	c.Renderer = strings.ToLower(strings.TrimSpace(c.Renderer))
	if c.Renderer == "" {
		c.Renderer = RendererChrome
	}
	c.Extract = strings.ToLower(strings.TrimSpace(c.Extract))
	if c.Extract == "" {
		c.Extract = ExtractTitle
	}
	if c.ContentSelector != "" && c.Extract != ExtractMarkdown {
		warnings = append(warnings, "content_selector is only used with extract: markdown")
	}
	if c.ChromePath != "" && c.Renderer != RendererChrome {
		warnings = append(warnings, "chrome_path is ignored by the static renderer")
	}

	// PageTimeout
	if c.PageTimeout < 0 {
		warnings = append(warnings, "page_timeout cannot be negative, disabling timeout")
		c.PageTimeout = 0
	}

	// AllowedPathPrefix normalization
	if c.AllowedPathPrefix != "" && c.AllowedPathPrefix[0] != '/' {
		c.AllowedPathPrefix = "/" + c.AllowedPathPrefix
	}
	if _, errRe := utils.CompileRegexPatterns(c.DisallowedPathPatterns); errRe != nil {
		return warnings, errRe
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		c.MaxRequestsPerHost = 2
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = 30 * time.Second
	}

	if c.MaxPageSizeBytes < 0 {
		warnings = append(warnings, "max_page_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxPageSizeBytes = 0
	}

	// ProgressInterval
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 30 * time.Second
	}

	c.validateHTTPClientSettings()

	if errStruct := validator.New().Struct(c); errStruct != nil {
		return warnings, fmt.Errorf("%w: %w", utils.ErrConfigValidation, errStruct)
	}
	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *CrawlConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
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
