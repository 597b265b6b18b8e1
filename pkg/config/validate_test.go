package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

func TestCrawlConfig_Validate_Defaults(t *testing.T) {
	cfg := CrawlConfig{}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 10, cfg.EffectiveMaxLinkDepth())
	assert.True(t, cfg.RobotsEnabled())
	assert.True(t, cfg.HeadlessEnabled())
	assert.Equal(t, RendererChrome, cfg.Renderer)
	assert.Equal(t, ExtractTitle, cfg.Extract)
	assert.Equal(t, 2, cfg.MaxRequestsPerHost)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.SemaphoreAcquireTimeout)
	assert.Equal(t, 30*time.Second, cfg.ProgressInterval)
	assert.False(t, cfg.HasScope())

	assert.Equal(t, 45*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 2, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 15*time.Second, cfg.HTTPClientSettings.DialerTimeout)
}

func TestCrawlConfig_Validate_PreservesValues(t *testing.T) {
	cfg := CrawlConfig{
		Concurrency:       8,
		MaxLinkDepth:      intPtr(0),
		RespectRobots:     boolPtr(false),
		Headless:          boolPtr(false),
		Renderer:          "Static",
		Extract:           "markdown",
		ContentSelector:   "main",
		AllowedPathPrefix: "docs",
		MaxRetries:        5,
		InitialRetryDelay: 2 * time.Second,
		MaxRetryDelay:     60 * time.Second,
		ProgressInterval:  time.Second,
	}

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 0, cfg.EffectiveMaxLinkDepth())
	assert.False(t, cfg.RobotsEnabled())
	assert.False(t, cfg.HeadlessEnabled())
	assert.Equal(t, RendererStatic, cfg.Renderer)
	assert.Equal(t, "/docs", cfg.AllowedPathPrefix)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.ProgressInterval)
	assert.True(t, cfg.HasScope())
}

func TestCrawlConfig_Validate_Warnings(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*CrawlConfig)
		wantWarning string
		check       func(*testing.T, *CrawlConfig)
	}{
		{
			name:        "negative concurrency",
			setup:       func(c *CrawlConfig) { c.Concurrency = -3 },
			wantWarning: "concurrency should be > 0",
			check:       func(t *testing.T, c *CrawlConfig) { assert.Equal(t, DefaultConcurrency, c.Concurrency) },
		},
		{
			name:        "negative max_link_depth",
			setup:       func(c *CrawlConfig) { c.MaxLinkDepth = intPtr(-1) },
			wantWarning: "max_link_depth cannot be negative",
			check:       func(t *testing.T, c *CrawlConfig) { assert.Equal(t, DefaultMaxLinkDepth, c.EffectiveMaxLinkDepth()) },
		},
		{
			name:        "negative page_timeout",
			setup:       func(c *CrawlConfig) { c.PageTimeout = -time.Second },
			wantWarning: "page_timeout cannot be negative",
			check:       func(t *testing.T, c *CrawlConfig) { assert.Zero(t, c.PageTimeout) },
		},
		{
			name: "negative max_retries",
			setup: func(c *CrawlConfig) {
				c.MaxRetries = -1
				c.InitialRetryDelay = time.Second
			},
			wantWarning: "max_retries cannot be negative",
			check:       func(t *testing.T, c *CrawlConfig) { assert.Equal(t, 0, c.MaxRetries) },
		},
		{
			name: "initial delay above max",
			setup: func(c *CrawlConfig) {
				c.MaxRetries = 2
				c.InitialRetryDelay = time.Minute
				c.MaxRetryDelay = time.Second
			},
			wantWarning: "initial_retry_delay",
			check:       func(t *testing.T, c *CrawlConfig) { assert.Equal(t, time.Second, c.InitialRetryDelay) },
		},
		{
			name:        "selector without markdown",
			setup:       func(c *CrawlConfig) { c.ContentSelector = "article" },
			wantWarning: "content_selector is only used",
		},
		{
			name: "chrome path with static renderer",
			setup: func(c *CrawlConfig) {
				c.Renderer = RendererStatic
				c.ChromePath = "/usr/bin/chromium"
			},
			wantWarning: "chrome_path is ignored",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CrawlConfig{}
			tt.setup(&cfg)
			warnings, err := cfg.Validate()
			require.NoError(t, err)
			assert.True(t, containsWarning(warnings, tt.wantWarning), "warnings: %v", warnings)
			if tt.check != nil {
				tt.check(t, &cfg)
			}
		})
	}
}

func TestCrawlConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*CrawlConfig)
	}{
		{"unknown renderer", func(c *CrawlConfig) { c.Renderer = "firefox" }},
		{"unknown extract mode", func(c *CrawlConfig) { c.Extract = "pdf" }},
		{"bad disallowed pattern", func(c *CrawlConfig) { c.DisallowedPathPatterns = []string{"[oops"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CrawlConfig{}
			tt.setup(&cfg)
			_, err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawl.yaml")
	content := `
concurrency: 3
max_link_depth: 2
respect_robots: false
renderer: static
user_agent: test-agent/1.0
page_timeout: 15s
allowed_domain: docs.example.com
disallowed_path_patterns:
  - "^/blog/"
http_client_settings:
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	_, err = cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 2, cfg.EffectiveMaxLinkDepth())
	assert.False(t, cfg.RobotsEnabled())
	assert.Equal(t, RendererStatic, cfg.Renderer)
	assert.Equal(t, "test-agent/1.0", cfg.UserAgent)
	assert.Equal(t, 15*time.Second, cfg.PageTimeout)
	assert.Equal(t, []string{"^/blog/"}, cfg.DisallowedPathPatterns)
	assert.Equal(t, 5*time.Second, cfg.HTTPClientSettings.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, utils.ErrFilesystem)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: [unterminated"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, CrawlConfig{}, *cfg)
}

func TestApplyEnv(t *testing.T) {
	cfg := CrawlConfig{ChromePath: "/from/config"}
	cfg.ApplyEnv(func(string) string { return "" })
	assert.Equal(t, "/from/config", cfg.ChromePath)

	cfg.ApplyEnv(func(key string) string {
		if key == EnvChromePath {
			return "/from/env"
		}
		return ""
	})
	assert.Equal(t, "/from/env", cfg.ChromePath)
}
