package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

const (
	RendererChrome = "chrome"
	RendererStatic = "static"

	ExtractTitle    = "title"
	ExtractMarkdown = "markdown"

	DefaultConcurrency  = 5
	DefaultMaxLinkDepth = 10

	// EnvChromePath overrides chrome_path when set
	EnvChromePath = "CRAWLER_CHROME_PATH"
)

// CrawlConfig holds everything needed to assemble one crawl
type CrawlConfig struct {
	Concurrency   int    `yaml:"concurrency" validate:"min=1"`
	MaxLinkDepth  *int   `yaml:"max_link_depth,omitempty"` // nil = DefaultMaxLinkDepth
	RespectRobots *bool  `yaml:"respect_robots,omitempty"` // nil = true
	UserAgent     string `yaml:"user_agent,omitempty"`

	// Rendering surface
	Renderer    string        `yaml:"renderer" validate:"oneof=chrome static"`
	ChromePath  string        `yaml:"chrome_path,omitempty"`
	Headless    *bool         `yaml:"headless,omitempty"`     // nil = true
	PageTimeout time.Duration `yaml:"page_timeout,omitempty"` // 0 = no per-page timeout

	// Content extraction and scope
	Extract                string   `yaml:"extract" validate:"oneof=title markdown"`
	ContentSelector        string   `yaml:"content_selector,omitempty"`
	AllowedDomain          string   `yaml:"allowed_domain,omitempty"`
	AllowedPathPrefix      string   `yaml:"allowed_path_prefix,omitempty"`
	DisallowedPathPatterns []string `yaml:"disallowed_path_patterns,omitempty"` // Regex patterns for paths to exclude

	// HTTP transport (static renderer and robots.txt)
	DelayPerHost            time.Duration    `yaml:"delay_per_host,omitempty"`
	MaxRequestsPerHost      int              `yaml:"max_requests_per_host" validate:"min=1"`
	MaxRetries              int              `yaml:"max_retries,omitempty" validate:"min=0"`
	InitialRetryDelay       time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay           time.Duration    `yaml:"max_retry_delay,omitempty"`
	SemaphoreAcquireTimeout time.Duration    `yaml:"semaphore_acquire_timeout,omitempty"`
	MaxPageSizeBytes        int64            `yaml:"max_page_size_bytes,omitempty"` // 0 = unlimited
	HTTPClientSettings      HTTPClientConfig `yaml:"http_client_settings,omitempty"`

	ProgressInterval time.Duration `yaml:"progress_interval,omitempty"`
	StoreDir         string        `yaml:"store_dir,omitempty"` // Badger result store; empty disables it
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil = default (true)
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// Load reads a YAML config file. An empty path yields a zero config,
// which Validate fills with defaults.
func Load(path string) (*CrawlConfig, error) {
	cfg := &CrawlConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config %s: %w", utils.ErrFilesystem, path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config %s: %w", utils.ErrConfigValidation, path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with getenv.
func (c *CrawlConfig) ApplyEnv(getenv func(string) string) {
	if p := getenv(EnvChromePath); p != "" {
		c.ChromePath = p
	}
}

// EffectiveMaxLinkDepth returns the depth limit applied by the default filter
func (c *CrawlConfig) EffectiveMaxLinkDepth() int {
	if c.MaxLinkDepth != nil {
		return *c.MaxLinkDepth
	}
	return DefaultMaxLinkDepth
}

// RobotsEnabled reports whether robots.txt is consulted
func (c *CrawlConfig) RobotsEnabled() bool {
	if c.RespectRobots != nil {
		return *c.RespectRobots
	}
	return true
}

// HeadlessEnabled reports whether Chrome runs without a window
func (c *CrawlConfig) HeadlessEnabled() bool {
	if c.Headless != nil {
		return *c.Headless
	}
	return true
}

// HasScope reports whether any scope restriction is configured
func (c *CrawlConfig) HasScope() bool {
	return c.AllowedDomain != "" || (c.AllowedPathPrefix != "" && c.AllowedPathPrefix != "/") || len(c.DisallowedPathPatterns) > 0
}
