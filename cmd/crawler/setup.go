package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
	"github.com/Sriram-PR/headless-crawler/pkg/fetch"
	crawlerlog "github.com/Sriram-PR/headless-crawler/pkg/log"
	"github.com/Sriram-PR/headless-crawler/pkg/render"
	"github.com/Sriram-PR/headless-crawler/pkg/render/chrome"
	"github.com/Sriram-PR/headless-crawler/pkg/render/static"
)

// setupLogger creates the CLI logger, falling back to info on a bad level
func setupLogger(level string, out io.Writer) *logrus.Logger {
	log, err := crawlerlog.New(level, out)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		log.Warnf("%v, using default 'info'", err)
	}
	return log
}

// loadConfig reads the config file, applies the environment, the global
// flags and any command overrides, then validates the result.
func loadConfig(opts *globalOptions, getenv func(string) string, log *logrus.Logger, overrides ...func(*config.CrawlConfig)) (*config.CrawlConfig, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(getenv)
	if opts.renderer != "" {
		cfg.Renderer = opts.renderer
	}
	if opts.extract != "" {
		cfg.Extract = opts.extract
	}
	for _, override := range overrides {
		override(cfg)
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// surface bundles the rendering surface with the HTTP stack behind robots.txt
// and the static renderer
type surface struct {
	browser render.Browser
	robots  *fetch.RobotsHandler
	hostSem *fetch.HostSemaphorePool
}

func buildSurface(ctx context.Context, cfg *config.CrawlConfig, log *logrus.Entry) (*surface, error) {
	client := fetch.NewClient(cfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(client, cfg, log)
	rateLimiter := fetch.NewRateLimiter(cfg.DelayPerHost, log)
	hostSem := fetch.NewHostSemaphorePool(cfg.MaxRequestsPerHost, cfg.SemaphoreAcquireTimeout, log)

	s := &surface{
		robots:  fetch.NewRobotsHandler(fetcher, rateLimiter, hostSem, cfg, log),
		hostSem: hostSem,
	}
	switch cfg.Renderer {
	case config.RendererStatic:
		s.browser = static.New(fetcher, rateLimiter, hostSem, cfg, log)
	case config.RendererChrome:
		browser, err := chrome.New(ctx, chrome.OptionsFromConfig(cfg), log)
		if err != nil {
			return nil, err
		}
		s.browser = browser
	default:
		return nil, fmt.Errorf("unknown renderer %q", cfg.Renderer)
	}
	log.Infof("Using %s renderer", cfg.Renderer)
	return s, nil
}

// handleSignals cancels on the first SIGINT/SIGTERM and forces an exit on the
// second one or when the graceful period runs out. The returned func stops
// listening.
func handleSignals(cancel context.CancelFunc, log *logrus.Logger) func() {
	sigChan := make(chan os.Signal, 1)
	stopped := make(chan struct{})
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var sig os.Signal
		select {
		case sig = <-sigChan:
		case <-stopped:
			return
		}
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		case <-stopped:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(stopped)
	}
}
