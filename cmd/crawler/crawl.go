package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
	"github.com/Sriram-PR/headless-crawler/pkg/crawler"
	"github.com/Sriram-PR/headless-crawler/pkg/policy"
	"github.com/Sriram-PR/headless-crawler/pkg/storage"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// crawlFlags override config values only when set on the command line
type crawlFlags struct {
	concurrency    int
	maxDepth       int
	noRobots       bool
	storeDir       string
	resetStore     bool
	writeResultLog string
}

func newCrawlCmd(opts *globalOptions) *cobra.Command {
	return crawlCommand(opts, &crawlFlags{})
}

func crawlCommand(opts *globalOptions, flags *crawlFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <start-url>",
		Short: "Crawl from a start URL until no links remain",
		Example: `  crawler crawl https://example.com/docs/
  crawler crawl --renderer static --max-depth 2 https://example.com/
  crawler crawl -c crawl.yaml --store-dir ./state --write-result-log results.tsv https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, opts, flags, args[0])
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.concurrency, "concurrency", 0, "Maximum tasks in flight (overrides config)")
	f.IntVar(&flags.maxDepth, "max-depth", 0, "Maximum link depth followed by the default filter (overrides config)")
	f.BoolVar(&flags.noRobots, "no-robots", false, "Do not consult robots.txt")
	f.StringVar(&flags.storeDir, "store-dir", "", "Directory for the badger result store (overrides config)")
	f.BoolVar(&flags.resetStore, "reset-store", false, "Wipe stored results for this site before crawling")
	f.StringVar(&flags.writeResultLog, "write-result-log", "", "Write a TSV log of stored results to this file on completion")
	return cmd
}

func (f *crawlFlags) apply(cmd *cobra.Command, cfg *config.CrawlConfig) {
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if cmd.Flags().Changed("max-depth") {
		depth := f.maxDepth
		cfg.MaxLinkDepth = &depth
	}
	if f.noRobots {
		respect := false
		cfg.RespectRobots = &respect
	}
	if cmd.Flags().Changed("store-dir") {
		cfg.StoreDir = f.storeDir
	}
}

func runCrawl(cmd *cobra.Command, opts *globalOptions, flags *crawlFlags, startURL string) error {
	log := setupLogger(opts.logLevel, cmd.ErrOrStderr())

	cfg, err := loadConfig(opts, os.Getenv, log, func(cfg *config.CrawlConfig) {
		flags.apply(cmd, cfg)
	})
	if err != nil {
		return err
	}
	if flags.writeResultLog != "" && cfg.StoreDir == "" {
		return errors.New("--write-result-log requires --store-dir (or store_dir in config)")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stopSignals := handleSignals(cancel, log)
	defer stopSignals()

	entry := log.WithField("command", "crawl")
	surf, err := buildSurface(ctx, cfg, entry)
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	defer surf.browser.Close()
	go surf.hostSem.RunEviction(ctx, 5*time.Minute)

	hooks, err := policy.FromConfig(cfg, surf.robots, entry)
	if err != nil {
		return err
	}

	var store *storage.BadgerStore
	if cfg.StoreDir != "" {
		store, err = storage.NewBadgerStore(cfg.StoreDir, utils.RunLabel(startURL), flags.resetStore, entry)
		if err != nil {
			return fmt.Errorf("opening result store: %w", err)
		}
		defer store.Close()
		go store.RunGC(ctx, 10*time.Minute)
		hooks = recordResults(hooks, store, entry)
	}

	c, err := crawler.NewCrawler(surf.browser, cfg, hooks, entry, &crawler.Options{Robots: surf.robots})
	if err != nil {
		return err
	}
	run, err := c.Start(ctx, startURL)
	if err != nil {
		return err
	}
	errRun := run.Wait()

	stats := run.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Crawled %d pages: %d succeeded, %d failed, %d gated, %d dropped\n",
		stats.Attempted, stats.Succeeded, stats.Failed, stats.Gated, stats.Dropped)

	if errRun != nil {
		if errors.Is(errRun, context.Canceled) {
			log.Warn("Crawl cancelled gracefully.")
			return nil
		}
		return errRun
	}

	if flags.writeResultLog != "" {
		if err := store.WriteResultLog(ctx, flags.writeResultLog); err != nil {
			return fmt.Errorf("writing result log: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Result log: %s\n", flags.writeResultLog)
	}
	log.Info("Crawl completed successfully.")
	return nil
}
