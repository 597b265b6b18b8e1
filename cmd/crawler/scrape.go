package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/headless-crawler/pkg/crawler"
	"github.com/Sriram-PR/headless-crawler/pkg/policy"
)

func newScrapeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Render one page and print its outcome as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, opts, args[0])
		},
	}
}

func runScrape(cmd *cobra.Command, opts *globalOptions, target string) error {
	log := setupLogger(opts.logLevel, cmd.ErrOrStderr())
	cfg, err := loadConfig(opts, os.Getenv, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	entry := log.WithField("command", "scrape")
	surf, err := buildSurface(ctx, cfg, entry)
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	defer surf.browser.Close()

	hooks, err := policy.FromConfig(cfg, surf.robots, entry)
	if err != nil {
		return err
	}
	c, err := crawler.NewCrawler(surf.browser, cfg, hooks, entry, &crawler.Options{Robots: surf.robots})
	if err != nil {
		return err
	}
	outcome, err := c.Scrape(ctx, target)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}
