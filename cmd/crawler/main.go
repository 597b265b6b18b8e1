// Command crawler runs headless crawls from the command line.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

// globalOptions are the flags shared by every subcommand
type globalOptions struct {
	configPath string
	logLevel   string
	renderer   string
	extract    string
}

func main() {
	// .env is optional; CRAWLER_CHROME_PATH usually lives there
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "crawler",
		Short:         "Headless web crawler",
		Long:          "crawler renders pages in headless Chrome (or a plain HTTP fetcher), extracts their content and follows links under configurable policies.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Path to YAML config file (defaults apply when empty)")
	pf.StringVar(&opts.logLevel, "loglevel", "info", "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&opts.renderer, "renderer", "", "Rendering surface: chrome or static (overrides config)")
	pf.StringVar(&opts.extract, "extract", "", "Content extractor: title or markdown (overrides config)")

	root.AddCommand(
		newCrawlCmd(opts),
		newScrapeCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crawler %s\n", version)
		},
	}
}
