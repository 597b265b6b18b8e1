package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
)

var errInvalidConfig = errors.New("configuration invalid")

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if code := doValidate(opts.configPath, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
				return errInvalidConfig
			}
			return nil
		},
	}
}

// doValidate performs validation and writes output to the provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: renderer=%s extract=%s concurrency=%d max_link_depth=%d robots=%t\n",
		cfg.Renderer, cfg.Extract, cfg.Concurrency, cfg.EffectiveMaxLinkDepth(), cfg.RobotsEnabled())
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
