// Mdns-discover browses the local network for one mDNS service type and
// prints every response that answers for it.
//
// Usage:
//
//	mdns-discover [flags] <service>
//
// See 'mdns-discover --help' for available options.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	mdns "github.com/bino7/mdnsdiscover"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		flags      = defaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "mdns-discover [flags] <service>",
		Short: "Browse the local network for an mDNS service",
		Long: `Multicast a PTR question for the given service type on 224.0.0.251:5353,
repeat it every interval and print every response that answers for it.

Settings may also come from a YAML file given with --config. Flags that are
set explicitly win over the file.`,
		Example: `  # Find Chromecasts, asking again every 15 seconds
  mdns-discover _googlecast._tcp.local

  # Browse for printers on one interface for 30 seconds, as JSON lines
  mdns-discover _ipp._tcp.local --interface 192.168.1.10 --timeout 30s --output json

  # Load everything from a file
  mdns-discover --config browse.yaml`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			cfg.override(flags, cmd.Flags().Changed, args)
			if err := cfg.validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	f.StringVarP(&flags.Interface, "interface", "i", "", "IPv4 address of the interface to browse on (default all)")
	f.DurationVarP(&flags.Interval, "interval", "n", flags.Interval, "Time between queries")
	f.DurationVarP(&flags.Timeout, "timeout", "t", 0, "Stop after this long (0 runs until interrupted)")
	f.BoolVar(&flags.IgnoreEmpty, "ignore-empty", flags.IgnoreEmpty, "Drop responses without answers")
	f.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "Log format (cli, json)")
	f.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format (text, json)")

	return cmd
}

// run browses until ctx is done, the timeout expires or output fails.
func run(ctx context.Context, cfg config, out, logOut io.Writer) error {
	logger := cfg.newLogger(logOut)
	entry := logger.WithField("service", cfg.Service)

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	d, err := mdns.Open(cfg.Service, &mdns.Config{
		Interface:   cfg.interfaceIP(),
		IgnoreEmpty: cfg.IgnoreEmpty,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to start discovery: %w", err)
	}
	scanner, stream := d.Listen()
	defer stream.Close()
	defer scanner.Close()

	entry.WithField("interval", cfg.Interval).Info("browsing")

	err = browse(ctx, scanner, stream, cfg.Interval, newPrinter(cfg.Output, out), entry)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

type queryScanner interface {
	ScanEvery(ctx context.Context, interval time.Duration) error
}

type responseStream interface {
	All(ctx context.Context) iter.Seq2[*mdns.Response, error]
}

// browse queries every interval and prints responses until ctx is done or
// either side stops. It always returns a non-nil error.
func browse(ctx context.Context, sc queryScanner, stream responseStream, interval time.Duration, p printer, entry log.Interface) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sc.ScanEvery(ctx, interval)
	})
	g.Go(func() error {
		seen := 0
		defer func() { entry.WithField("responses", seen).Info("stopped") }()
		for resp, err := range stream.All(ctx) {
			if err != nil {
				entry.WithError(err).Warn("receive failed")
				continue
			}
			seen++
			if err := p.print(resp); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return mdns.ErrClosed
	})
	return g.Wait()
}
