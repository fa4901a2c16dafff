package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/haasonsaas/hipreport/pkg/config"
	"github.com/haasonsaas/hipreport/pkg/health"
	"github.com/haasonsaas/hipreport/pkg/hip"
	"github.com/haasonsaas/hipreport/pkg/telemetry"
	"github.com/spf13/cobra"
)

const (
	serviceName     = "genhip"
	tracerName      = "github.com/haasonsaas/hipreport/genhip"
	shutdownTimeout = 3 * time.Second
)

var Version = "dev"

// options holds what the command line resolves before config is loaded.
type options struct {
	configPath string
	osRelease  string
}

func main() {
	if err := newRootCmd(config.DefaultOSRelease).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(osRelease string) *cobra.Command {
	var in hip.Input
	opts := &options{osRelease: osRelease}

	rootCmd := &cobra.Command{
		Use:   "genhip",
		Short: "GlobalProtect HIP report wrapper for openconnect",
		Long: "Runs the GlobalProtect PanGpHip tool, adds the fields openconnect supplies " +
			"and prints the HIP report for openconnect to submit to the gateway",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), opts, in)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Optional YAML config file")

	flags := rootCmd.Flags()
	flags.StringVar(&in.Cookie, "cookie", "", "URL-encoded cookie with user, domain and computer")
	flags.StringVar(&in.ClientIP, "client-ip", "", "Client IP address, IPv4[,IPv6]")
	flags.StringVar(&in.MD5, "md5", "", "MD5 value to add")
	flags.StringVar(&in.ClientOS, "client-os", "", "Client operating system")
	_ = rootCmd.MarkFlagRequired("cookie")

	rootCmd.AddCommand(
		checkCmd(opts),
		versionCmd(),
	)
	return rootCmd
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.OSRelease.Path = opts.osRelease
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runReport prints the enriched report to out. Nothing is printed unless
// every stage succeeds.
func runReport(ctx context.Context, out io.Writer, opts *options, in hip.Input) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	dlog, err := telemetry.OpenDebugLog(cfg.Logging)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer dlog.Close()

	logger := dlog.Logger
	logger.Info().Str("version", Version).Str("tool", cfg.GlobalProtect.Tool).Msg("genhip starting")

	provider, err := telemetry.SetupTracing(ctx, serviceName, Version, cfg.Tracing, dlog.SpanLogger())
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		// openconnect is blocked on this process until it exits.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}()

	gen := hip.NewGenerator(cfg, logger, provider.Tracer(tracerName))
	report, err := gen.Generate(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, report)
	logger.Debug().Str("output", report).Msg("Output")
	return nil
}

func checkCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that a HIP report can be generated on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			status := health.Check(cfg)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL")
			fmt.Fprintln(w, "-----\t------\t------")
			fmt.Fprintf(w, "install dir\t%s\t%s\n", mark(status.InstallDirPresent), cfg.GlobalProtect.InstallDir)
			fmt.Fprintf(w, "HIP tool\t%s\t%s\n", mark(status.ToolExecutable), cfg.GlobalProtect.Tool)
			fmt.Fprintf(w, "os-release\t%s\t%s\n", mark(status.OSDescription != ""), status.OSDescription)
			if cfg.Logging.Debug {
				fmt.Fprintf(w, "debug log\t%s\t%s\n", mark(status.LogWritable), cfg.Logging.File)
			}
			w.Flush()

			for _, issue := range status.Issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", issue)
			}
			if !status.Healthy {
				return errors.New("preflight checks failed")
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "genhip version %s\n", Version)
		},
	}
}

func mark(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}
