package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rahul/gdforge/internal/gateway"
	"github.com/rahul/gdforge/internal/observability"
)

const (
	Version = "0.1.0"
	appName = "gdforge"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Turn requests into Godot editor command plans",
		Long: `gdforge refines a request through analyst, architect and developer
personas into a JSON command plan, runs it against the Godot editor, and asks
for a corrected plan when a command fails.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "config.json", "Config file path (JSON)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(runCmd(&flags), serveCmd(&flags), commandsCmd(&flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})
	return cmd
}

func runCmd(flags *globalFlags) *cobra.Command {
	var (
		provider  string
		dashboard bool
	)
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Plan and execute one request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags.configPath, flags.logLevel, provider)
			if err != nil {
				return err
			}
			defer a.Close()

			showDashboard := dashboard && observability.IsTerminal(os.Stderr)
			if showDashboard {
				observability.PrintBanner(os.Stderr)
			}
			done := make(chan struct{})
			finished := make(chan struct{})
			go func() {
				defer close(finished)
				if showDashboard {
					observability.RunDashboard(a.term, a.status, 200*time.Millisecond, done)
				}
			}()

			res, err := a.workflow.Execute(ctx, args[0])
			close(done)
			<-finished

			a.printRun(cmd.OutOrStdout(), res, err)
			if err != nil {
				return errors.New(gateway.FormatError(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "llm", "", "Provider to use (openai, groq, openrouter, ollama, gemini)")
	cmd.Flags().BoolVar(&dashboard, "dashboard", true, "Show a live status line on a terminal")
	return cmd
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		provider    string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve requests from the Telegram gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags.configPath, flags.logLevel, provider)
			if err != nil {
				return err
			}
			defer a.Close()

			tgCfg, ok := a.cfg.GetTelegramConfig()
			if !ok {
				return errors.New("telegram gateway is not enabled or token is missing")
			}

			handler := &gateway.Handler{Workflow: a.workflow, Runs: a.journal}
			var gw gateway.Messenger
			gw, err = gateway.NewTelegramGateway(tgCfg.Token, handler, a.logger.Zap())
			if err != nil {
				return fmt.Errorf("start telegram gateway: %w", err)
			}

			if observability.IsTerminal(os.Stderr) {
				observability.PrintBanner(os.Stderr)
			}

			g, gctx := errgroup.WithContext(ctx)
			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(a.metrics), ReadHeaderTimeout: 5 * time.Second}
				g.Go(func() error {
					a.logger.Zap().Info("metrics listening", zap.String("addr", metricsAddr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("metrics server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}
			g.Go(func() error {
				// A stopped gateway ends the process.
				defer stop()
				defer gw.Stop()
				return gw.Start(gctx)
			})

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				a.logger.Zap().Info("shutting down")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&provider, "llm", "", "Provider to use (openai, groq, openrouter, ollama, gemini)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address for /metrics; empty disables it")
	return cmd
}

func commandsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the commands plans may use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			registry, closeFn := buildRegistry(cfg, observability.NewNopLogger())
			defer closeFn()

			out := cmd.OutOrStdout()
			for _, t := range registry.List() {
				fmt.Fprintf(out, "%-24s %s\n", t.Name(), t.Description())
			}
			return nil
		},
	}
}

func metricsMux(m *observability.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
