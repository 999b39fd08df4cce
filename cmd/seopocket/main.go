package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alex4udak-blip/SEO-Pocket/internal/api"
	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
	"github.com/alex4udak-blip/SEO-Pocket/pkg/seopocket"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "seopocket",
		Short: "SEO-Pocket — crawler-view acquisition and cloaking detection",
		Long: `SEO-Pocket fetches the content a site serves to search-engine
crawlers, compares it against what ordinary visitors see, and reports
identity-based content discrimination (cloaking).

Acquisition cascades through trusted crawler gateways, a translation
proxy, managed rendering APIs, in-process headless browsers, and a
challenge solver until one of them gets through.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			client, err := seopocket.New(cfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			srv := api.NewServer(cfg.Server, client.Engine(), client.Extractor(), client.Comparator(), client.Archive(), logger)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				logger.Info("received signal, shutting down", "signal", sig)
				if err := srv.Shutdown(context.Background()); err != nil {
					logger.Error("shutdown error", "error", err)
				}
			}()

			return srv.Start()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "bind address (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

// analyzeCmd creates the "analyze" subcommand.
func analyzeCmd() *cobra.Command {
	var detectCloaking, includeArchive, skipCache, skipGateway bool

	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Analyze one URL and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.ValidateURL(args[0]); err != nil {
				return err
			}

			client, err := seopocket.New(cfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			analysis, err := client.Analyze(cmd.Context(), args[0], seopocket.AnalyzeOptions{
				DetectCloaking: detectCloaking,
				IncludeArchive: includeArchive,
				SkipCache:      skipCache,
				SkipGateway:    skipGateway,
			})
			if err != nil {
				return err
			}
			return printJSON(analysis)
		},
	}

	cmd.Flags().BoolVar(&detectCloaking, "detect-cloaking", true, "also fetch the visitor view and diff the two")
	cmd.Flags().BoolVar(&includeArchive, "archive", false, "include first/last archive snapshot dates")
	cmd.Flags().BoolVar(&skipCache, "no-cache", false, "bypass the response cache")
	cmd.Flags().BoolVar(&skipGateway, "skip-gateway", false, "skip the trusted gateway strategy")
	return cmd
}

// viewCmd creates the "view" subcommand.
func viewCmd() *cobra.Command {
	var mode string
	var raw bool

	cmd := &cobra.Command{
		Use:   "view <url>",
		Short: "Fetch one identity's view of a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.ValidateURL(args[0]); err != nil {
				return err
			}

			identity := types.Identity(mode)
			if !identity.Valid() {
				return fmt.Errorf("mode must be crawler or visitor, got %q", mode)
			}

			client, err := seopocket.New(cfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			out := client.Acquire(cmd.Context(), args[0], identity, types.Options{})
			if !out.Success {
				return out.Err
			}

			if raw {
				fmt.Println(out.HTML)
				return nil
			}

			meta, err := client.Extractor().Extract(out.HTML, out.FinalURL)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"url":                args[0],
				"final_url":          out.FinalURL,
				"strategy":           out.Strategy,
				"cached":             out.Cached,
				"cloaked_provenance": out.CloakedProvenance,
				"length":             len(out.HTML),
				"elapsed_ms":         out.Elapsed.Milliseconds(),
				"metadata":           meta,
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "crawler", "identity: crawler or visitor")
	cmd.Flags().BoolVar(&raw, "raw", false, "print raw HTML instead of metadata")
	return cmd
}

// compareCmd creates the "compare" subcommand.
func compareCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "compare <crawler.html> <visitor.html>",
		Short: "Diff two local HTML files for cloaking",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Cloaking.Strict = strict

			crawlerHTML, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			visitorHTML, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}

			client, err := seopocket.New(cfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			return printJSON(client.Compare(string(crawlerHTML), string(visitorHTML)))
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "diff without normalization")
	return cmd
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Server:\n")
			fmt.Printf("  Address:           %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Printf("\nEngine:\n")
			fmt.Printf("  Coalesce:          %v\n", cfg.Engine.Coalesce)
			fmt.Printf("  Attempt Timeout:   %s\n", cfg.Fetch.AttemptTimeout)
			fmt.Printf("  Min HTML Length:   %d\n", cfg.Fetch.MinHTMLLength)
			fmt.Printf("\nStrategies:\n")
			fmt.Printf("  Order:             %v\n", cfg.Strategies.Order)
			fmt.Printf("  Gateway Token:     %v\n", cfg.Strategies.Gateway.Token != "")
			fmt.Printf("  Render API Key:    %v\n", cfg.Strategies.Render.APIKey != "")
			fmt.Printf("  Solver URL:        %s\n", cfg.Strategies.Solver.URL)
			fmt.Printf("  Browser Proxy:     %v\n", cfg.Strategies.Browser.ProxyURL != "")
			fmt.Printf("\nCache:\n")
			fmt.Printf("  TTL:               %s\n", cfg.Cache.TTL)
			fmt.Printf("  MongoDB:           %v\n", cfg.Cache.MongoURI != "")
			fmt.Printf("\nCloaking:\n")
			fmt.Printf("  Abs Threshold:     %d lines\n", cfg.Cloaking.AbsThreshold)
			fmt.Printf("  Rel Threshold:     %.2f\n", cfg.Cloaking.RelThreshold)
			fmt.Printf("  Strict:            %v\n", cfg.Cloaking.Strict)
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("SEO-Pocket %s\n", config.Version)
		},
	}
}

// loadConfig loads the config and builds the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg.Log), nil
}

// setupLogger creates the structured logger from log config.
func setupLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
