package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/soyeahso/quotemill/internal/config"
	"github.com/soyeahso/quotemill/internal/discovery"
	"github.com/soyeahso/quotemill/internal/enrich"
	"github.com/soyeahso/quotemill/internal/gateway"
	"github.com/soyeahso/quotemill/internal/pipeline"
	"github.com/soyeahso/quotemill/internal/provider"
	"github.com/soyeahso/quotemill/internal/session"
	"github.com/soyeahso/quotemill/internal/store"
	"github.com/spf13/cobra"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the Quotemill gateway server",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			// Load raw config for RPC access
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				raw = make(map[string]any)
			}

			// Initialize session store (SQLite or in-memory)
			var sessions session.Store
			if cfg.Session.Store == "sqlite" {
				if err := paths.EnsureDirs(); err != nil {
					return fmt.Errorf("creating data directory: %w", err)
				}
				db, err := store.Open(paths.Database, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				sessions = store.NewSQLiteStore(db)
				log.Info().Str("path", paths.Database).Msg("using SQLite session store")
			} else {
				sessions = session.NewMemoryStore()
				log.Info().Msg("using in-memory session store")
			}

			reasoner, extractor := buildProviders(cfg)
			pricer, err := buildPricer(cfg)
			if err != nil {
				return err
			}

			sup := enrich.NewSupervisor(enrich.Config{
				Keywords: cfg.Enrichment.Keywords,
				Cadence:  cfg.Enrichment.Cadence,
				Timeout:  time.Duration(cfg.Enrichment.TimeoutSeconds) * time.Second,
			}, extractor, sessions, log)

			pipe := pipeline.New(pricer, provider.NewMarkdownRenderer(), sup, sessions, cfg.Pricing.Currency, log)

			opts := []gateway.ServerOption{
				gateway.WithConfigRaw(raw),
				gateway.WithSessions(sessions),
				gateway.WithSupervisor(sup),
				gateway.WithPipeline(pipe),
			}

			if reasoner != nil {
				loop := discovery.NewLoop(discovery.Config{
					MaxTurns:   cfg.Discovery.MaxTurns,
					TailWindow: cfg.Discovery.TailWindow,
				}, reasoner, sup, sessions, log)
				opts = append(opts, gateway.WithLoop(loop))
			} else {
				log.Warn().Msg("no provider configured — session.turn will be unavailable")
			}

			srv := gateway.New(cfg, log, opts...)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// buildProviders returns the reasoner and extractor from config. The
// reasoner is nil when no provider endpoint is configured; extraction
// falls back to the built-in keyword scanner.
func buildProviders(cfg config.Config) (provider.Reasoner, provider.Extractor) {
	if cfg.Provider.BaseURL == "" {
		return nil, provider.NewScanExtractor()
	}
	client := provider.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
	return client, client
}

func buildPricer(cfg config.Config) (provider.Pricer, error) {
	if cfg.Pricing.CatalogPath == "" {
		return provider.NewCatalogPricer(), nil
	}
	pricer, err := provider.LoadCatalog(cfg.Pricing.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	log.Info().Str("path", cfg.Pricing.CatalogPath).Msg("using pricing catalog")
	return pricer, nil
}
