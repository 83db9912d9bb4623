package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/quotemill/internal/config"
	"github.com/soyeahso/quotemill/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Quotemill status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Quotemill %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			// Load config (missing file falls back to defaults)
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			// Gateway config
			fmt.Printf("Gateway: port=%d bind=%s auth=%s\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode)

			// Discovery config
			fmt.Printf("Discovery: maxTurns=%d tailWindow=%d\n",
				cfg.Discovery.MaxTurns, cfg.Discovery.TailWindow)

			// Enrichment config
			keywords := "(defaults)"
			if len(cfg.Enrichment.Keywords) > 0 {
				keywords = strings.Join(cfg.Enrichment.Keywords, ",")
			}
			fmt.Printf("Enrichment: cadence=%d timeout=%ds keywords=%s\n",
				cfg.Enrichment.Cadence, cfg.Enrichment.TimeoutSeconds, keywords)

			// Pricing config
			catalog := cfg.Pricing.CatalogPath
			if catalog == "" {
				catalog = "(built-in)"
			}
			fmt.Printf("Pricing: currency=%s catalog=%s\n", cfg.Pricing.Currency, catalog)

			// Provider
			if cfg.Provider.BaseURL != "" {
				fmt.Printf("Provider: %s\n", cfg.Provider.BaseURL)
			} else {
				fmt.Println("Provider: (not configured)")
			}

			// Session config
			fmt.Printf("Session: store=%s\n", cfg.Session.Store)

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
