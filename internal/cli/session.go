package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/soyeahso/quotemill/internal/config"
	"github.com/soyeahso/quotemill/internal/discovery"
	"github.com/soyeahso/quotemill/internal/domain"
	"github.com/soyeahso/quotemill/internal/enrich"
	"github.com/soyeahso/quotemill/internal/pipeline"
	"github.com/soyeahso/quotemill/internal/provider"
	"github.com/soyeahso/quotemill/internal/session"
	"github.com/soyeahso/quotemill/internal/store"
	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Interact with quoting sessions",
	}

	cmd.AddCommand(newSessionTurnCmd())
	cmd.AddCommand(newSessionStatusCmd())
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionResetCmd())
	cmd.AddCommand(newSessionQuoteCmd())
	return cmd
}

// openStore opens the session store named in config. The returned
// close func is a no-op for the in-memory store.
func openStore(cfg config.Config) (session.Store, func(), error) {
	if cfg.Session.Store != "sqlite" {
		log.Warn().Msg("in-memory store configured — sessions will not persist across invocations")
		return session.NewMemoryStore(), func() {}, nil
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := store.Open(paths.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return store.NewSQLiteStore(db), func() { db.Close() }, nil
}

func newSessionTurnCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "turn [message]",
		Short: "Send a message to a quoting session and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			reasoner, extractor := buildProviders(cfg)
			if reasoner == nil {
				return fmt.Errorf("no provider configured — set provider.baseUrl first")
			}

			sessions, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			sup := enrich.NewSupervisor(enrich.Config{
				Keywords: cfg.Enrichment.Keywords,
				Cadence:  cfg.Enrichment.Cadence,
				Timeout:  time.Duration(cfg.Enrichment.TimeoutSeconds) * time.Second,
			}, extractor, sessions, log)

			loop := discovery.NewLoop(discovery.Config{
				MaxTurns:   cfg.Discovery.MaxTurns,
				TailWindow: cfg.Discovery.TailWindow,
			}, reasoner, sup, sessions, log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := loop.Turn(ctx, sessionID, message)
			if err != nil {
				return err
			}

			fmt.Println(result.Reply)
			fmt.Fprintf(cmd.ErrOrStderr(), "\n[turn=%d state=%s done=%v]\n",
				result.TurnCount, result.State, result.Done)

			// Let a triggered enrichment land before the process exits.
			waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			sup.Wait(waitCtx, sessionID)

			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "default", "session ID")
	return cmd
}

func newSessionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show session state and gathered inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			sessions, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			sess := sessions.Get(args[0])
			if sess == nil {
				return fmt.Errorf("session %q not found", args[0])
			}

			fmt.Printf("Session: %s\n", sess.ID)
			fmt.Printf("State:   %s (turn %d, done=%v)\n", sess.State, sess.TurnCount, sess.Done)
			fmt.Printf("Task:    %s\n", sess.TaskStatus)
			if sess.TaskError != "" {
				fmt.Printf("Error:   %s\n", sess.TaskError)
			}
			if len(sess.Items) > 0 {
				fmt.Println("\nInventory:")
				for _, item := range sess.Items {
					fmt.Printf("  %-30s %-12s x%g\n", item.Name, item.Region, item.Quantity)
				}
			}
			if sess.Pricing != nil {
				fmt.Printf("\nTotal:   %.2f %s\n", sess.Pricing.Total, sess.Pricing.Currency)
			}
			if sess.Document != "" {
				fmt.Println("\nDocument ready. Run `quotemill session quote` to print it.")
			}
			return nil
		},
	}
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List session IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			sessions, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			ids := sessions.List()
			if len(ids) == 0 {
				fmt.Println("(no sessions)")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func newSessionResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>",
		Short: "Delete a session and its conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			sessions, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			sessions.Delete(args[0])
			fmt.Printf("Reset session %s\n", args[0])
			return nil
		},
	}
}

func newSessionQuoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote <id>",
		Short: "Run the quote pipeline for a completed session and print the document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			_, extractor := buildProviders(cfg)
			pricer, err := buildPricer(cfg)
			if err != nil {
				return err
			}

			sessions, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			// Document already rendered on a previous run: just print it.
			if sess := sessions.Get(args[0]); sess != nil && sess.Document != "" {
				fmt.Println(sess.Document)
				return nil
			}

			sup := enrich.NewSupervisor(enrich.Config{
				Keywords: cfg.Enrichment.Keywords,
				Cadence:  cfg.Enrichment.Cadence,
				Timeout:  time.Duration(cfg.Enrichment.TimeoutSeconds) * time.Second,
			}, extractor, sessions, log)

			pipe := pipeline.New(pricer, provider.NewMarkdownRenderer(), sup, sessions, cfg.Pricing.Currency, log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			events, err := pipe.Run(ctx, args[0])
			if err != nil {
				return err
			}

			for ev := range events {
				switch ev.Type {
				case domain.ProgressStageStart:
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s]\n", ev.Stage)
				case domain.ProgressStageProgress:
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", ev.Message)
				case domain.ProgressComplete:
					fmt.Println(ev.Result.Document)
				case domain.ProgressFailed:
					return fmt.Errorf("pipeline failed at %s: %s", ev.Stage, ev.Error)
				}
			}
			return nil
		},
	}
}
