package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"listingdesk/config"
	"listingdesk/logging"
	"listingdesk/scheduler"
	"listingdesk/storage"
	"listingdesk/webhook"
)

// serviceGateway connects with the service role, which the payment webhook
// and the publish sweep need to write fields clients cannot.
func serviceGateway(ctx context.Context, cfg *config.Config) (*storage.PostgresGateway, error) {
	if cfg.Supabase.DBURL == "" {
		return nil, errors.New("SUPABASE_DB_URL is required")
	}
	gw, err := storage.NewPostgresGateway(ctx, cfg.Supabase.DBURL)
	if err != nil {
		return nil, fmt.Errorf("connect to Postgres: %w", err)
	}
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Supabase.DBURL))
	return gw, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the payment webhook and the scheduled publish sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logFile, err := logging.Setup(cfg.LogPath, cfg.LogLevel)
			if err != nil {
				log.Printf("Warning: could not set up file logging: %v", err)
			} else {
				defer logFile.Close()
			}
			if cfg.Stripe.WebhookSecret == "" {
				return errors.New("STRIPE_WEBHOOK_SECRET is required")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			gw, err := serviceGateway(ctx, cfg)
			if err != nil {
				return err
			}
			defer gw.Close()

			sched := scheduler.New(gw, cfg.Scheduler.PublishCron)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			sched.Trigger()

			srv := webhook.NewServer(webhook.StripeVerifier(cfg.Stripe.WebhookSecret), webhook.NewProcessor(gw))
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.WebhookAddr) }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-sigCh:
			case err = <-errCh:
				if err != nil {
					log.Printf("Webhook server error: %v", err)
				}
			}

			log.Println("Shutting down...")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				log.Printf("Webhook shutdown: %v", serr)
			}
			sched.Stop()
			log.Println("Goodbye!")
			return err
		},
	}
}

func publishSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish-sweep",
		Short: "Publish paid listings whose scheduled date has passed, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			gw, err := serviceGateway(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer gw.Close()

			n, err := scheduler.New(gw, "").Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Published %d listings\n", n)
			return nil
		},
	}
}
