package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"tribeboard/internal/cloud"
	"tribeboard/internal/codegen"
	"tribeboard/internal/config"
	"tribeboard/internal/database"
	"tribeboard/internal/models"
	"tribeboard/internal/service"
	"tribeboard/internal/syncer"
)

type app struct {
	cfg          *config.Config
	store        *database.DB
	client       *cloud.Client
	sync         *syncer.Manager
	orchestrator *service.Orchestrator
}

// newApp wires the engine. The remote record service is the in-memory
// implementation; a deployment binds the real platform service here.
func newApp() (*app, error) {
	cfg := config.Load()

	store, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	client := cloud.NewClient(cloud.NewMemoryService())
	manager := syncer.NewManager(store, client)
	manager.SetOfflineMode(cfg.OfflineMode)

	opts := codegen.DefaultOptions()
	opts.Length = cfg.CodeLength
	opts.MaxRetries = cfg.CodeMaxRetries
	opts.BaseDelay = cfg.CodeBaseDelay
	opts.MaxDelay = cfg.CodeMaxDelay

	return &app{
		cfg:          cfg,
		store:        store,
		client:       client,
		sync:         manager,
		orchestrator: service.NewOrchestrator(store, client, manager, codegen.New(opts)),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Printf("closing database: %v", err)
	}
}

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "tribeboard",
		Short:         "Offline-first family workspace engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), syncCmd(), codeCmd(), familyCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine, draining the sync queue on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			if err := a.client.EnsureZoneAndSubscriptions(ctx); err != nil {
				log.Printf("zone setup deferred: %v", err)
			}

			c := cron.New()
			_, err = c.AddFunc("@every "+a.cfg.SyncInterval.String(), func() {
				report, err := a.sync.SyncPendingRecords(ctx)
				if err != nil {
					log.Printf("sync pass failed: %v", err)
					return
				}
				if report.Synced > 0 || report.Skipped > 0 || len(report.Failed) > 0 {
					log.Printf("sync pass: %d synced, %d pending, %d failed",
						report.Synced, report.Skipped, len(report.Failed))
				}
			})
			if err != nil {
				return fmt.Errorf("scheduling sync: %w", err)
			}
			c.Start()
			defer c.Stop()

			log.Printf("engine running (db: %s, sync every %s, offline: %v)",
				a.cfg.DatabasePath, a.cfg.SyncInterval, a.cfg.OfflineMode)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			log.Println("shutting down")
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Drain the pending sync queue once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.sync.SyncPendingRecords(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%d synced, %d pending, %d failed\n",
				report.Synced, report.Skipped, len(report.Failed))
			for _, failure := range report.Failed {
				fmt.Printf("  %v\n", failure)
			}
			return nil
		},
	}
}

func familyCmd() *cobra.Command {
	family := &cobra.Command{
		Use:   "family",
		Short: "Create or join a family",
	}

	var creatorName string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a family and become its owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			creator := models.NewMember(creatorName, uuid.NewString())
			result, err := a.orchestrator.CreateFamily(cmd.Context(), args[0], creator)
			if err != nil {
				return err
			}
			fmt.Printf("created %q with code %s\n", result.Family.Name, result.Family.Code)
			if result.PendingSync {
				fmt.Println("cloud unreachable; the family will sync later")
			}
			return nil
		},
	}
	create.Flags().StringVar(&creatorName, "as", "Owner", "display name of the creating member")

	var joinerName string
	join := &cobra.Command{
		Use:   "join <code>",
		Short: "Join a family by its code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			joiner := models.NewMember(joinerName, uuid.NewString())
			result, err := a.orchestrator.JoinFamily(cmd.Context(), args[0], joiner)
			if err != nil {
				return err
			}
			fmt.Printf("joined %q as %s\n", result.Family.Name, result.Membership.Role)
			if result.PendingSync {
				fmt.Println("cloud unreachable; the membership will sync later")
			}
			return nil
		},
	}
	join.Flags().StringVar(&joinerName, "as", "Member", "display name of the joining member")

	family.AddCommand(create, join)
	return family
}

func codeCmd() *cobra.Command {
	code := &cobra.Command{
		Use:   "code",
		Short: "Work with family join codes",
	}

	code.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Generate a code unique against the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			opts := codegen.DefaultOptions()
			opts.Length = a.cfg.CodeLength
			gen := codegen.New(opts)

			checkLocal := func(ctx context.Context, candidate string) (bool, error) {
				inUse, err := a.store.CodeInUse(ctx, candidate)
				return !inUse, err
			}
			generated, err := gen.Generate(cmd.Context(), checkLocal, nil)
			if err != nil {
				return err
			}
			fmt.Println(generated)
			return nil
		},
	})

	code.AddCommand(&cobra.Command{
		Use:   "check <code>",
		Short: "Validate a code's format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized := codegen.Normalize(args[0])
			if err := codegen.Validate(normalized); err != nil {
				return err
			}
			fmt.Printf("%s is well-formed\n", normalized)
			return nil
		},
	})

	return code
}
