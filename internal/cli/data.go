package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmrl/opsboard/internal/fleet"
	"github.com/kmrl/opsboard/internal/ingest"
	"github.com/kmrl/opsboard/internal/platform/db"
)

// NewMigrateCmd applies pending schema migrations.
func NewMigrateCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, _, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			applied, err := db.Migrate(cmd.Context(), backend.Pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
}

// NewSeedCmd loads the bundled fixture dataset into an empty database.
func NewSeedCmd(a *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the bundled fleet fixtures into Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, s, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			repo := fleet.NewRepository(backend.Pool)
			n, err := repo.Count(cmd.Context())
			if err != nil {
				return err
			}
			if n > 0 && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "database already holds %d trainsets, use --force to upsert anyway\n", n)
				return nil
			}
			dataset, err := fleet.LoadFixtures()
			if err != nil {
				return err
			}
			inserted, err := repo.Seed(cmd.Context(), dataset)
			if err != nil {
				return err
			}
			if err := fleet.NewCache(backend.Redis, s.CacheTTL).Bump(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: cache not invalidated: %v\n", err)
			}
			printInserted(cmd, inserted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Upsert fixtures even when data exists")
	return cmd
}

// NewIngestCmd uploads a CSV file the way the upload page does.
func NewIngestCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.csv>",
		Short: "Ingest a trainset CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			backend, s, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			repo := fleet.NewRepository(backend.Pool)
			fleetSvc := fleet.NewService(repo, fleet.NewCache(backend.Redis, s.CacheTTL), backend.Logger)
			svc := ingest.NewService(ingest.Config{Writer: repo, Cache: fleetSvc, Logger: backend.Logger})

			result, err := svc.Ingest(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %s: %d rows skipped\n", result.BatchID, result.Skipped)
			printInserted(cmd, result.Inserted)
			return nil
		},
	}
}

func printInserted(cmd *cobra.Command, in fleet.Inserted) {
	fmt.Fprintf(cmd.OutOrStdout(), "trainsets %d, job cards %d, campaigns %d, cleaning slots %d\n",
		in.Trainsets, in.JobCards, in.BrandingCampaigns, in.CleaningSlots)
}
