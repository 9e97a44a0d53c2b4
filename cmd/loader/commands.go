package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"trendsensei/internal/app"
	"trendsensei/internal/shared"
	"trendsensei/internal/storage/sqlstore"
)

var errLocked = errors.New("another loader holds the lock")

type loader struct {
	cfg      shared.Config
	driver   string
	dsn      string
	lockPath string
	wait     time.Duration
}

func newRootCmd(cfg shared.Config) *cobra.Command {
	l := &loader{cfg: cfg}
	root := &cobra.Command{
		Use:           "loader",
		Short:         "Create the schema and load review and product data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&l.driver, "driver", cfg.StoreDriver, "store driver: mysql|postgres|sqlite")
	root.PersistentFlags().StringVar(&l.dsn, "dsn", cfg.StoreDSN, "store DSN")
	root.PersistentFlags().StringVar(&l.lockPath, "lock", filepath.Join(os.TempDir(), "trendsensei-loader.lock"), "lock file serializing loader runs")
	root.PersistentFlags().DurationVar(&l.wait, "lock-wait", 0, "how long to wait for the lock (0 fails at once)")

	root.AddCommand(l.migrateCmd(), l.importCmd(), l.productsCmd())
	return root
}

func (l *loader) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return l.withRepo(cmd.Context(), func(ctx context.Context, repo *sqlstore.Repo) error {
				if err := repo.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema ok")
				return nil
			})
		},
	}
}

func (l *loader) importCmd() *cobra.Command {
	var aliasPath string
	cmd := &cobra.Command{
		Use:   "import <reviews.csv>",
		Short: "Insert reviews from a CSV export; rows already present are skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var aliases app.Aliases
			if aliasPath != "" {
				a, err := app.LoadAliases(aliasPath)
				if err != nil {
					return err
				}
				aliases = a
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return l.withRepo(cmd.Context(), func(ctx context.Context, repo *sqlstore.Repo) error {
				if err := repo.Migrate(ctx); err != nil {
					return err
				}
				st, err := l.importer(repo).ImportReviews(ctx, f, aliases)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rows=%d inserted=%d batches=%d\n", st.Rows, st.Inserted, st.Batches)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&aliasPath, "aliases", "", "YAML file with extra column names per review field")
	return cmd
}

func (l *loader) productsCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "products <snapshot.json>",
		Short: "Upsert products from a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return l.withRepo(cmd.Context(), func(ctx context.Context, repo *sqlstore.Repo) error {
				if err := repo.Migrate(ctx); err != nil {
					return err
				}
				n, err := l.importer(repo).ImportProducts(ctx, f, source)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "products=%d\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source tag for products that carry none")
	return cmd
}

func (l *loader) importer(repo *sqlstore.Repo) *app.ImportService {
	return app.NewImportService(repo, app.ImportConfig{
		Workers:   l.cfg.ImportWorkers,
		BatchSize: l.cfg.ImportBatchSize,
	})
}

// withRepo holds the loader lock for the duration of fn.
func (l *loader) withRepo(ctx context.Context, fn func(context.Context, *sqlstore.Repo) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fl := flock.New(l.lockPath)
	var (
		ok  bool
		err error
	)
	if l.wait > 0 {
		lctx, cancel := context.WithTimeout(ctx, l.wait)
		defer cancel()
		ok, err = fl.TryLockContext(lctx, 100*time.Millisecond)
	} else {
		ok, err = fl.TryLock()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("lock %s: %w", l.lockPath, err)
	}
	if !ok {
		return fmt.Errorf("%w (%s)", errLocked, l.lockPath)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			log.Warn().Err(err).Msg("unlock")
		}
	}()

	d, err := sqlstore.DialectFor(l.driver)
	if err != nil {
		return err
	}
	repo, err := sqlstore.Open(ctx, d, l.dsn)
	if err != nil {
		return err
	}
	defer repo.Close()

	start := time.Now()
	err = fn(ctx, repo)
	log.Info().Str("driver", d.Name).Dur("took", time.Since(start)).Err(err).Msg("loader step done")
	return err
}
