package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "STOREFRONT_POSTGRES_DSN"
)

type options struct {
	direction string
	steps     int
	dsn       string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.direction, "direction", "up", "migration direction: up|down|status|seed")
	flag.IntVar(&opts.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	flag.Parse()

	if strings.TrimSpace(opts.dsn) == "" {
		opts.dsn = strings.TrimSpace(os.Getenv(envPostgresDSN))
	}
	if opts.dsn == "" {
		fail(envPostgresDSN + " (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fail("%v", err)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch strings.ToLower(strings.TrimSpace(opts.direction)) {
	case "up":
		if err := store.MigrateUp(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return printStatus(ctx, store, out, "migrate up ok")
	case "down":
		steps := opts.steps
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return printStatus(ctx, store, out, "migrate down ok")
	case "status":
		return printStatus(ctx, store, out, "migration status")
	case "seed":
		return seedCatalog(ctx, store, out)
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status|seed)", opts.direction)
	}
}

func printStatus(ctx context.Context, store *postgres.Store, out io.Writer, prefix string) error {
	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	pending, err := store.PendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("pending migrations failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%d\n", prefix, version, count, len(pending))
	for _, name := range pending {
		_, _ = fmt.Fprintf(out, "  pending: %s\n", name)
	}
	return nil
}

// seedCatalog применяет миграции и записывает демонстрационный каталог.
func seedCatalog(ctx context.Context, store *postgres.Store, out io.Writer) error {
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("migrate before seed failed: %w", err)
	}
	catalog := postgres.NewCatalogRepository(store)
	categories, products := app.DemoCatalog()
	for _, c := range categories {
		if err := catalog.UpsertCategory(ctx, c); err != nil {
			return fmt.Errorf("seed category %s: %w", c.ID, err)
		}
	}
	for _, p := range products {
		if err := catalog.UpsertProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	_, _ = fmt.Fprintf(out, "seed ok: categories=%d products=%d\n", len(categories), len(products))
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
