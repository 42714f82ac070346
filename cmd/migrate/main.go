package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/infra/postgres"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// runner is a migration target.
type runner interface {
	ensureSchemaTable(ctx context.Context) error
	applied(ctx context.Context) ([]AppliedMigration, error)
	apply(ctx context.Context, m Migration, appliedBy string) error
	Close() error
}

var (
	driver        = flag.String("driver", "bigquery", "Migration target: bigquery or postgres")
	projectID     = flag.String("project", os.Getenv("BQ_PROJECT_ID"), "GCP project ID (bigquery)")
	datasetID     = flag.String("dataset", "finance", "BigQuery dataset ID")
	databaseURL   = flag.String("database-url", "", "PostgreSQL connection string (or set DATABASE_URL env)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "", "Path to migrations directory (defaults to migrations/<driver>)")
)

func main() {
	_ = godotenv.Load()
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	if *migrationsDir == "" {
		*migrationsDir = "migrations/" + *driver
	}
	if *databaseURL == "" {
		*databaseURL = os.Getenv("DATABASE_URL")
	}

	r, placeholders, err := openRunner(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer r.Close()

	dir, err := resolveDir(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	migrations, err := readMigrations(dir, placeholders, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Str("dir", dir).Msg("Found migration files")

	count, err := migrate(ctx, r, migrations, *appliedBy, log)
	if err != nil {
		r.Close()
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if count == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", count).Msg("Successfully applied migrations")
	}
}

func openRunner(ctx context.Context, log zerolog.Logger) (runner, map[string]string, error) {
	switch *driver {
	case "bigquery":
		if *projectID == "" {
			return nil, nil, fmt.Errorf("-project flag is required. Please specify your GCP project ID")
		}
		client, err := bigquery.NewClient(ctx, *projectID)
		if err != nil {
			return nil, nil, fmt.Errorf("create BigQuery client: %w", err)
		}
		log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")
		placeholders := map[string]string{
			"{{PROJECT_ID}}": *projectID,
			"{{DATASET_ID}}": *datasetID,
		}
		return &bigqueryRunner{client: client, projectID: *projectID, datasetID: *datasetID}, placeholders, nil

	case "postgres":
		if *databaseURL == "" {
			return nil, nil, fmt.Errorf("-database-url or DATABASE_URL is required")
		}
		db, err := postgres.Open(ctx, *databaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("Connected to PostgreSQL")
		return &postgresRunner{db: db}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown driver %q", *driver)
}

// migrate applies every migration not yet recorded and returns how many ran.
// Applied migrations whose file changed since are reported but not re-run.
func migrate(ctx context.Context, r runner, migrations []Migration, appliedBy string, log zerolog.Logger) (int, error) {
	// Ensure schema_migrations table exists
	if err := r.ensureSchemaTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	appliedMigrations, err := r.applied(ctx)
	if err != nil {
		return 0, err
	}
	log.Info().Int("count", len(appliedMigrations)).Msg("Found already applied migrations")

	// Build map of applied versions
	applied := make(map[int]AppliedMigration, len(appliedMigrations))
	for _, am := range appliedMigrations {
		applied[am.Version] = am
	}

	// Apply pending migrations
	count := 0
	for _, m := range migrations {
		label := fmt.Sprintf("%04d_%s", m.Version, m.Name)
		if am, ok := applied[m.Version]; ok {
			if am.Checksum != "" && am.Checksum != m.Checksum {
				log.Warn().Str("migration", label).Msg("Applied migration file has changed since it ran")
			}
			log.Info().Str("migration", label).Msg("[SKIP] already applied")
			continue
		}

		log.Info().Str("migration", label).Msg("[RUN]")
		if err := r.apply(ctx, m, appliedBy); err != nil {
			return count, fmt.Errorf("migration %s: %w", label, err)
		}
		log.Info().Str("migration", label).Msg("[OK]")
		count++
	}

	return count, nil
}
