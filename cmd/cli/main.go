package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/finance-ledger/internal/app"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/export"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/reconciler"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.Configure(cfg.LogFormat, cfg.LogLevel)

	switch os.Args[1] {
	case "reconcile":
		runReconcile(cfg, log)
	case "accounts":
		runAccounts(cfg, log)
	case "export":
		runExport(cfg, log)
	case "sync-notion":
		runSyncNotion(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  reconcile    Compare stored balances with the ledger, optionally repairing them")
	fmt.Println("  accounts     List a user's accounts and balances")
	fmt.Println("  export       Write a user's transactions to CSV or XLSX")
	fmt.Println("  sync-notion  Mirror a user's transactions into Notion")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nThe store backend is selected with STORE_BACKEND (see .env).")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// openApp connects the configured store. It exits on failure.
func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) *app.App {
	if err := cfg.ValidateStore(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger")
	}
	return a
}

// parseRange parses optional YYYY-MM-DD bounds. The end date is inclusive.
func parseRange(start, end string) (from, to *time.Time, err error) {
	if start != "" {
		t, err := time.Parse(domain.DateLayout, start)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start-date %q, expected YYYY-MM-DD", start)
		}
		from = &t
	}
	if end != "" {
		t, err := time.Parse(domain.DateLayout, end)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid end-date %q, expected YYYY-MM-DD", end)
		}
		t = t.Add(24*time.Hour - time.Nanosecond)
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, fmt.Errorf("end-date must not be before start-date")
	}
	return from, to, nil
}

func runReconcile(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	owner := fs.String("owner", "", "User ID whose accounts are checked (required)")
	fix := fs.Bool("fix", false, "Rewrite drifted balances from the ledger")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	var (
		drifts []reconciler.Drift
		err    error
	)
	if *fix {
		drifts, err = a.Auditor.Repair(ctx, *owner)
	} else {
		drifts, err = a.Auditor.Audit(ctx, *owner)
	}
	if err != nil {
		log.Error().Err(err).Msg("Reconcile failed")
		a.Close()
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tNAME\tRECORDED\tEXPECTED\tDIFFERENCE\tTXNS\tSTATUS")
	drifted := 0
	for _, d := range drifts {
		status := "ok"
		switch {
		case d.Repaired:
			status = "repaired"
			drifted++
		case !d.InSync():
			status = "drift"
			drifted++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			d.AccountID, d.AccountName,
			d.Recorded.StringFixed(2), d.Expected.StringFixed(2), d.Difference.StringFixed(2),
			d.TransactionCount, status)
	}
	w.Flush()

	fmt.Printf("\n%d of %d accounts drifted.\n", drifted, len(drifts))
	if drifted > 0 && !*fix {
		fmt.Println("Run again with -fix to repair them.")
		a.Close()
		os.Exit(2)
	}
}

func runAccounts(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	owner := fs.String("owner", "", "User ID (required)")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}

	ctx := logger.WithContext(context.Background(), log)
	a := openApp(ctx, cfg, log)
	defer a.Close()

	accounts, err := a.Accounts.List(ctx, *owner)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list accounts")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tINITIAL\tCURRENT")
	for _, acc := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			acc.ID, acc.Name, acc.Type,
			acc.InitialBalance.StringFixed(2), acc.CurrentBalance.StringFixed(2))
	}
	w.Flush()
}

func runExport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	owner := fs.String("owner", "", "User ID (required)")
	format := fs.String("format", "csv", "Output format: csv or xlsx")
	accountID := fs.String("account", "", "Only transactions of this account")
	category := fs.String("category", "", "Only transactions in this category")
	startDate := fs.String("start-date", "", "Start date in YYYY-MM-DD format")
	endDate := fs.String("end-date", "", "End date in YYYY-MM-DD format")
	outDir := fs.String("out", "", "Write to this directory instead of the configured destination")
	name := fs.String("name", "", "Output file name without extension (defaults to a timestamp)")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid --format")
	}
	from, to, err := parseRange(*startDate, *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid date range")
	}
	if *name == "" {
		*name = "statement-" + time.Now().UTC().Format("20060102-150405")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	exporter := a.Exporter
	if *outDir != "" {
		exporter = export.NewExporter(a.Transactions, export.FileWriter{Dir: *outDir}, log)
	}

	location, err := exporter.Run(ctx, export.Request{
		OwnerID: *owner,
		Name:    *name,
		Format:  f,
		Filter: domain.TransactionFilter{
			AccountID: *accountID,
			Category:  *category,
			From:      from,
			To:        to,
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("Export failed")
		return
	}

	fmt.Printf("Exported statement to %s\n", location)
}

func runSyncNotion(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	owner := fs.String("owner", "", "User ID (required)")
	startDate := fs.String("start-date", "", "Start date in YYYY-MM-DD format")
	endDate := fs.String("end-date", "", "End date in YYYY-MM-DD format")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	from, to, err := parseRange(*startDate, *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid date range")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	if a.Syncer == nil {
		log.Error().Msg("Error: NOTION_TOKEN and NOTION_DATABASE_ID must be set")
		return
	}

	log.Info().
		Str("owner_id", *owner).
		Str("start_date", *startDate).
		Str("end_date", *endDate).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	res, err := a.Syncer.Sync(ctx, *owner, from, to, *dryRun)
	if err != nil {
		log.Error().Err(err).Str("result", res.String()).Msg("Sync failed")
		return
	}

	fmt.Printf("Sync completed successfully: %s\n", res)
}
