// Budget planner CLI - resource planning and extracted budget ingestion
//
// Usage:
//
//	budgetplan serve --database-url postgres://... --planner-url http://planner:8001
//	budgetplan plan --file request.json
//	budgetplan ingest --file items.json --dry-run
//	budgetplan categories
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"research-budget/api"
	"research-budget/db/clickhouse"
	"research-budget/db/memory"
	"research-budget/db/postgres"
	"research-budget/decision/ingestion"
	"research-budget/decision/planning"
	"research-budget/pkg/platform"
)

var appLogger = zerolog.Nop()

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "budgetplan",
		Usage:   "Research budget resource planning and extracted line-item ingestion",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"BUDGET_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection URL for the budget ledgers",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "planner-url",
				Usage:   "Base URL of the external planning service (empty disables it)",
				EnvVars: []string{"PLANNER_BASE_URL"},
			},
			&cli.DurationFlag{
				Name:    "planner-timeout",
				Value:   planning.DefaultPlannerTimeout,
				Usage:   "Timeout for a single planning service call",
				EnvVars: []string{"PLANNER_TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Usage:   "ClickHouse host for plan auditing (empty disables auditing)",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "budget",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.BoolFlag{
				Name:    "atomic-categories",
				Usage:   "Roll back a whole category when one of its items fails",
				EnvVars: []string{"BUDGET_ATOMIC_CATEGORIES"},
			},
		}, classifierFlags()...),

		Before: func(c *cli.Context) error {
			appLogger = platform.InitLogger(c.String("log-level"))
			return nil
		},

		Commands: []*cli.Command{
			serveCommand(),
			planCommand(),
			ingestCommand(),
			categoriesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// SHARED WIRING
// =============================================================================

func classifierFlagName(c ingestion.Category) string {
	return "classifier-" + strings.ReplaceAll(c.String(), "_", "-")
}

func classifierFlags() []cli.Flag {
	defaults := ingestion.DefaultClassifiers()
	flags := make([]cli.Flag, 0, len(defaults))
	for _, c := range ingestion.AllCategories() {
		flags = append(flags, &cli.Int64Flag{
			Name:    classifierFlagName(c),
			Value:   defaults[c],
			Usage:   fmt.Sprintf("Line-item classifier id for %s items", c),
			EnvVars: []string{"BUDGET_" + strings.ToUpper(strings.ReplaceAll(classifierFlagName(c), "-", "_"))},
		})
	}
	return flags
}

func dispatchTable(c *cli.Context) (*ingestion.DispatchTable, error) {
	classifiers := make(ingestion.ClassifierTable)
	for _, cat := range ingestion.AllCategories() {
		classifiers[cat] = c.Int64(classifierFlagName(cat))
	}
	return ingestion.NewDispatchTable(classifiers)
}

func planService(c *cli.Context, log zerolog.Logger) (*planning.Service, *clickhouse.Store, error) {
	var planner planning.Planner
	if url := c.String("planner-url"); url != "" {
		planner = planning.NewClient(url, c.Duration("planner-timeout"))
	}
	svc := planning.NewService(planner, log)

	if c.String("clickhouse-host") == "" {
		return svc, nil, nil
	}

	store, err := clickhouse.NewStore(&clickhouse.Config{
		Host:     c.String("clickhouse-host"),
		Port:     c.Int("clickhouse-port"),
		Database: c.String("clickhouse-database"),
		Username: c.String("clickhouse-user"),
		Password: c.String("clickhouse-password"),
	})
	if err != nil {
		return nil, nil, err
	}
	svc.WithAuditSink(store)
	return svc, store, nil
}

func ingestorOptions(c *cli.Context, log zerolog.Logger) []ingestion.Option {
	opts := []ingestion.Option{ingestion.WithLogger(log)}
	if c.Bool("atomic-categories") {
		opts = append(opts, ingestion.WithAtomicCategories())
	}
	return opts
}

func openLedger(ctx context.Context, c *cli.Context) (*postgres.Store, error) {
	url := c.String("database-url")
	if url == "" {
		return nil, fmt.Errorf("--database-url is required")
	}
	cfg := postgres.DefaultConfig()
	cfg.URL = url
	return postgres.NewStore(ctx, cfg)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// SERVE COMMAND
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP port",
				EnvVars: []string{"PORT"},
			},
			&cli.BoolFlag{
				Name:  "create-schema",
				Usage: "Create ledger and audit tables on startup",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := appLogger

	table, err := dispatchTable(c)
	if err != nil {
		return err
	}

	ledger, err := openLedger(ctx, c)
	if err != nil {
		return err
	}
	defer ledger.Close()

	planner, audit, err := planService(c, log)
	if err != nil {
		return err
	}

	if c.Bool("create-schema") {
		if err := ledger.EnsureSchema(ctx); err != nil {
			return err
		}
		if audit != nil {
			if err := audit.EnsureSchema(ctx); err != nil {
				return err
			}
		}
	}

	ingestor := ingestion.NewIngestor(ledger, table, ingestorOptions(c, log)...)

	cfg := api.DefaultConfig()
	cfg.Port = c.Int("port")
	server := api.NewServer(planner, ingestor, table, cfg, log).
		WithReadinessCheck("postgres", ledger)
	if audit != nil {
		defer audit.Close()
		server.WithReadinessCheck("clickhouse", audit).WithOutcomes(audit)
	}

	log.Info().
		Bool("planner_enabled", c.String("planner-url") != "").
		Bool("audit_enabled", audit != nil).
		Bool("atomic_categories", c.Bool("atomic-categories")).
		Msg("Budget services configured")

	return server.Run(ctx)
}

// =============================================================================
// PLAN COMMAND
// =============================================================================

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Produce a resource plan for a request file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to a plan request JSON file",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "heuristic-only",
				Usage: "Skip the planning service",
			},
			&cli.StringFlag{
				Name:  "format",
				Value: "table",
				Usage: "Output format (table, json)",
			},
		},
		Action: runPlan,
	}
}

func runPlan(c *cli.Context) error {
	var req planning.BudgetPlanRequest
	if err := readJSON(c.String("file"), &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	var result planning.BudgetPlanResult
	if c.Bool("heuristic-only") {
		result = planning.Allocate(req.Activities, req.Resources, req.BudgetCeiling)
	} else {
		svc, audit, err := planService(c, appLogger)
		if err != nil {
			return err
		}
		if audit != nil {
			defer audit.Close()
		}
		result = svc.PlanResources(c.Context, req)
	}

	if c.String("format") == "json" {
		return printJSON(result)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ACTIVITY\tRESOURCE\tNAME\tCOST\n")
	for _, a := range result.Assignments {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", a.ActivityID, a.ResourceID, a.ResourceName, a.AssignedCost.StringFixed(2))
	}
	tw.Flush()
	fmt.Println()
	fmt.Printf("Total:      %s of %s\n", result.TotalCost().StringFixed(2), req.BudgetCeiling.StringFixed(2))
	fmt.Printf("Summary:    %s\n", result.Summary)
	fmt.Printf("Criteria:   %s\n", strings.Join(result.Criteria, ", "))
	fmt.Printf("Confidence: %.0f%%\n", result.Confidence*100)
	return nil
}

// =============================================================================
// INGEST COMMAND
// =============================================================================

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Save extracted budget items from a file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to a JSON file with {activityId, items}",
				Required: true,
			},
			&cli.Int64Flag{
				Name:  "activity",
				Usage: "Override the activity id from the file",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Map and count items without writing to the database",
			},
		},
		Action: runIngest,
	}
}

func runIngest(c *cli.Context) error {
	var req api.SaveExtractedRequest
	if err := readJSON(c.String("file"), &req); err != nil {
		return err
	}
	if id := c.Int64("activity"); id > 0 {
		req.ActivityID = id
	}
	if req.ActivityID <= 0 {
		return fmt.Errorf("an activity id is required")
	}

	table, err := dispatchTable(c)
	if err != nil {
		return err
	}

	log := appLogger
	var ledger ingestion.Ledger
	if c.Bool("dry-run") {
		ledger = memory.NewLedger()
	} else {
		store, err := openLedger(c.Context, c)
		if err != nil {
			return err
		}
		defer store.Close()
		ledger = store
	}

	summary := ingestion.NewIngestor(ledger, table, ingestorOptions(c, log)...).
		Ingest(c.Context, req.Items, req.ActivityID)
	if err := printJSON(summary); err != nil {
		return err
	}
	if !summary.Success {
		return cli.Exit(summary.Message, 2)
	}
	return nil
}

// =============================================================================
// CATEGORIES COMMAND
// =============================================================================

func categoriesCommand() *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "List budget categories and their classifier ids",
		Action: func(c *cli.Context) error {
			table, err := dispatchTable(c)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "TAG\tCLASSIFIER\tALIASES\n")
			for _, cat := range ingestion.AllCategories() {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", cat, table.ClassifierID(cat), strings.Join(cat.Aliases(), ", "))
			}
			return tw.Flush()
		},
	}
}
