// foodcost CLI - restaurant food-cost sentinel
//
// Usage:
//
//	foodcost match --limit 30
//	foodcost impact --period month --format markdown
//	foodcost audit --fail-on-critical
//	foodcost serve --port 8080
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pg-png/wwithai-foodcost-sentinel/api"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	platform.LoadEnv(".env")
	if err := newApp(platform.Load()).Run(os.Args); err != nil {
		platform.LogFatal("foodcost failed", err)
	}
}

func newApp(cfg platform.Config) *cli.App {
	return &cli.App{
		Name:    "foodcost",
		Usage:   "Track supplier invoice prices against recipe costs",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   cfg.LogLevel,
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Value: cfg.Development(),
				Usage: "Human-readable console logs",
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   cfg.StoreDriver,
				Usage:   "Record store (sqlite, postgres, snapshot)",
				EnvVars: []string{"STORE_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "dsn",
				Value:   cfg.StoreDSN,
				Usage:   "Record store DSN, or the snapshot file path",
				EnvVars: []string{"STORE_DSN"},
			},
			&cli.StringFlag{
				Name:    "tables",
				Value:   cfg.TablesFile,
				Usage:   "YAML file overriding synonym, pack and audit tables",
				EnvVars: []string{"TABLES_FILE"},
			},
			&cli.StringFlag{
				Name:    "invoices",
				Value:   invoicesFromStore,
				Usage:   "Invoice source (store, clickhouse, s3)",
				EnvVars: []string{"INVOICE_SOURCE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-dsn",
				Value:   cfg.ClickHouseDSN,
				Usage:   "ClickHouse DSN for price history and run snapshots",
				EnvVars: []string{"CLICKHOUSE_DSN"},
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Value:   cfg.WebhookURL,
				Usage:   "Send update instructions to this webhook instead of the record store",
				EnvVars: []string{"UPDATE_WEBHOOK_URL"},
			},
			&cli.StringFlag{
				Name:    "webhook-token",
				Value:   cfg.WebhookToken,
				Usage:   "Bearer token for the update webhook",
				EnvVars: []string{"UPDATE_WEBHOOK_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "gemini-key",
				Value:   cfg.GeminiAPIKey,
				Usage:   "Gemini API key for match and alert suggestions",
				EnvVars: []string{"GEMINI_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "gemini-model",
				Value:   cfg.GeminiModel,
				Usage:   "Gemini model",
				EnvVars: []string{"GEMINI_MODEL"},
			},
			&cli.StringFlag{
				Name:    "export-bucket",
				Value:   cfg.S3Bucket,
				Usage:   "Bucket holding invoice extraction exports",
				EnvVars: []string{"EXPORT_BUCKET"},
			},
			&cli.StringFlag{
				Name:    "export-prefix",
				Value:   cfg.S3Prefix,
				Usage:   "Key prefix of invoice exports",
				EnvVars: []string{"EXPORT_PREFIX"},
			},
			&cli.StringFlag{
				Name:    "export-endpoint",
				Value:   cfg.S3Endpoint,
				Usage:   "S3-compatible endpoint URL",
				EnvVars: []string{"EXPORT_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Value:   cfg.AWSRegion,
				Usage:   "Bucket region",
				EnvVars: []string{"AWS_REGION"},
			},
		},

		Before: func(c *cli.Context) error {
			platform.InitLogger(c.String("log-level"), c.Bool("pretty"))
			return nil
		},

		Commands: []*cli.Command{
			matchCommand(),
			impactCommand(),
			auditCommand(),
			conversionsCommand(),
			alertsCommand(),
			fixCommand(),
			ingestCommand(),
			importCommand(),
			serveCommand(cfg),
		},
	}
}

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand(cfg platform.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the food-cost API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   cfg.Port,
				Usage:   "API server port",
				EnvVars: []string{"PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"CORS_ORIGINS"},
			},
			&cli.DurationFlag{
				Name:    "request-timeout",
				Value:   cfg.RequestTimeout,
				Usage:   "Per-request timeout",
				EnvVars: []string{"REQUEST_TIMEOUT"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	rt, err := setup(c, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	origins := strings.Split(c.String("cors-origins"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	conf := api.DefaultConfig()
	conf.Port = c.Int("port")
	conf.CORSOrigins = origins
	conf.RequestTimeout = c.Duration("request-timeout")

	server := api.NewServer(rt.svc, conf).WithReadiness(rt.pingers...)
	if rt.history != nil {
		server.WithRuns(rt.history)
	}
	return server.StartWithGracefulShutdown()
}
