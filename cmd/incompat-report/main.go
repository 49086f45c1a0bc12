// cmd/incompat-report/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"incompat-report/internal/common/config"
	"incompat-report/internal/common/database"
	apperrors "incompat-report/internal/common/errors"
	"incompat-report/internal/common/logger"
	"incompat-report/internal/common/metrics"
	emailsend "incompat-report/internal/communication/email-send"
	"incompat-report/internal/incompat/pipeline"
)

// SentSentinel is printed on stdout once the relay has accepted the email.
const SentSentinel = "EMAIL_SENT"

type options struct {
	dryRun  bool
	limit   int
	dbPath  string
	envFile string
}

// app carries what the error path needs after cobra returns.
type app struct {
	stdout io.Writer
	log    logger.Logger
	runID  string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	a := &app{
		stdout: stdout,
		log:    logger.NewStructured("info", "console"),
		runID:  uuid.NewString(),
	}

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)

	err := cmd.Execute()
	return apperrors.NewErrorHandler(a.log).HandleRunError(a.runID, err)
}

func newRootCmd(a *app) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "incompat-report",
		Short: "Cross-match SCIL labor records and email the incompatibilidades report",
		Long: `incompat-report reads registros_laborales from the SCIL database, finds
taxpayers (RFC) reported by two or more entities for the same QNA, and emails
a plain-text summary to DESTINO.

Configuration comes from the environment or a .env file:
  SMTP_SERVER, SMTP_PORT, EMAIL_USER, EMAIL_PASS, DESTINO, SMTP_TIMEOUT,
  SCIL_DB, SCIL_DB_DRIVER, REPORT_DETAIL_LIMIT, LOG_LEVEL, LOG_FORMAT,
  METRICS_TEXTFILE`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the report to stdout instead of sending it")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum detail blocks in the report (0 = all)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SCIL database path or DSN (overrides SCIL_DB)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "load variables from this .env file")

	return cmd
}

func (a *app) execute(cmd *cobra.Command, opts *options) error {
	cfg, envPath, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("db") {
		cfg.Database.Path = opts.dbPath
	}
	if cmd.Flags().Changed("limit") {
		cfg.Report.DetailLimit = opts.limit
	}

	a.log = logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	if envPath != "" {
		a.log.Debug("Loaded environment file", map[string]interface{}{"path": envPath})
	}

	mailCfg := emailsend.FromAppConfig(cfg.SMTP)
	var sender pipeline.Sender
	if !opts.dryRun {
		// Fail on missing credentials before touching the database.
		if err := mailCfg.Validate(); err != nil {
			return err
		}
		sender = emailsend.NewService(emailsend.ServiceDependencies{Logger: a.log}, mailCfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := pipeline.NewService(pipeline.ServiceDependencies{
		Opener:  database.NewSource(cfg.Database),
		Sender:  sender,
		Logger:  a.log,
		Metrics: metrics.NewRunMetrics(),
	}, pipeline.Config{MetricsTextfile: cfg.Metrics.TextfilePath})

	out, err := svc.Execute(ctx, &pipeline.Input{
		RunID:       a.runID,
		DryRun:      opts.dryRun,
		DetailLimit: cfg.Report.DetailLimit,
	})
	if err != nil {
		return err
	}

	if opts.dryRun {
		_, err = fmt.Fprintln(a.stdout, out.Report)
		return err
	}
	_, err = fmt.Fprintln(a.stdout, SentSentinel)
	return err
}
