// Package pipeline runs one report: load, cross-match, resolve, render, send.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"incompat-report/internal/common/database"
	apperrors "incompat-report/internal/common/errors"
	"incompat-report/internal/common/logger"
	"incompat-report/internal/common/metrics"
	emailsend "incompat-report/internal/communication/email-send"
	"incompat-report/internal/incompat/catalog"
	"incompat-report/internal/incompat/crossmatch"
	"incompat-report/internal/incompat/loader"
	"incompat-report/internal/incompat/report"
)

// Sender delivers the rendered report. *emailsend.Service satisfies it.
type Sender interface {
	Execute(ctx context.Context, input *emailsend.Input) (*emailsend.Output, error)
}

type ServiceDependencies struct {
	Opener  database.Opener
	Sender  Sender
	Logger  logger.Logger
	Metrics *metrics.RunMetrics
}

type Config struct {
	MetricsTextfile string
}

type Input struct {
	RunID       string // generated when empty
	DryRun      bool
	DetailLimit int
}

type Output struct {
	RunID        string
	Report       string
	Summary      report.Summary
	RecordGroups int
	EmailSent    bool
	MessageID    string
	Duration     time.Duration
}

type Service struct {
	deps    ServiceDependencies
	config  Config
	logger  logger.Logger
	metrics *metrics.RunMetrics
	now     func() time.Time
	newID   func() string
}

func NewService(deps ServiceDependencies, config Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewRunMetrics()
	}
	return &Service{
		deps:    deps,
		config:  config,
		logger:  log,
		metrics: m,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Execute runs the report once. The email is attempted at most once and
// only after the full text has been rendered. Metrics are recorded for both
// outcomes.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := s.now()
	out := &Output{RunID: input.RunID}
	if out.RunID == "" {
		out.RunID = s.newID()
	}
	log := s.logger.WithFields(map[string]interface{}{"runId": out.RunID})

	log.Info("Report run started", map[string]interface{}{
		"database":    s.deps.Opener.Location(),
		"dryRun":      input.DryRun,
		"detailLimit": input.DetailLimit,
	})

	err := s.run(ctx, input, out, log)

	out.Duration = s.now().Sub(start)
	s.metrics.Finish(out.Duration, out.EmailSent, s.now(), err)
	if werr := s.metrics.WriteTextfile(s.config.MetricsTextfile); werr != nil {
		log.Warn("Failed to write metrics textfile", map[string]interface{}{"error": werr})
	}

	if err != nil {
		return nil, err
	}

	log.Info("Report run completed", map[string]interface{}{
		"cases":      out.Summary.Total,
		"emailSent":  out.EmailSent,
		"messageId":  out.MessageID,
		"durationMs": out.Duration.Milliseconds(),
	})
	return out, nil
}

func (s *Service) run(ctx context.Context, input *Input, out *Output, log logger.Logger) error {
	groups, err := loader.New(s.deps.Opener, log).Load(ctx)
	if err != nil {
		return err
	}
	out.RecordGroups = len(groups)
	s.metrics.ObserveLoad(loader.CountRecords(groups), len(groups))

	cases := crossmatch.Detect(groups)

	cat, err := catalog.New(s.deps.Opener, log).Load(ctx)
	if err != nil {
		return err
	}

	out.Summary = report.Summarize(cases, cat)
	s.metrics.ObserveCases(out.Summary.Total, out.Summary.WithMunicipio)

	out.Report = report.Render(cases, cat, report.Options{
		DBPath:      s.deps.Opener.Location(),
		DetailLimit: input.DetailLimit,
	})

	if input.DryRun {
		log.Info("Dry run, email not sent", nil)
		return nil
	}
	if s.deps.Sender == nil {
		return apperrors.NewConfigInvalidError("no email sender configured")
	}

	sent, err := s.deps.Sender.Execute(ctx, &emailsend.Input{Body: out.Report, RunID: out.RunID})
	if err != nil {
		return err
	}
	out.EmailSent = true
	out.MessageID = sent.MessageID
	return nil
}
