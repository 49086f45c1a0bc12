package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"incompat-report/internal/common/config"
	"incompat-report/internal/common/database"
	apperrors "incompat-report/internal/common/errors"
	"incompat-report/internal/common/logger"
	"incompat-report/internal/common/metrics"
	emailsend "incompat-report/internal/communication/email-send"
	"incompat-report/internal/testutil"
)

// ==========================
// Mock Sender
// ==========================

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Execute(ctx context.Context, input *emailsend.Input) (*emailsend.Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*emailsend.Output), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

func scilFixture() testutil.Fixture {
	return testutil.Fixture{
		Records: []testutil.LaborRow{
			{RFC: "AAA", Ente: "E1", Nombre: "ANA", Qnas: `{"Q1": 1, "Q2": 1}`},
			{RFC: "AAA", Ente: "M1", Nombre: "ANA", Qnas: `{"Q2": 1}`},
			{RFC: "BBB", Ente: "E1", Nombre: "BETO", Qnas: `{"Q1": 1}`},
			{RFC: "BBB", Ente: "E2", Nombre: "BETO", Qnas: `{"Q3": 1}`},
			{RFC: "CCC", Ente: "E1", Nombre: "CARLA", Qnas: "not json"},
			{RFC: "CCC", Ente: "E2", Nombre: "CARLA", Qnas: `{"Q1": 1}`},
			{RFC: "DDD", Ente: "E1", Nombre: "DORA", Qnas: `{"Q4": 1}`},
			{RFC: "DDD", Ente: "E2", Nombre: "DORA", Qnas: `{"Q4": 1}`},
		},
		Entes: []testutil.CatalogRow{
			{Clave: "E1", Nombre: "Secretaria de Salud", Siglas: "SSA"},
			{Clave: "E2", Nombre: "Secretaria de Educacion", Siglas: "SEPE"},
		},
		Municipios: []testutil.CatalogRow{
			{Clave: "M1", Nombre: "Apizaco", Siglas: "APZ"},
		},
	}
}

func newTestService(t *testing.T, fixture testutil.Fixture, sender Sender, cfg Config) (*Service, *metrics.RunMetrics, string) {
	path := testutil.NewSCILDB(t, fixture)
	m := metrics.NewRunMetrics()
	svc := NewService(ServiceDependencies{
		Opener:  database.NewSource(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}),
		Sender:  sender,
		Logger:  logger.NewTestLogger(t),
		Metrics: m,
	}, cfg)
	svc.newID = func() string { return "run-1" }
	return svc, m, path
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_SendsRenderedReport(t *testing.T) {
	sender := new(MockSender)
	sender.On("Execute", mock.Anything, mock.MatchedBy(func(in *emailsend.Input) bool {
		return in.RunID == "run-1" && strings.HasPrefix(in.Body, "REPORTE DE INCOMPATIBILIDADES - SASP\n")
	})).Return(&emailsend.Output{Success: true, MessageID: "<run-1@smtp>"}, nil).Once()

	svc, m, path := newTestService(t, scilFixture(), sender, Config{})

	out, err := svc.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, "run-1", out.RunID)
	assert.True(t, out.EmailSent)
	assert.Equal(t, "<run-1@smtp>", out.MessageID)
	assert.Equal(t, 4, out.RecordGroups)
	assert.Equal(t, 2, out.Summary.Total)
	assert.Equal(t, 1, out.Summary.WithMunicipio)

	assert.Contains(t, out.Report, "Base de datos: "+path)
	assert.Contains(t, out.Report, "Total casos incompatibilidad (RFC): 2")
	assert.Contains(t, out.Report, "01. RFC: AAA\n    Nombre: ANA\n    Entes con cruce: SECRETARIA DE SALUD (SSA), APIZACO (APZ)\n    QNAs en cruce: Q2")
	assert.Contains(t, out.Report, "02. RFC: DDD")
	assert.NotContains(t, out.Report, "RFC: BBB")
	assert.NotContains(t, out.Report, "RFC: CCC")

	assert.Equal(t, 8.0, prom.ToFloat64(m.RecordsLoaded))
	assert.Equal(t, 4.0, prom.ToFloat64(m.TaxpayersLoaded))
	assert.Equal(t, 2.0, prom.ToFloat64(m.Cases))
	assert.Equal(t, 1.0, prom.ToFloat64(m.EmailSent))
	assert.Greater(t, prom.ToFloat64(m.LastRunSuccess), 0.0)

	sender.AssertExpectations(t)
}

func TestExecute_DryRunDoesNotSend(t *testing.T) {
	sender := new(MockSender)
	svc, m, _ := newTestService(t, scilFixture(), sender, Config{})

	out, err := svc.Execute(context.Background(), &Input{DryRun: true, DetailLimit: 1})
	require.NoError(t, err)

	assert.False(t, out.EmailSent)
	assert.Contains(t, out.Report, "Detalle (primeros 1 casos):")
	assert.Equal(t, 1, strings.Count(out.Report, ". RFC: "))
	assert.Equal(t, 0.0, prom.ToFloat64(m.EmailSent))
	sender.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestExecute_NoCases(t *testing.T) {
	fixture := testutil.Fixture{
		Records: []testutil.LaborRow{
			{RFC: "AAA", Ente: "E1", Nombre: "ANA", Qnas: `{"Q1": 1}`},
			{RFC: "BBB", Ente: "E1", Nombre: "BETO", Qnas: `{"Q1": 1}`},
		},
	}
	sender := new(MockSender)
	sender.On("Execute", mock.Anything, mock.Anything).Return(&emailsend.Output{MessageID: "<m>"}, nil).Once()
	svc, _, _ := newTestService(t, fixture, sender, Config{})

	out, err := svc.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(out.Report, "No se detectaron casos de incompatibilidad por cruce de QNAs."))
	assert.True(t, out.EmailSent, "an empty report is still delivered")
	sender.AssertExpectations(t)
}

func TestExecute_SendFailure(t *testing.T) {
	smtpErr := apperrors.NewSMTPError("auth", stderrors.New("535 invalid credentials"))
	sender := new(MockSender)
	sender.On("Execute", mock.Anything, mock.Anything).Return(nil, smtpErr).Once()

	svc, m, _ := newTestService(t, scilFixture(), sender, Config{})

	out, err := svc.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, apperrors.ErrCodeSMTPError, apperrors.CodeOf(err))

	assert.Equal(t, 0.0, prom.ToFloat64(m.EmailSent))
	assert.Equal(t, 0.0, prom.ToFloat64(m.LastRunSuccess))
	assert.Equal(t, 1.0, prom.ToFloat64(m.RunFailures.WithLabelValues("SMTP_ERROR")))
	sender.AssertNumberOfCalls(t, "Execute", 1)
}

func TestExecute_MissingDatabaseDoesNotSend(t *testing.T) {
	sender := new(MockSender)
	svc := NewService(ServiceDependencies{
		Opener: database.NewSource(config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "absent.db"),
		}),
		Sender: sender,
		Logger: logger.NewTestLogger(t),
	}, Config{})

	_, err := svc.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDatabaseConnectionFailed, apperrors.CodeOf(err))
	sender.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestExecute_NoSenderConfigured(t *testing.T) {
	svc, _, _ := newTestService(t, scilFixture(), nil, Config{})

	_, err := svc.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.CodeOf(err))
}

func TestExecute_WritesMetricsTextfile(t *testing.T) {
	textfile := filepath.Join(t.TempDir(), "incompat.prom")
	svc, _, _ := newTestService(t, scilFixture(), nil, Config{MetricsTextfile: textfile})
	svc.now = func() time.Time { return time.Unix(1767225600, 0) }

	_, err := svc.Execute(context.Background(), &Input{DryRun: true})
	require.NoError(t, err)

	content, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "incompat_cases 2")
	assert.Contains(t, string(content), "incompat_records_loaded 8")
	assert.Contains(t, string(content), "incompat_last_run_success_timestamp_seconds 1.7672256e+09")
}

func TestExecute_MetricsWriteFailureIsNotFatal(t *testing.T) {
	textfile := filepath.Join(t.TempDir(), "missing", "incompat.prom")
	svc, _, _ := newTestService(t, scilFixture(), nil, Config{MetricsTextfile: textfile})

	out, err := svc.Execute(context.Background(), &Input{DryRun: true})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Report)
}
