package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/upb/devportal/cognito"
	"github.com/upb/devportal/config"
	"github.com/upb/devportal/handlers"
	"github.com/upb/devportal/internal/observability"
	"github.com/upb/devportal/middleware"
	"github.com/upb/devportal/services"
	"github.com/upb/devportal/services/docstore"
	"github.com/upb/devportal/services/ecsmetrics"
	"github.com/upb/devportal/services/logquery"
	"go.uber.org/zap"
)

// Clients holds the AWS API clients the services wrap.
// Tests substitute fakes for each field.
type Clients struct {
	CloudWatch     ecsmetrics.CloudWatchAPI
	CloudWatchLogs logquery.LogsAPI
	S3             docstore.S3API
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Auth
	KeySet         *cognito.KeySetCache
	Validator      *cognito.CognitoValidator
	AuthMiddleware *middleware.AuthMiddleware

	// Services
	MetricsService *ecsmetrics.Service
	LogsService    *logquery.Service
	DocsService    *docstore.Service

	// Handlers
	HealthHandler  *handlers.HealthHandler
	MetricsHandler *handlers.MetricsHandler
	LogsHandler    *handlers.LogsHandler
	DocsHandler    *handlers.DocsHandler
}

// NewDependencies loads the AWS configuration, creates one client per AWS
// service and wires everything else on top of them.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	clients := Clients{
		CloudWatch:     cloudwatch.NewFromConfig(awsCfg),
		CloudWatchLogs: cloudwatchlogs.NewFromConfig(awsCfg),
		S3:             s3.NewFromConfig(awsCfg),
	}

	logger.Info("aws clients initialized",
		zap.String("region", awsCfg.Region),
		zap.Int("max_attempts", cfg.AWS.MaxAttempts))

	return NewDependenciesWithClients(cfg, logger, clients), nil
}

// NewDependenciesWithClients wires the application around existing clients
func NewDependenciesWithClients(cfg *config.Config, logger *zap.Logger, clients Clients) *Dependencies {
	if logger == nil {
		logger = zap.NewNop()
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initObservability(cfg)
	deps.initAuth(cfg)
	deps.initServices(cfg, clients)
	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
		awsconfig.WithRetryMaxAttempts(cfg.AWS.MaxAttempts),
	)
}

func (d *Dependencies) initObservability(cfg *config.Config) {
	if !cfg.Observability.MetricsEnabled {
		d.Logger.Info("prometheus metrics disabled")
		return
	}
	d.Metrics = observability.NewMetrics()
}

// CognitoConfig maps the application config onto the validator config
func CognitoConfig(cfg *config.Config) cognito.Config {
	return cognito.Config{
		Region:              cfg.Cognito.Region,
		UserPoolID:          cfg.Cognito.UserPoolID,
		ClientID:            cfg.Cognito.ClientID,
		HTTPTimeout:         cfg.Cognito.JWKSTimeout,
		RefreshOnUnknownKID: cfg.Cognito.RefreshOnUnknownKID,
	}
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	cognitoCfg := CognitoConfig(cfg)

	d.KeySet = cognito.NewKeySetCache(cognitoCfg.JWKSURL(), cfg.Cognito.JWKSTimeout)
	d.Validator = cognito.NewCognitoValidator(cognitoCfg, d.KeySet, d.Logger.Named("cognito"))
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Validator, d.Logger)
	d.Metrics.RegisterKeySetCache(d.KeySet)

	if !cfg.Cognito.IsConfigured() {
		// protected routes answer with a configuration error until both ids are set
		d.Logger.Warn("cognito not configured, protected routes will fail")
		return
	}
	d.Logger.Info("cognito validator initialized",
		zap.String("issuer", cognitoCfg.Issuer()),
		zap.Bool("refresh_on_unknown_kid", cfg.Cognito.RefreshOnUnknownKID))
}

func (d *Dependencies) initServices(cfg *config.Config, clients Clients) {
	recorder := d.upstreamRecorder()
	timeout := cfg.AWS.RequestTimeout

	d.MetricsService = ecsmetrics.NewService(clients.CloudWatch, timeout, recorder, d.Logger.Named("ecsmetrics"))
	d.LogsService = logquery.NewService(clients.CloudWatchLogs, logquery.PollConfig{
		Interval: cfg.Logs.PollInterval,
		Attempts: cfg.Logs.PollAttempts,
	}, timeout, recorder, d.Logger.Named("logquery"))
	d.DocsService = docstore.NewService(clients.S3, docstore.Config{
		Bucket:     cfg.Docs.Bucket,
		DefaultKey: cfg.Docs.DefaultKey,
		MaxBytes:   cfg.Docs.MaxBytes,
	}, timeout, recorder, d.Logger.Named("docstore"))

	if cfg.Docs.Bucket == "" {
		d.Logger.Warn("DOCS_BUCKET not set, docs routes will fail")
	}
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	d.HealthHandler = handlers.NewHealthHandler(d.KeySet, handlers.ReadinessConfig{
		CognitoConfigured: cfg.Cognito.IsConfigured(),
		DocsBucket:        cfg.Docs.Bucket,
		ClusterName:       cfg.AWS.ClusterName,
	}, d.Logger)
	d.MetricsHandler = handlers.NewMetricsHandler(d.MetricsService, cfg.AWS.ClusterName, d.Logger)
	d.LogsHandler = handlers.NewLogsHandler(d.LogsService, d.Logger)
	d.DocsHandler = handlers.NewDocsHandler(d.DocsService, d.Logger)
}

// upstreamRecorder returns the metrics collector, or a no-op when metrics are off.
// A nil *Metrics must not leak into the interface.
func (d *Dependencies) upstreamRecorder() services.UpstreamRecorder {
	if d.Metrics == nil {
		return services.NopRecorder{}
	}
	return d.Metrics
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	// Sync logger; stdout/stderr sync errors are expected on some platforms
	_ = d.Logger.Sync()
	return nil
}
