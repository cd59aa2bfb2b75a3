package dupr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	authhandlers "github.com/Black-And-White-Club/dupr-bridge/app/modules/auth/infrastructure/handlers"
	authjwt "github.com/Black-And-White-Club/dupr-bridge/app/modules/auth/infrastructure/jwt"
	duprservice "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/application"
	duprclient "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/client"
	duprhandlers "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/handlers"
	duprmetrics "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/metrics"
	duprqueue "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/queue"
	duprdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/repositories"
	matchservice "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/application"
	matchdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/infrastructure/repositories"
	userdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/Black-And-White-Club/dupr-bridge/config"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Module wires the submission pipeline: repositories, the rating-authority
// client, the job queue and the HTTP surface.
type Module struct {
	config     *config.Config
	service    *duprservice.SubmissionService
	matches    *matchservice.MatchService
	queue      *duprqueue.Service
	logger     *slog.Logger
	cancelFunc context.CancelFunc
}

// NewModule creates the DUPR module and registers its routes on httpRouter.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	tracer trace.Tracer,
	m duprmetrics.Metrics,
	db *bun.DB,
	httpRouter chi.Router,
) (*Module, error) {
	logger.InfoContext(ctx, "Initializing DUPR module")

	matchRepo := matchdb.NewRepository(db)
	profileRepo := userdb.NewRepository(db)
	store := duprdb.NewRepository(db)

	tokens := duprclient.NewTokenProvider(cfg.DUPR, nil)
	client := duprclient.NewClient(cfg.DUPR, nil, logger)

	settings := duprservice.SettingsFromConfig(cfg)
	service := duprservice.NewSubmissionService(
		matchRepo,
		profileRepo,
		store,
		tokens,
		client,
		logger,
		m,
		tracer,
		db,
		settings,
	)
	matches := matchservice.NewMatchService(matchRepo, logger, m, tracer, db, settings.Rules)

	queue, err := duprqueue.NewService(ctx, db, logger, cfg.Postgres.DSN, m, service, ScheduleFromConfig(cfg.Submission))
	if err != nil {
		return nil, fmt.Errorf("failed to create queue service: %w", err)
	}

	if httpRouter != nil {
		handlers := duprhandlers.NewHTTPHandlers(service, matches, queue, logger)
		handlers.Register(httpRouter, duprhandlers.RouteOptions{
			Tokens:         authjwt.NewProvider(cfg.JWT.Secret, cfg.JWT.Issuer),
			Limiter:        authhandlers.NewCallerRateLimiter(rate.Limit(cfg.HTTP.RateLimitRPS), cfg.HTTP.RateLimitBurst),
			SubmitLimiter:  authhandlers.NewCallerRateLimiter(rate.Limit(cfg.HTTP.SubmitRatePerMinute/60), cfg.HTTP.SubmitRateBurst),
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		})
	}

	return &Module{
		config:  cfg,
		service: service,
		matches: matches,
		queue:   queue,
		logger:  logger,
	}, nil
}

// ScheduleFromConfig maps the sweep settings onto the queue schedule.
func ScheduleFromConfig(cfg config.SubmissionConfig) duprqueue.Schedule {
	return duprqueue.Schedule{
		Enabled:            cfg.SchedulerEnabled,
		QueueSweepInterval: cfg.QueueSweepInterval,
		EventSweepInterval: cfg.EventSweepInterval,
		CorrectionInterval: cfg.CorrectionInterval,
		RatingSyncInterval: cfg.RatingSyncInterval,
	}
}

// Run starts the job queue and blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.InfoContext(ctx, "Starting DUPR module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	// The queue outlives ctx so Close can drain running jobs.
	if err := m.queue.Start(context.WithoutCancel(ctx)); err != nil {
		m.logger.ErrorContext(ctx, "Failed to start DUPR queue", attr.Error(err))
		return
	}

	m.logger.InfoContext(ctx, "DUPR module started",
		attr.Bool("scheduler_enabled", m.config.Submission.SchedulerEnabled),
	)

	<-ctx.Done()
	m.logger.InfoContext(ctx, "DUPR module goroutine stopped")
}

// Close stops the job queue, letting running jobs finish within ctx.
func (m *Module) Close(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Stopping DUPR module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if m.queue != nil {
		if err := m.queue.Stop(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Error stopping DUPR queue", attr.Error(err))
			return fmt.Errorf("error stopping queue: %w", err)
		}
	}

	m.logger.InfoContext(ctx, "DUPR module stopped")
	return nil
}

// Service returns the submission service.
func (m *Module) Service() duprservice.Service {
	return m.service
}
