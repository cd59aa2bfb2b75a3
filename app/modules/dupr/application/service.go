package duprservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	duprmetrics "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/metrics"
	duprdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/repositories"
	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/infrastructure/repositories"
	userdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/results"
	"github.com/Black-And-White-Club/dupr-bridge/config"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "SubmissionService"

// Settings is the read-only configuration snapshot of the pipeline.
type Settings struct {
	Retry           duprdomain.RetryPolicy
	StaleAfter      time.Duration
	LookupChunkSize int
	Rules           matchdomain.GameRules
	ClubID          int64
}

// SettingsFromConfig maps the loaded configuration onto Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Retry: duprdomain.RetryPolicy{
			Backoff:    cfg.Submission.Backoff,
			MaxRetries: cfg.Submission.MaxRetries,
		},
		StaleAfter:      cfg.Submission.StaleProcessingAfter,
		LookupChunkSize: cfg.Submission.LookupChunkSize,
		Rules: matchdomain.GameRules{
			PointsToWin:  cfg.Rules.PointsToWin,
			WinBy:        cfg.Rules.WinBy,
			BestOf:       cfg.Rules.BestOf,
			Cap:          cfg.Rules.Cap,
			MinimumScore: cfg.Rules.MinimumScore,
		},
		ClubID: cfg.DUPR.ClubID,
	}
}

// SubmissionService implements the Service interface.
type SubmissionService struct {
	matches   matchdb.Repository
	profiles  userdb.Repository
	store     duprdb.Repository
	tokens    TokenSource
	authority Authority
	converter *Converter
	logger    *slog.Logger
	metrics   duprmetrics.Metrics
	tracer    trace.Tracer
	db        *bun.DB
	settings  Settings
	now       func() time.Time
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	matches matchdb.Repository,
	profiles userdb.Repository,
	store duprdb.Repository,
	tokens TokenSource,
	authority Authority,
	logger *slog.Logger,
	m duprmetrics.Metrics,
	tracer trace.Tracer,
	db *bun.DB,
	settings Settings,
) *SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = duprmetrics.NewNoop()
	}
	if settings.Retry.MaxRetries == 0 && len(settings.Retry.Backoff) == 0 {
		settings.Retry = duprdomain.DefaultRetryPolicy()
	}
	if settings.StaleAfter <= 0 {
		settings.StaleAfter = 15 * time.Minute
	}
	if settings.LookupChunkSize <= 0 {
		settings.LookupChunkSize = 25
	}
	if settings.Rules == (matchdomain.GameRules{}) {
		settings.Rules = matchdomain.DefaultGameRules()
	}
	return &SubmissionService{
		matches:   matches,
		profiles:  profiles,
		store:     store,
		tokens:    tokens,
		authority: authority,
		converter: NewConverter(profiles, settings.Rules, settings.ClubID),
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
		db:        db,
		settings:  settings,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *SubmissionService) idb() bun.IDB {
	if s.db == nil {
		return nil
	}
	return s.db
}

// loadMatch returns nil without error when the match does not exist.
func (s *SubmissionService) loadMatch(ctx context.Context, matchID string) (*matchdomain.Match, error) {
	match, err := s.matches.GetByID(ctx, s.idb(), matchID)
	if err != nil {
		if errors.Is(err, matchdb.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load match: %w", err)
	}
	return match, nil
}

func unwrap[S any](result results.OperationResult[S, error], err error) (S, error) {
	var zero S
	if err != nil {
		return zero, err
	}
	if result.IsFailure() {
		return zero, *result.Failure
	}
	if result.Success == nil {
		return zero, errors.New("operation returned no result")
	}
	return *result.Success, nil
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *SubmissionService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	s.logger.InfoContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	return result, nil
}

var _ Service = (*SubmissionService)(nil)
