package matchservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AlekSi/pointer"
	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/attr"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/metrics"
	"github.com/Black-And-White-Club/dupr-bridge/app/shared/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "MatchService"

// MatchService implements the Service interface.
type MatchService struct {
	repo     matchdb.Repository
	logger   *slog.Logger
	metrics  metrics.OperationMetrics
	tracer   trace.Tracer
	db       *bun.DB
	defaults matchdomain.GameRules
	now      func() time.Time
}

// NewMatchService creates a new MatchService. defaults are the game rules
// used for matches that carry none of their own.
func NewMatchService(
	repo matchdb.Repository,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	defaults matchdomain.GameRules,
) *MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchService{
		repo:     repo,
		logger:   logger,
		metrics:  m,
		tracer:   tracer,
		db:       db,
		defaults: defaults,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetStatus classifies a match and reports its eligibility toggle.
func (s *MatchService) GetStatus(ctx context.Context, matchID string) (*StatusView, error) {
	result, err := withTelemetry(s, ctx, "GetStatus", matchID, func(ctx context.Context) (results.OperationResult[*StatusView, error], error) {
		match, err := s.load(ctx, s.idb(), matchID)
		if err != nil {
			return results.OperationResult[*StatusView, error]{}, err
		}
		if match == nil {
			return results.FailureResult[*StatusView, error](ErrMatchNotFound), nil
		}
		return results.SuccessResult[*StatusView, error](&StatusView{
			MatchID:  match.ID,
			Category: matchdomain.Classify(*match),
			Toggle:   matchdomain.EligibilityToggle(*match),
			Error:    match.DUPR.LastError,
		}), nil
	})
	return unwrap(result, err)
}

// SetEligible flips the eligible flag unless the toggle is locked.
func (s *MatchService) SetEligible(ctx context.Context, matchID string, eligible bool) (*matchdomain.ToggleState, error) {
	setTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*matchdomain.ToggleState, error], error) {
		return s.setEligibleLogic(ctx, db, matchID, eligible)
	}
	result, err := withTelemetry(s, ctx, "SetEligible", matchID, func(ctx context.Context) (results.OperationResult[*matchdomain.ToggleState, error], error) {
		return runInTx(s, ctx, setTx)
	})
	return unwrap(result, err)
}

func (s *MatchService) setEligibleLogic(ctx context.Context, db bun.IDB, matchID string, eligible bool) (results.OperationResult[*matchdomain.ToggleState, error], error) {
	match, err := s.load(ctx, db, matchID)
	if err != nil {
		return results.OperationResult[*matchdomain.ToggleState, error]{}, err
	}
	if match == nil {
		return results.FailureResult[*matchdomain.ToggleState, error](ErrMatchNotFound), nil
	}

	toggle := matchdomain.EligibilityToggle(*match)
	if toggle.Locked {
		return results.FailureResult[*matchdomain.ToggleState, error](fmt.Errorf("%w: %s", ErrEligibilityLocked, toggle.Reason)), nil
	}

	if toggle.Eligible != eligible {
		if err := s.repo.UpdateSubmission(ctx, db, matchID, matchdb.SubmissionUpdate{Eligible: pointer.To(eligible)}); err != nil {
			return results.OperationResult[*matchdomain.ToggleState, error]{}, fmt.Errorf("failed to update eligible flag: %w", err)
		}
	}
	toggle.Eligible = eligible
	return results.SuccessResult[*matchdomain.ToggleState, error](&toggle), nil
}

// FinalizeResult validates and stores an official result.
func (s *MatchService) FinalizeResult(ctx context.Context, req FinalizeRequest) (*FinalizeResponse, error) {
	finalizeTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*FinalizeResponse, error], error) {
		return s.finalizeResultLogic(ctx, db, req)
	}
	result, err := withTelemetry(s, ctx, "FinalizeResult", req.MatchID, func(ctx context.Context) (results.OperationResult[*FinalizeResponse, error], error) {
		return runInTx(s, ctx, finalizeTx)
	})
	return unwrap(result, err)
}

func (s *MatchService) finalizeResultLogic(ctx context.Context, db bun.IDB, req FinalizeRequest) (results.OperationResult[*FinalizeResponse, error], error) {
	match, err := s.load(ctx, db, req.MatchID)
	if err != nil {
		return results.OperationResult[*FinalizeResponse, error]{}, err
	}
	if match == nil {
		return results.FailureResult[*FinalizeResponse, error](ErrMatchNotFound), nil
	}

	rules := matchdomain.ResolveRules(match.Rules, s.defaults, len(req.Games))
	validation := matchdomain.ValidateGames(req.Games, rules)
	if !validation.Valid {
		return results.FailureResult[*FinalizeResponse, error](&ValidationFailure{Result: validation}), nil
	}

	winner := matchdomain.MatchWinner(req.Games)
	if req.Winner != "" && req.Winner != winner {
		return results.FailureResult[*FinalizeResponse, error](ErrWinnerMismatch), nil
	}

	version := 1
	if match.Official != nil {
		version = match.Official.Version + 1
	}
	official := matchdomain.OfficialResult{
		Games:       req.Games,
		Winner:      winner,
		FinalizedAt: s.now(),
		Version:     version,
	}

	update := matchdb.ResultUpdate{
		Official:   official,
		Status:     matchdomain.MatchStatusCompleted,
		ScoreState: matchdomain.ScoreStateOfficial,
	}
	// A changed result on a submitted match reopens it as a correction.
	correction := match.DUPR.Submitted || match.ScoreState == matchdomain.ScoreStateSubmitted
	if correction {
		update.Submission = matchdb.SubmissionUpdate{
			Submitted:           pointer.To(false),
			NeedsCorrection:     pointer.To(true),
			CorrectionSubmitted: pointer.To(false),
			RetryCount:          pointer.To(0),
		}
		s.logger.InfoContext(ctx, "Official result changed after submission, correction scheduled",
			attr.MatchID(match.ID),
			attr.Int("version", version),
		)
	}

	if err := s.repo.UpdateResult(ctx, db, match.ID, update); err != nil {
		return results.OperationResult[*FinalizeResponse, error]{}, fmt.Errorf("failed to store official result: %w", err)
	}

	match.Official = &official
	match.Status = matchdomain.MatchStatusCompleted
	match.ScoreState = matchdomain.ScoreStateOfficial
	if correction {
		match.DUPR.Submitted = false
		match.DUPR.NeedsCorrection = true
		match.DUPR.CorrectionSubmitted = false
		match.DUPR.RetryCount = 0
	}

	return results.SuccessResult[*FinalizeResponse, error](&FinalizeResponse{
		MatchID:         match.ID,
		Winner:          winner,
		Version:         version,
		FinalizedAt:     official.FinalizedAt,
		Warnings:        validation.Warnings,
		NeedsCorrection: correction,
		Category:        matchdomain.Classify(*match),
	}), nil
}

// load returns nil without error when the match does not exist.
func (s *MatchService) load(ctx context.Context, db bun.IDB, matchID string) (*matchdomain.Match, error) {
	match, err := s.repo.GetByID(ctx, db, matchID)
	if err != nil {
		if errors.Is(err, matchdb.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load match: %w", err)
	}
	return match, nil
}

func (s *MatchService) idb() bun.IDB {
	if s.db == nil {
		return nil
	}
	return s.db
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
	s *MatchService,
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

	if s.metrics != nil {
		s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)
	}

	startTime := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
		}
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
			if s.metrics != nil {
				s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			}
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
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		}
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

	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	}

	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *MatchService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})
	return result, err
}

var _ Service = (*MatchService)(nil)
