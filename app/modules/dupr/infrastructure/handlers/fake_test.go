package duprhandlers

import (
	"context"
	"time"

	authdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/auth/domain"
	duprservice "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/application"
	duprqueue "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/queue"
	matchservice "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/application"
	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	"github.com/google/uuid"
)

// FakeService is a programmable submission service.
type FakeService struct {
	trace []string

	SubmitMatchesFunc func(ctx context.Context, req duprservice.SubmitRequest) (*duprservice.SubmitResponse, error)
	RetryFailedFunc   func(ctx context.Context, req duprservice.RetryRequest) (*duprservice.RetryResponse, error)
	IngestWebhookFunc func(ctx context.Context, raw []byte) duprservice.WebhookOutcome
	DiagnoseFunc      func(ctx context.Context, req duprservice.DiagnoseRequest) *duprservice.DiagnosticReport
}

func (f *FakeService) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeService) Trace() []string { return f.trace }

func (f *FakeService) SubmitMatches(ctx context.Context, req duprservice.SubmitRequest) (*duprservice.SubmitResponse, error) {
	f.record("SubmitMatches")
	if f.SubmitMatchesFunc != nil {
		return f.SubmitMatchesFunc(ctx, req)
	}
	return &duprservice.SubmitResponse{Success: true}, nil
}

func (f *FakeService) RetryFailed(ctx context.Context, req duprservice.RetryRequest) (*duprservice.RetryResponse, error) {
	f.record("RetryFailed")
	if f.RetryFailedFunc != nil {
		return f.RetryFailedFunc(ctx, req)
	}
	return &duprservice.RetryResponse{}, nil
}

func (f *FakeService) ProcessBatch(ctx context.Context, batchID uuid.UUID) (*duprservice.BatchSummary, error) {
	f.record("ProcessBatch")
	return &duprservice.BatchSummary{}, nil
}

func (f *FakeService) ProcessDueBatches(ctx context.Context) (*duprservice.SweepSummary, error) {
	f.record("ProcessDueBatches")
	return &duprservice.SweepSummary{}, nil
}

func (f *FakeService) SweepReadyEvents(ctx context.Context) (*duprservice.SweepSummary, error) {
	f.record("SweepReadyEvents")
	return &duprservice.SweepSummary{}, nil
}

func (f *FakeService) RunCorrectionSweep(ctx context.Context) (*duprservice.CorrectionSummary, error) {
	f.record("RunCorrectionSweep")
	return &duprservice.CorrectionSummary{}, nil
}

func (f *FakeService) RunRatingSync(ctx context.Context) (*duprservice.SyncSummary, error) {
	f.record("RunRatingSync")
	return &duprservice.SyncSummary{}, nil
}

func (f *FakeService) IngestWebhook(ctx context.Context, raw []byte) duprservice.WebhookOutcome {
	f.record("IngestWebhook")
	if f.IngestWebhookFunc != nil {
		return f.IngestWebhookFunc(ctx, raw)
	}
	return duprservice.WebhookOutcome{Processed: true}
}

func (f *FakeService) Diagnose(ctx context.Context, req duprservice.DiagnoseRequest) *duprservice.DiagnosticReport {
	f.record("Diagnose")
	if f.DiagnoseFunc != nil {
		return f.DiagnoseFunc(ctx, req)
	}
	return &duprservice.DiagnosticReport{OK: true}
}

var _ duprservice.Service = (*FakeService)(nil)

// FakeMatchService is a programmable match service.
type FakeMatchService struct {
	trace []string

	GetStatusFunc      func(ctx context.Context, matchID string) (*matchservice.StatusView, error)
	SetEligibleFunc    func(ctx context.Context, matchID string, eligible bool) (*matchdomain.ToggleState, error)
	FinalizeResultFunc func(ctx context.Context, req matchservice.FinalizeRequest) (*matchservice.FinalizeResponse, error)
}

func (f *FakeMatchService) GetStatus(ctx context.Context, matchID string) (*matchservice.StatusView, error) {
	f.trace = append(f.trace, "GetStatus")
	if f.GetStatusFunc != nil {
		return f.GetStatusFunc(ctx, matchID)
	}
	return &matchservice.StatusView{MatchID: matchID}, nil
}

func (f *FakeMatchService) SetEligible(ctx context.Context, matchID string, eligible bool) (*matchdomain.ToggleState, error) {
	f.trace = append(f.trace, "SetEligible")
	if f.SetEligibleFunc != nil {
		return f.SetEligibleFunc(ctx, matchID, eligible)
	}
	return &matchdomain.ToggleState{Eligible: eligible}, nil
}

func (f *FakeMatchService) FinalizeResult(ctx context.Context, req matchservice.FinalizeRequest) (*matchservice.FinalizeResponse, error) {
	f.trace = append(f.trace, "FinalizeResult")
	if f.FinalizeResultFunc != nil {
		return f.FinalizeResultFunc(ctx, req)
	}
	return &matchservice.FinalizeResponse{MatchID: req.MatchID}, nil
}

var _ matchservice.Service = (*FakeMatchService)(nil)

// FakeQueue is a programmable batch queue.
type FakeQueue struct {
	trace []string

	EnqueueBatchFunc func(ctx context.Context, batchID uuid.UUID) (int64, error)
	GetBatchJobsFunc func(ctx context.Context, batchID uuid.UUID) ([]duprqueue.JobInfo, error)
	HealthCheckFunc  func(ctx context.Context) error
}

func (f *FakeQueue) EnqueueBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	f.trace = append(f.trace, "EnqueueBatch")
	if f.EnqueueBatchFunc != nil {
		return f.EnqueueBatchFunc(ctx, batchID)
	}
	return 7, nil
}

func (f *FakeQueue) GetBatchJobs(ctx context.Context, batchID uuid.UUID) ([]duprqueue.JobInfo, error) {
	f.trace = append(f.trace, "GetBatchJobs")
	if f.GetBatchJobsFunc != nil {
		return f.GetBatchJobsFunc(ctx, batchID)
	}
	return nil, nil
}

func (f *FakeQueue) HealthCheck(ctx context.Context) error {
	f.trace = append(f.trace, "HealthCheck")
	if f.HealthCheckFunc != nil {
		return f.HealthCheckFunc(ctx)
	}
	return nil
}

// FakeTokens maps bearer tokens to fixed claims.
type FakeTokens map[string]*authdomain.Claims

func (f FakeTokens) GenerateToken(claims *authdomain.Claims, ttl time.Duration) (string, error) {
	return claims.UserID, nil
}

func (f FakeTokens) ValidateToken(token string) (*authdomain.Claims, error) {
	if c, ok := f[token]; ok {
		return c, nil
	}
	return nil, errBadToken
}
