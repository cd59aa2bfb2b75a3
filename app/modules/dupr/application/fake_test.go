package duprservice

import (
	"context"
	"sort"
	"sync"
	"time"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	duprdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/infrastructure/repositories"
	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/infrastructure/repositories"
	userdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/user/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Match Repo
// ------------------------

// FakeMatchRepo keeps matches in memory and applies field-level updates.
type FakeMatchRepo struct {
	mu      sync.Mutex
	trace   []string
	matches map[string]*matchdomain.Match
	updates map[string][]matchdb.SubmissionUpdate

	GetByIDFunc          func(ctx context.Context, db bun.IDB, matchID string) (*matchdomain.Match, error)
	UpdateSubmissionFunc func(ctx context.Context, db bun.IDB, matchID string, update matchdb.SubmissionUpdate) error
}

func NewFakeMatchRepo(ms ...*matchdomain.Match) *FakeMatchRepo {
	f := &FakeMatchRepo{
		trace:   []string{},
		matches: map[string]*matchdomain.Match{},
		updates: map[string][]matchdb.SubmissionUpdate{},
	}
	for _, m := range ms {
		f.matches[m.ID] = m
	}
	return f
}

func (f *FakeMatchRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeMatchRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

// Get returns the stored match, not a copy.
func (f *FakeMatchRepo) Get(id string) *matchdomain.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches[id]
}

func (f *FakeMatchRepo) Create(ctx context.Context, db bun.IDB, match *matchdomain.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Create")
	f.matches[match.ID] = match
	return nil
}

func (f *FakeMatchRepo) GetByID(ctx context.Context, db bun.IDB, matchID string) (*matchdomain.Match, error) {
	f.mu.Lock()
	f.record("GetByID")
	fn := f.GetByIDFunc
	m, ok := f.matches[matchID]
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, db, matchID)
	}
	if !ok {
		return nil, matchdb.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *FakeMatchRepo) sorted(keep func(m *matchdomain.Match) bool) []*matchdomain.Match {
	var out []*matchdomain.Match
	for _, m := range f.matches {
		if keep(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *FakeMatchRepo) ListOfficialCompleted(ctx context.Context, db bun.IDB, eventType matchdomain.EventType, eventID string) ([]*matchdomain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListOfficialCompleted")
	return f.sorted(func(m *matchdomain.Match) bool {
		return m.EventType == eventType && m.EventID == eventID && m.Status == matchdomain.MatchStatusCompleted &&
			(m.ScoreState == matchdomain.ScoreStateOfficial || m.ScoreState == matchdomain.ScoreStateSubmitted)
	}), nil
}

func (f *FakeMatchRepo) ListRetryable(ctx context.Context, db bun.IDB, eventType matchdomain.EventType, eventID string) ([]*matchdomain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListRetryable")
	return f.sorted(func(m *matchdomain.Match) bool {
		return m.EventType == eventType && m.EventID == eventID && !m.DUPR.Submitted &&
			(m.DUPR.LastError != "" || m.DUPR.Pending)
	}), nil
}

func (f *FakeMatchRepo) ListNeedingCorrection(ctx context.Context, db bun.IDB) ([]*matchdomain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListNeedingCorrection")
	return f.sorted(func(m *matchdomain.Match) bool {
		return m.DUPR.NeedsCorrection && !m.DUPR.CorrectionSubmitted
	}), nil
}

func (f *FakeMatchRepo) ListReadyEvents(ctx context.Context, db bun.IDB) ([]matchdb.EventRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListReadyEvents")
	seen := map[matchdb.EventRef]bool{}
	var refs []matchdb.EventRef
	for _, m := range f.sorted(func(m *matchdomain.Match) bool {
		return matchdomain.Classify(*m) == matchdomain.CategoryReadyForDUPR
	}) {
		ref := matchdb.EventRef{EventType: m.EventType, EventID: m.EventID}
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func (f *FakeMatchRepo) UpdateSubmission(ctx context.Context, db bun.IDB, matchID string, u matchdb.SubmissionUpdate) error {
	f.mu.Lock()
	f.record("UpdateSubmission")
	fn := f.UpdateSubmissionFunc
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, db, matchID, u); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[matchID]
	if !ok {
		return matchdb.ErrNoRowsAffected
	}
	f.updates[matchID] = append(f.updates[matchID], u)
	applyUpdate(&m.DUPR, &m.ScoreState, u)
	return nil
}

func (f *FakeMatchRepo) UpdateResult(ctx context.Context, db bun.IDB, matchID string, update matchdb.ResultUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateResult")
	m, ok := f.matches[matchID]
	if !ok {
		return matchdb.ErrNoRowsAffected
	}
	official := update.Official
	m.Official = &official
	m.Status = update.Status
	m.ScoreState = update.ScoreState
	applyUpdate(&m.DUPR, &m.ScoreState, update.Submission)
	return nil
}

func applyUpdate(d *matchdomain.SubmissionState, state *matchdomain.ScoreState, u matchdb.SubmissionUpdate) {
	if u.Eligible != nil {
		d.Eligible = *u.Eligible
	}
	if u.Submitted != nil {
		d.Submitted = *u.Submitted
	}
	if u.SubmissionID != nil {
		d.SubmissionID = *u.SubmissionID
	}
	if u.SubmittedAt != nil {
		d.SubmittedAt = u.SubmittedAt
	}
	if u.LastError != nil {
		d.LastError = *u.LastError
	}
	if u.Pending != nil {
		d.Pending = *u.Pending
	}
	if u.BatchID != nil {
		d.BatchID = *u.BatchID
	}
	if u.RetryCount != nil {
		d.RetryCount = *u.RetryCount
	}
	if u.NeedsCorrection != nil {
		d.NeedsCorrection = *u.NeedsCorrection
	}
	if u.CorrectionSubmitted != nil {
		d.CorrectionSubmitted = *u.CorrectionSubmitted
	}
	if u.LastAttemptAt != nil {
		d.LastAttemptAt = u.LastAttemptAt
	}
	if u.ScoreState != nil {
		*state = *u.ScoreState
	}
}

// ------------------------
// Fake Profile Repo
// ------------------------

type ratingWrite struct {
	DuprID  string
	Singles *float64
	Doubles *float64
}

type FakeProfileRepo struct {
	mu         sync.Mutex
	trace      []string
	profiles   map[string]*userdb.PlayerProfile
	ratings    []ratingWrite
	subscribed []string

	GetByUserIDsFunc func(ctx context.Context, db bun.IDB, userIDs []string) ([]*userdb.PlayerProfile, error)
}

func NewFakeProfileRepo(ps ...*userdb.PlayerProfile) *FakeProfileRepo {
	f := &FakeProfileRepo{trace: []string{}, profiles: map[string]*userdb.PlayerProfile{}}
	for _, p := range ps {
		f.profiles[p.UserID] = p
	}
	return f
}

func (f *FakeProfileRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeProfileRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *FakeProfileRepo) Upsert(ctx context.Context, db bun.IDB, profile *userdb.PlayerProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Upsert")
	f.profiles[profile.UserID] = profile
	return nil
}

func (f *FakeProfileRepo) GetByUserIDs(ctx context.Context, db bun.IDB, userIDs []string) ([]*userdb.PlayerProfile, error) {
	f.mu.Lock()
	f.record("GetByUserIDs")
	fn := f.GetByUserIDsFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, db, userIDs)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*userdb.PlayerProfile
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeProfileRepo) GetByDuprID(ctx context.Context, db bun.IDB, duprID string) (*userdb.PlayerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetByDuprID")
	for _, p := range f.profiles {
		if p.HasDuprLink() && *p.DuprID == duprID {
			return p, nil
		}
	}
	return nil, userdb.ErrNotFound
}

func (f *FakeProfileRepo) ListLinked(ctx context.Context, db bun.IDB) ([]*userdb.PlayerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListLinked")
	var out []*userdb.PlayerProfile
	for _, p := range f.profiles {
		if p.HasDuprLink() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *FakeProfileRepo) UpdateRatings(ctx context.Context, db bun.IDB, duprID string, singles, doubles *float64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateRatings")
	for _, p := range f.profiles {
		if p.HasDuprLink() && *p.DuprID == duprID {
			f.ratings = append(f.ratings, ratingWrite{DuprID: duprID, Singles: singles, Doubles: doubles})
			if singles != nil {
				p.SinglesRating = singles
			}
			if doubles != nil {
				p.DoublesRating = doubles
			}
			return nil
		}
	}
	return userdb.ErrNoRowsAffected
}

func (f *FakeProfileRepo) MarkSubscribed(ctx context.Context, db bun.IDB, duprIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkSubscribed")
	f.subscribed = append(f.subscribed, duprIDs...)
	for _, p := range f.profiles {
		for _, id := range duprIDs {
			if p.HasDuprLink() && *p.DuprID == id {
				p.DuprSubscribed = true
			}
		}
	}
	return nil
}

// ------------------------
// Fake Store
// ------------------------

// FakeStore is an in-memory submission store. The XxxFunc hooks replace the
// default behavior when set.
type FakeStore struct {
	mu            sync.Mutex
	trace         []string
	batches       map[uuid.UUID]*duprdomain.Batch
	webhooks      map[string]*duprdomain.WebhookEvent
	snapshots     map[string]duprdomain.RatingSnapshot
	snapshotSaves int

	InsertWebhookEventFunc   func(ctx context.Context, db bun.IDB, event *duprdomain.WebhookEvent) (bool, error)
	GetWebhookEventFunc      func(ctx context.Context, db bun.IDB, dedupeKey string) (*duprdomain.WebhookEvent, error)
	MarkWebhookProcessedFunc func(ctx context.Context, db bun.IDB, dedupeKey, processingError string, at time.Time) error
	ClaimBatchFunc           func(ctx context.Context, db bun.IDB, id uuid.UUID) error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		trace:     []string{},
		batches:   map[uuid.UUID]*duprdomain.Batch{},
		webhooks:  map[string]*duprdomain.WebhookEvent{},
		snapshots: map[string]duprdomain.RatingSnapshot{},
	}
}

func (f *FakeStore) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeStore) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func copyBatch(b *duprdomain.Batch) *duprdomain.Batch {
	cp := *b
	cp.MatchIDs = append([]string(nil), b.MatchIDs...)
	cp.Results = append([]duprdomain.MatchResult(nil), b.Results...)
	return &cp
}

// Batch returns a copy of the stored batch.
func (f *FakeStore) Batch(id uuid.UUID) *duprdomain.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.batches[id]; ok {
		return copyBatch(b)
	}
	return nil
}

// Batches returns copies of every stored batch, oldest first.
func (f *FakeStore) Batches() []*duprdomain.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*duprdomain.Batch, 0, len(f.batches))
	for _, b := range f.batches {
		out = append(out, copyBatch(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Put stores a batch as-is.
func (f *FakeStore) Put(b *duprdomain.Batch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[b.ID] = copyBatch(b)
}

func (f *FakeStore) CreateBatch(ctx context.Context, db bun.IDB, batch *duprdomain.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateBatch")
	f.batches[batch.ID] = copyBatch(batch)
	return nil
}

func (f *FakeStore) GetBatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*duprdomain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetBatch")
	b, ok := f.batches[id]
	if !ok {
		return nil, duprdb.ErrNotFound
	}
	return copyBatch(b), nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (f *FakeStore) ClaimBatch(ctx context.Context, db bun.IDB, id uuid.UUID, observed duprdomain.BatchStatus, observedStartedAt *time.Time, startedAt time.Time) error {
	f.mu.Lock()
	f.record("ClaimBatch")
	fn := f.ClaimBatchFunc
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, db, id); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok || b.Status != observed || !sameTime(b.StartedAt, observedStartedAt) {
		return duprdb.ErrNoRowsAffected
	}
	b.Status = duprdomain.BatchStatusProcessing
	b.StartedAt = &startedAt
	return nil
}

func (f *FakeStore) SaveOutcome(ctx context.Context, db bun.IDB, batch *duprdomain.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SaveOutcome")
	b, ok := f.batches[batch.ID]
	if !ok {
		return duprdb.ErrNoRowsAffected
	}
	b.Status = batch.Status
	b.Results = append([]duprdomain.MatchResult(nil), batch.Results...)
	b.RetryCount = batch.RetryCount
	b.NextRetryAt = batch.NextRetryAt
	b.LastError = batch.LastError
	return nil
}

func (f *FakeStore) ReleaseBatch(ctx context.Context, db bun.IDB, id uuid.UUID, status duprdomain.BatchStatus, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReleaseBatch")
	b, ok := f.batches[id]
	if !ok {
		return duprdb.ErrNoRowsAffected
	}
	b.Status = status
	b.LastError = lastError
	return nil
}

func (f *FakeStore) ListDue(ctx context.Context, db bun.IDB, now time.Time, maxRetries int, staleBefore time.Time) ([]*duprdomain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListDue")
	var out []*duprdomain.Batch
	for _, b := range f.batches {
		switch b.Status {
		case duprdomain.BatchStatusPending:
		case duprdomain.BatchStatusPartialFailure:
			if b.NextRetryAt == nil || b.NextRetryAt.After(now) || b.RetryCount >= maxRetries {
				continue
			}
		case duprdomain.BatchStatusProcessing:
			if b.StartedAt == nil || !b.StartedAt.Before(staleBefore) {
				continue
			}
		default:
			continue
		}
		out = append(out, copyBatch(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *FakeStore) GetWebhookEvent(ctx context.Context, db bun.IDB, dedupeKey string) (*duprdomain.WebhookEvent, error) {
	f.mu.Lock()
	f.record("GetWebhookEvent")
	fn := f.GetWebhookEventFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, db, dedupeKey)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.webhooks[dedupeKey]
	if !ok {
		return nil, duprdb.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *FakeStore) InsertWebhookEvent(ctx context.Context, db bun.IDB, event *duprdomain.WebhookEvent) (bool, error) {
	f.mu.Lock()
	f.record("InsertWebhookEvent")
	fn := f.InsertWebhookEventFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, db, event)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.webhooks[event.DedupeKey]; ok {
		return false, nil
	}
	cp := *event
	f.webhooks[event.DedupeKey] = &cp
	return true, nil
}

func (f *FakeStore) MarkWebhookProcessed(ctx context.Context, db bun.IDB, dedupeKey string, processingError string, at time.Time) error {
	f.mu.Lock()
	f.record("MarkWebhookProcessed")
	fn := f.MarkWebhookProcessedFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, db, dedupeKey, processingError, at)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.webhooks[dedupeKey]
	if !ok {
		return duprdb.ErrNoRowsAffected
	}
	ev.Processed = true
	ev.ProcessingError = processingError
	ev.ProcessedAt = &at
	return nil
}

func (f *FakeStore) Webhook(key string) *duprdomain.WebhookEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.webhooks[key]
}

func (f *FakeStore) UpsertSnapshot(ctx context.Context, db bun.IDB, snapshot duprdomain.RatingSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpsertSnapshot")
	f.snapshotSaves++
	f.snapshots[snapshot.DuprID] = snapshot
	return nil
}

func (f *FakeStore) GetSnapshot(ctx context.Context, db bun.IDB, duprID string) (*duprdomain.RatingSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetSnapshot")
	s, ok := f.snapshots[duprID]
	if !ok {
		return nil, duprdb.ErrNotFound
	}
	return &s, nil
}

func (f *FakeStore) SnapshotSaves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotSaves
}

// ------------------------
// Fake Token Source
// ------------------------

type FakeTokens struct {
	mu    sync.Mutex
	calls int

	TokenFunc func(ctx context.Context) (string, error)
}

func (f *FakeTokens) Token(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.TokenFunc != nil {
		return f.TokenFunc(ctx)
	}
	return "test-token", nil
}

func (f *FakeTokens) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ------------------------
// Fake Authority
// ------------------------

type FakeAuthority struct {
	mu         sync.Mutex
	submitted  []duprdomain.MatchPayload
	lookups    [][]string
	subscribed [][]string

	SubmitMatchFunc            func(ctx context.Context, token string, payload duprdomain.MatchPayload) duprdomain.SubmitOutcome
	LookupPlayersFunc          func(ctx context.Context, token string, duprIDs []string) ([]duprdomain.PlayerRating, error)
	SubscribeRatingChangesFunc func(ctx context.Context, token string, duprIDs []string) error
}

func (f *FakeAuthority) SubmitMatch(ctx context.Context, token string, payload duprdomain.MatchPayload) duprdomain.SubmitOutcome {
	f.mu.Lock()
	f.submitted = append(f.submitted, payload)
	fn := f.SubmitMatchFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, token, payload)
	}
	return duprdomain.SubmitOutcome{Success: true, ExternalID: "ext-" + payload.Identifier, StatusCode: 200}
}

func (f *FakeAuthority) LookupPlayers(ctx context.Context, token string, duprIDs []string) ([]duprdomain.PlayerRating, error) {
	f.mu.Lock()
	f.lookups = append(f.lookups, append([]string(nil), duprIDs...))
	fn := f.LookupPlayersFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, token, duprIDs)
	}
	return nil, nil
}

func (f *FakeAuthority) SubscribeRatingChanges(ctx context.Context, token string, duprIDs []string) error {
	f.mu.Lock()
	f.subscribed = append(f.subscribed, append([]string(nil), duprIDs...))
	fn := f.SubscribeRatingChangesFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, token, duprIDs)
	}
	return nil
}

func (f *FakeAuthority) Submitted() []duprdomain.MatchPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]duprdomain.MatchPayload(nil), f.submitted...)
}
