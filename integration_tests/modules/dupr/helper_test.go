package dupr_integration_tests

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	matchdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/match/domain"
	userdb "github.com/Black-And-White-Club/dupr-bridge/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/dupr-bridge/config"
	"github.com/Black-And-White-Club/dupr-bridge/integration_tests/testutils"
)

const eventID = "spring-26"

func setup(t *testing.T) *testutils.TestEnvironment {
	t.Helper()
	env := testutils.GetOrCreateSharedEnv(t)
	env.Reset(t)
	return env
}

func readyMatch(id, duprA, duprB string) *matchdomain.Match {
	return &matchdomain.Match{
		ID:         id,
		EventType:  matchdomain.EventTypeLeague,
		EventID:    eventID,
		EventName:  "Spring League",
		Status:     matchdomain.MatchStatusCompleted,
		ScoreState: matchdomain.ScoreStateOfficial,
		Locked:     true,
		MatchDate:  time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		SideA:      matchdomain.Side{PlayerIDs: []string{id + "-a"}, DuprIDs: []string{duprA}},
		SideB:      matchdomain.Side{PlayerIDs: []string{id + "-b"}, DuprIDs: []string{duprB}},
		Official: &matchdomain.OfficialResult{
			Games:       []matchdomain.GameScore{{A: 11, B: 7}, {A: 11, B: 9}},
			Winner:      matchdomain.SideA,
			FinalizedAt: time.Date(2026, 5, 2, 20, 0, 0, 0, time.UTC),
			Version:     1,
		},
		DUPR: matchdomain.SubmissionState{Eligible: true},
	}
}

func linkedProfile(userID, duprID string) *userdb.PlayerProfile {
	return &userdb.PlayerProfile{UserID: userID, DisplayName: userID, DuprID: &duprID}
}

// fakeAuthority stands in for the rating authority's token and match endpoints.
type fakeAuthority struct {
	mu          sync.Mutex
	identifiers []string
	failing     map[string]bool
	server      *httptest.Server
}

func newFakeAuthority(t *testing.T) *fakeAuthority {
	t.Helper()
	a := &fakeAuthority{failing: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"it-token","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/match/v1.0/create", func(w http.ResponseWriter, r *http.Request) {
		var payload duprdomain.MatchPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.mu.Lock()
		a.identifiers = append(a.identifiers, payload.Identifier)
		fail := a.failing[payload.Identifier]
		n := len(a.identifiers)
		a.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"message":"invalid player"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "SUCCESS",
			"result": map[string]any{"matchId": 9000 + n},
		})
	})

	a.server = httptest.NewServer(mux)
	t.Cleanup(a.server.Close)
	return a
}

func (a *fakeAuthority) failFor(identifier string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failing[identifier] = true
}

func (a *fakeAuthority) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.identifiers...)
}

func (a *fakeAuthority) config() config.DUPRConfig {
	return config.DUPRConfig{
		BaseURL:         a.server.URL,
		TokenURL:        a.server.URL + "/token",
		ClientID:        "client",
		ClientSecret:    "secret",
		RequestTimeout:  5 * time.Second,
		InterCallDelay:  time.Millisecond,
		BreakerFailures: 5,
		BreakerTimeout:  time.Minute,
	}
}
