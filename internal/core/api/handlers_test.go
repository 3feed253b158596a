package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/solatis/killwatch/internal/engine"
	"github.com/solatis/killwatch/internal/types"
)

// fixedSource serves a fixed profile set.
type fixedSource struct {
	profiles []types.Profile
	err      error
}

func (s *fixedSource) ActiveProfiles(ctx context.Context) ([]types.Profile, error) {
	return s.profiles, s.err
}

// discardSink drops everything.
type discardSink struct{}

func (discardSink) WriteMatches(ctx context.Context, matches []types.Match) error { return nil }
func (discardSink) UpdateProfileStats(ctx context.Context, counts map[types.ProfileID]int64, frequencies map[types.ProfileID]float64) error {
	return nil
}

// newTestRouter builds a router over an engine loaded with the given
// profiles. Reload is skipped when loaded is false.
func newTestRouter(t *testing.T, profiles []types.Profile, loaded bool) (*gin.Engine, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	eng, err := engine.New(engine.Config{}, &fixedSource{profiles: profiles}, discardSink{}, nil, nil, registry)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	if loaded {
		if err := eng.Reload(context.Background()); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
	}

	service, err := NewService(eng, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	router := gin.New()
	service.Register(router, registry)
	return router, eng
}

func watchProfile(name, definition string) types.Profile {
	return types.Profile{
		ProfileID:  types.NewProfileID(),
		OwnerID:    "owner-1",
		Name:       name,
		Definition: []byte(definition),
		Active:     true,
	}
}

const jitaKillmail = `{
	"killmail_id": 987654321,
	"solar_system_id": 30000142,
	"solar_system_name": "Jita",
	"victim": {"character_id": 90000001, "ship_type_id": 587, "character_name": "Test Pilot", "ship_name": "Rifter"},
	"attackers": [{"character_id": 90000002, "final_blow": true}],
	"total_value": 1500000000,
	"attacker_count": 1
}`

func TestMatchKillmail(t *testing.T) {
	jita := watchProfile("jita", `{"rules": [{"field": "system_id", "operator": "eq", "value": 30000142}]}`)
	router, _ := newTestRouter(t, []types.Profile{jita}, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/killmails", strings.NewReader(jitaKillmail))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", w.Code, w.Body.String())
	}

	var resp matchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp.KillmailID != 987654321 {
		t.Errorf("KillmailID = %d, want 987654321", resp.KillmailID)
	}
	if len(resp.Profiles) != 1 || resp.Profiles[0] != jita.ProfileID {
		t.Errorf("Profiles = %v, want [%v]", resp.Profiles, jita.ProfileID)
	}
}

func TestMatchKillmail_NoMatches(t *testing.T) {
	amarr := watchProfile("amarr", `{"rules": [{"field": "system_id", "operator": "eq", "value": 30002187}]}`)
	router, _ := newTestRouter(t, []types.Profile{amarr}, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/killmails", strings.NewReader(jitaKillmail))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp matchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(resp.Profiles) != 0 {
		t.Errorf("Profiles = %v, want empty", resp.Profiles)
	}
}

func TestMatchKillmail_InvalidPayload(t *testing.T) {
	router, _ := newTestRouter(t, nil, true)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"killmail_id":`},
		{name: "missing killmail id", body: `{"solar_system_id": 30000142}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/killmails", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestReload(t *testing.T) {
	jita := watchProfile("jita", `{"rules": [{"field": "system_id", "operator": "eq", "value": 30000142}]}`)
	router, _ := newTestRouter(t, []types.Profile{jita}, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/reload", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", w.Code, w.Body.String())
	}

	var stats engine.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if stats.ProfilesLoaded != 1 {
		t.Errorf("ProfilesLoaded = %d, want 1", stats.ProfilesLoaded)
	}
	if stats.GenerationSeq != 2 {
		t.Errorf("GenerationSeq = %d, want 2", stats.GenerationSeq)
	}
}

func TestReload_SourceFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	eng, err := engine.New(engine.Config{}, &fixedSource{err: context.DeadlineExceeded}, discardSink{}, nil, nil, registry)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	service, err := NewService(eng, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	router := gin.New()
	service.Register(router, registry)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/reload", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestStats(t *testing.T) {
	router, _ := newTestRouter(t, nil, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var stats engine.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if stats.GenerationSeq != 1 {
		t.Errorf("GenerationSeq = %d, want 1", stats.GenerationSeq)
	}
}

func TestHealth(t *testing.T) {
	t.Run("loaded", func(t *testing.T) {
		router, _ := newTestRouter(t, nil, true)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("before first generation", func(t *testing.T) {
		router, _ := newTestRouter(t, nil, false)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if body["error"] != types.ErrEngineNotLoaded.Error() {
			t.Errorf("error = %q, want %q", body["error"], types.ErrEngineNotLoaded)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil, true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "killwatch_events_processed_total") {
		t.Errorf("metrics output missing killwatch counters")
	}
}
