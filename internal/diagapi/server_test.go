package diagapi_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ostium-io/ostium/internal/diag"
	"github.com/ostium-io/ostium/internal/diagapi"
	"github.com/ostium-io/ostium/internal/ostium/service"
	"github.com/ostium-io/ostium/internal/ostium/store/memory"
)

type stubLink struct {
	up bool
}

func (l *stubLink) Up(_ context.Context) bool         { return l.up }
func (l *stubLink) Reconnect(_ context.Context) error { return errors.New("no route") }

type stubDisplay struct{}

func (stubDisplay) Show(_, _ string, _ time.Duration) {}

type fixture struct {
	handler  http.Handler
	health   *service.HealthManager
	escalate *service.EscalationTracker
	journal  *diag.Journal
	link     *stubLink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:test_%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", t.Name())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := diag.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	queue := diag.NewWriteQueue(db)
	t.Cleanup(func() {
		queue.Close()
		db.Close()
	})
	journal := diag.NewJournal(db, queue)

	reg := prometheus.NewRegistry()
	metrics := service.NewMetrics(reg)
	remote := memory.New()
	link := &stubLink{up: true}

	audit := service.NewAuditLogger(remote, journal, service.NewClock(nil), 30*time.Second, metrics, zap.NewNop())
	health := service.NewHealthManager(link, remote, stubDisplay{}, audit, service.HealthPolicy{}, metrics, zap.NewNop())
	audit.BindHealth(health.Healthy)
	escalate := service.NewEscalationTracker(3)

	srv := diagapi.NewServer(diagapi.Dependencies{
		Logger:   zap.NewNop(),
		Addr:     ":0",
		Health:   health,
		Escalate: escalate,
		Journal:  journal,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &fixture{handler: srv.Handler(), health: health, escalate: escalate, journal: journal, link: link}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz_OKWhileConnected(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		service.HealthSnapshot
		EscalationStreak int `json:"escalation_streak"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.LinkUp || !body.BackendUp {
		t.Errorf("expected both resources up, got %+v", body)
	}
	if body.EscalationStreak != 0 {
		t.Errorf("expected zero streak on a quiet door, got %d", body.EscalationStreak)
	}
}

func TestHealthz_ReportsEscalationStreak(t *testing.T) {
	f := newFixture(t)
	f.escalate.Observe("member_1", true)
	f.escalate.Observe("member_1", true)

	rec := f.get(t, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		EscalationStreak int `json:"escalation_streak"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.EscalationStreak != 2 {
		t.Errorf("expected streak 2 after two denials, got %d", body.EscalationStreak)
	}
}

func TestHealthz_ServiceUnavailableWhileDegraded(t *testing.T) {
	f := newFixture(t)
	f.link.up = false
	f.health.CheckAndMaybeRecover(context.Background())

	rec := f.get(t, "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestDebugCycles_ReturnsRecentEntries(t *testing.T) {
	f := newFixture(t)
	if err := f.journal.AppendCycle(context.Background(), diag.CycleEntry{
		CycleID:    "cycle-1",
		Epoch:      time.Now().Unix(),
		Identifier: "04AABBCC",
		Outcome:    "denied",
		Reason:     "no_reservation",
	}); err != nil {
		t.Fatalf("AppendCycle: %v", err)
	}

	rec := f.get(t, "/debug/cycles?limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var entries []diag.CycleEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(entries) != 1 || entries[0].CycleID != "cycle-1" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestDebugCycles_BadLimit(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"limit=0", "limit=501", "limit=abc"} {
		rec := f.get(t, "/debug/cycles?"+q)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
