package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OFFIS-RIT/ripple/internal/queue"
	mid "github.com/OFFIS-RIT/ripple/internal/server/middleware"
	"github.com/OFFIS-RIT/ripple/pkg/analyzer"
	"github.com/OFFIS-RIT/ripple/pkg/classifier"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/discovery"
	"github.com/OFFIS-RIT/ripple/pkg/store"

	"github.com/golang-jwt/jwt/v5"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newAnalyzer(t *testing.T) *analyzer.Analyzer {
	t.Helper()
	s, err := store.NewArticleStore([]common.Article{
		{ID: "A", Title: "Ford stock drop", Timestamp: t0, Category: "Automotive", Entities: []string{"Ford"}, Tags: []string{}, ImpactScore: 5},
		{ID: "B", Title: "Mexican peso decline", Timestamp: t0.Add(24 * time.Hour), Category: "Finance", Entities: []string{"Mexico"}, Tags: []string{}, ImpactScore: 5},
	})
	if err != nil {
		t.Fatalf("NewArticleStore: %v", err)
	}
	cls := classifier.Func(func(ctx context.Context, source common.Article, candidates []common.Article) ([]classifier.Edge, error) {
		if source.ID != "A" {
			return []classifier.Edge{}, nil
		}
		for _, c := range candidates {
			if c.ID == "B" {
				return []classifier.Edge{{TargetID: "B", Type: "IMPACTS_FINANCE", Confidence: 0.92, ImpactLevel: "PRIMARY"}}, nil
			}
		}
		return []classifier.Edge{}, nil
	})
	cfg := discovery.DefaultConfig()
	cfg.RateLimit = 0
	a, err := analyzer.New(analyzer.Params{Store: s, Engine: discovery.NewEngine(s, cls, nil, cfg)})
	if err != nil {
		t.Fatalf("analyzer.New: %v", err)
	}
	if err := a.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return a
}

func do(t *testing.T, h http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	e := New(&mid.App{Analyzer: newAnalyzer(t)})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{name: "health", method: http.MethodGet, target: "/health", status: http.StatusOK},
		{name: "relationships", method: http.MethodGet, target: "/articles/A/relationships?max=5", status: http.StatusOK},
		{name: "ripple", method: http.MethodGet, target: "/articles/A/ripple", status: http.StatusOK},
		{name: "ripple unknown article", method: http.MethodGet, target: "/articles/missing/ripple", status: http.StatusNotFound},
		{name: "ripple bad hops", method: http.MethodGet, target: "/articles/A/ripple?max_hops=abc", status: http.StatusBadRequest},
		{name: "ripple hops out of range", method: http.MethodGet, target: "/articles/A/ripple?max_hops=50", status: http.StatusBadRequest},
		{name: "root causes", method: http.MethodGet, target: "/articles/B/root-causes", status: http.StatusOK},
		{name: "impact web", method: http.MethodGet, target: "/articles/A/impact-web?depth=1", status: http.StatusOK},
		{name: "predictions", method: http.MethodGet, target: "/articles/A/predictions?horizon=30", status: http.StatusOK},
		{name: "predictions unknown", method: http.MethodGet, target: "/articles/missing/predictions", status: http.StatusNotFound},
		{name: "industries", method: http.MethodGet, target: "/articles/A/industries", status: http.StatusOK},
		{name: "stats", method: http.MethodGet, target: "/stats", status: http.StatusOK},
		{name: "feedback loops", method: http.MethodGet, target: "/feedback-loops", status: http.StatusOK},
		{name: "chains", method: http.MethodPost, target: "/chains", body: `{"query":"ford"}`, status: http.StatusOK},
		{name: "chains without query", method: http.MethodPost, target: "/chains", body: `{"query":""}`, status: http.StatusBadRequest},
		{name: "paths", method: http.MethodPost, target: "/paths", body: `{"from":"ford","to":"peso"}`, status: http.StatusOK},
		{name: "relationship chains", method: http.MethodPost, target: "/relationship-chains", body: `{"start_id":"A","end_id":"B"}`, status: http.StatusOK},
		{name: "relationship chains unknown", method: http.MethodPost, target: "/relationship-chains", body: `{"start_id":"A","end_id":"Z"}`, status: http.StatusNotFound},
		{name: "classify", method: http.MethodPost, target: "/classify", body: `{"source_id":"A","target_id":"B"}`, status: http.StatusOK},
		{name: "timeline", method: http.MethodPost, target: "/timeline", body: `{"article_id":"A","target_impact":"peso"}`, status: http.StatusOK},
		{name: "timeline missing target", method: http.MethodPost, target: "/timeline", body: `{"article_id":"A"}`, status: http.StatusBadRequest},
		{name: "similar patterns", method: http.MethodGet, target: "/articles/A/similar-patterns", status: http.StatusOK},
		{name: "similar patterns unknown", method: http.MethodGet, target: "/articles/missing/similar-patterns", status: http.StatusNotFound},
		{name: "query predictions", method: http.MethodGet, target: "/predictions?query=ford&horizon=30", status: http.StatusOK},
		{name: "query predictions without query", method: http.MethodGet, target: "/predictions", status: http.StatusBadRequest},
		{name: "early indicators", method: http.MethodPost, target: "/early-indicators", body: `{"predicted_impact":"Peso weakens","affected_industries":["Finance"],"estimated_timeframe_days":[7,30]}`, status: http.StatusOK},
		{name: "early indicators without impact", method: http.MethodPost, target: "/early-indicators", body: `{"affected_industries":["Finance"]}`, status: http.StatusBadRequest},
		{name: "unknown route", method: http.MethodGet, target: "/nope", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, tt.method, tt.target, tt.body, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.status, rec.Body.String())
			}
			if rec.Code >= 400 {
				var body map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
					t.Fatalf("expected error body, got %s", rec.Body.String())
				}
			}
		})
	}
}

func TestRelationshipsBody(t *testing.T) {
	e := New(&mid.App{Analyzer: newAnalyzer(t)})
	rec := do(t, e, http.MethodGet, "/articles/A/relationships", "", "")
	var rels []common.Relationship
	if err := json.Unmarshal(rec.Body.Bytes(), &rels); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(rels) != 1 || rels[0].TargetID != "B" || rels[0].Confidence != 0.92 {
		t.Fatalf("relationships = %+v", rels)
	}
}

func TestIngestRoute(t *testing.T) {
	e := New(&mid.App{Analyzer: newAnalyzer(t)})
	body := `{"id":"C","title":"Banxico raises rates","content":"<p>Rates up</p>","timestamp":"2024-03-03T09:00:00Z","category":"Finance"}`

	rec := do(t, e, http.MethodPost, "/articles", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = do(t, e, http.MethodPost, "/articles", body, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	rec = do(t, e, http.MethodPost, "/articles", `{"id":"D","timestamp":"2024-03-03T09:00:00Z"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing title status = %d, want 400", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	secret := []byte("test-secret")
	app := &mid.App{
		Analyzer:     newAnalyzer(t),
		MasterAPIKey: "master-key",
		Key: func(token *jwt.Token) (any, error) {
			return secret, nil
		},
	}
	e := New(app)

	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		if err != nil {
			t.Fatalf("SignedString: %v", err)
		}
		return s
	}
	reader := sign(jwt.MapClaims{"sub": "u1", "permissions": []any{mid.PermRead}})
	admin := sign(jwt.MapClaims{"sub": "u2", "role": "admin"})
	anonymous := sign(jwt.MapClaims{"permissions": []any{mid.PermRead}})

	ingest := `{"id":"C","title":"Banxico raises rates","timestamp":"2024-03-03T09:00:00Z"}`
	tests := []struct {
		name   string
		method string
		target string
		body   string
		token  string
		status int
	}{
		{name: "health is public", method: http.MethodGet, target: "/health", status: http.StatusOK},
		{name: "no token", method: http.MethodGet, target: "/stats", status: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, target: "/stats", token: "garbage", status: http.StatusUnauthorized},
		{name: "token without subject", method: http.MethodGet, target: "/stats", token: anonymous, status: http.StatusUnauthorized},
		{name: "master key", method: http.MethodGet, target: "/stats", token: "master-key", status: http.StatusOK},
		{name: "reader reads", method: http.MethodGet, target: "/stats", token: reader, status: http.StatusOK},
		{name: "reader cannot ingest", method: http.MethodPost, target: "/articles", body: ingest, token: reader, status: http.StatusForbidden},
		{name: "admin ingests", method: http.MethodPost, target: "/articles", body: ingest, token: admin, status: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, tt.method, tt.target, tt.body, tt.token)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestGraphNotReady(t *testing.T) {
	s, err := store.NewArticleStore([]common.Article{
		{ID: "A", Title: "Ford stock drop", Timestamp: t0, Category: "Automotive", Tags: []string{}},
		{ID: "B", Title: "Mexican peso decline", Timestamp: t0.Add(24 * time.Hour), Category: "Finance", Tags: []string{}},
	})
	if err != nil {
		t.Fatalf("NewArticleStore: %v", err)
	}
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	cls := classifier.Func(func(ctx context.Context, source common.Article, candidates []common.Article) ([]classifier.Edge, error) {
		once.Do(func() { close(started) })
		<-release
		return []classifier.Edge{}, nil
	})
	cfg := discovery.DefaultConfig()
	cfg.RateLimit = 0
	a, err := analyzer.New(analyzer.Params{Store: s, Engine: discovery.NewEngine(s, cls, nil, cfg)})
	if err != nil {
		t.Fatalf("analyzer.New: %v", err)
	}
	e := New(&mid.App{Analyzer: a})

	done := make(chan error, 1)
	go func() { done <- a.Build(context.Background()) }()
	<-started

	for _, target := range []string{"/stats", "/feedback-loops"} {
		if rec := do(t, e, http.MethodGet, target, "", ""); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status = %d, want 503, body %s", target, rec.Code, rec.Body.String())
		}
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rec := do(t, e, http.MethodGet, "/stats", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("status after build = %d, want 200", rec.Code)
	}
}

func TestIngestedHandler(t *testing.T) {
	a := newAnalyzer(t)
	handle := IngestedHandler(a)

	body, _ := json.Marshal(queue.IngestMsg{Article: common.Article{
		ID: "C", Title: "Banxico raises rates", Timestamp: t0.Add(48 * time.Hour), Category: "Finance",
	}})
	if err := handle(context.Background(), body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !a.Store().Has("C") {
		t.Fatalf("article not ingested")
	}
	if err := handle(context.Background(), body); err != nil {
		t.Fatalf("duplicate announcement should be skipped, got %v", err)
	}
	if err := handle(context.Background(), []byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}
