package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"

	"cfsub/internal/models"
	"cfsub/internal/server/handlers"
	"cfsub/internal/services"
)

type fakeRepo struct {
	list []models.Candidate
	err  error
}

func (r *fakeRepo) All(context.Context) ([]models.Candidate, error) { return r.list, r.err }

func (r *fakeRepo) ReplaceAll(context.Context, []models.Candidate) error { return nil }

type fakeRefresher struct {
	list []models.Candidate
	err  error
}

func (f *fakeRefresher) Refresh(context.Context) ([]models.Candidate, error) { return f.list, f.err }

type fakeSubscriber struct {
	gotSource string
	gotOpts   services.SelectOptions
	err       error
}

func (f *fakeSubscriber) Generate(_ context.Context, source string, opts services.SelectOptions) (string, error) {
	f.gotSource, f.gotOpts = source, opts
	if f.err != nil {
		return "", f.err
	}
	return "ZG9j", nil
}

type fakeFeed struct{}

func (fakeFeed) OptimizedIPs(_ context.Context, isp string, count int) []string {
	out := []string{}
	for i := 0; i < count; i++ {
		out = append(out, fmt.Sprintf("%s-%d", isp, i))
	}
	return out
}

func testViews(t *testing.T) *html.Engine {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"layout.html": `<html><body>{{embed}}</body></html>`,
		"index.html":  `{{.title}} {{.total}}/{{.reachable}}{{range .candidates}} {{.Domain}}{{end}}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write view: %v", err)
		}
	}
	return html.New(dir, ".html")
}

func newTestApp(t *testing.T, h *handlers.Handler, opts RouteOptions) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{Views: testViews(t), ViewsLayout: "layout"})
	RegisterRoutes(app, h, opts)
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, string(body)
}

func ranked() []models.Candidate {
	ms := 12
	a := models.NewCandidate("fast.example", models.CategoryOfficial, "A", time.Now())
	a.LatencyMs = &ms
	b := models.NewCandidate("dead.example", models.CategoryThirdParty, "", time.Now())
	dead := models.UnreachableLatency
	b.LatencyMs = &dead
	return []models.Candidate{a, b}
}

func TestDomains(t *testing.T) {
	app := newTestApp(t, &handlers.Handler{Repo: &fakeRepo{list: ranked()}}, RouteOptions{})
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/domains", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d, want=200", resp.StatusCode)
	}
	var out struct {
		Success bool               `json:"success"`
		Count   int                `json:"count"`
		Data    []models.Candidate `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.Count != 2 || out.Data[0].Domain != "fast.example" || out.Data[0].Category != models.CategoryOfficial {
		t.Fatalf("body=%s", body)
	}
	if !strings.Contains(body, `"type":"official"`) || !strings.Contains(body, `"speed":12`) {
		t.Fatalf("wire names missing: %s", body)
	}
}

func TestDomains_Empty(t *testing.T) {
	app := newTestApp(t, &handlers.Handler{Repo: &fakeRepo{}}, RouteOptions{})
	_, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/domains", nil))
	if !strings.Contains(body, `"data":[]`) {
		t.Fatalf("body=%s, want empty array", body)
	}
}

func TestSubscribe_MissingURL(t *testing.T) {
	app := newTestApp(t, &handlers.Handler{Subscriber: &fakeSubscriber{}}, RouteOptions{})
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/subscribe", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d, want=400", resp.StatusCode)
	}
	var er models.ErrorResponse
	if err := json.Unmarshal([]byte(body), &er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Error.Code != "INVALID_ARGUMENT" || er.Error.Stage != "validate_request" {
		t.Fatalf("error=%+v", er.Error)
	}
}

func TestSubscribe_PassesOptions(t *testing.T) {
	sub := &fakeSubscriber{}
	app := newTestApp(t, &handlers.Handler{Subscriber: sub}, RouteOptions{})
	req := httptest.NewRequest(http.MethodGet, "/api/subscribe?url=https%3A%2F%2Fsub.example%2Fs&max=5&max_latency=150&include=hk&exclude=dead", nil)
	resp, body := do(t, app, req)
	if resp.StatusCode != http.StatusOK || body != "ZG9j" {
		t.Fatalf("status=%d body=%q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q", ct)
	}
	if sub.gotSource != "https://sub.example/s" {
		t.Fatalf("source=%q", sub.gotSource)
	}
	o := sub.gotOpts
	if o.Count != 5 || o.MaxLatency == nil || *o.MaxLatency != 150 || o.Include != "hk" || o.Exclude != "dead" {
		t.Fatalf("opts=%+v", o)
	}
}

func TestSubscribe_LenientNumbers(t *testing.T) {
	sub := &fakeSubscriber{}
	app := newTestApp(t, &handlers.Handler{Subscriber: sub}, RouteOptions{})
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/subscribe?url=x&max=abc&max_latency=-3", nil))
	if sub.gotOpts.Count != 0 || sub.gotOpts.MaxLatency != nil {
		t.Fatalf("opts=%+v, want defaults", sub.gotOpts)
	}
}

func TestSubscribe_BadPattern(t *testing.T) {
	sub := &fakeSubscriber{err: &services.InputError{Field: "include", Err: errors.New("bad")}}
	app := newTestApp(t, &handlers.Handler{Subscriber: sub}, RouteOptions{})
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/subscribe?url=x&include=(", nil))
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, `"stage":"select"`) {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
}

func TestSubscribe_RateLimited(t *testing.T) {
	app := newTestApp(t, &handlers.Handler{Subscriber: &fakeSubscriber{}}, RouteOptions{SubscribeRatePerMin: 1})
	first, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/subscribe?url=x", nil))
	second, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/subscribe?url=x", nil))
	if first.StatusCode != http.StatusOK || second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("statuses=%d,%d, want=200,429", first.StatusCode, second.StatusCode)
	}
}

func TestRefresh(t *testing.T) {
	app := newTestApp(t, &handlers.Handler{Refresher: &fakeRefresher{list: ranked()}}, RouteOptions{})
	resp, body := do(t, app, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"count":2`) {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
}

func TestRefresh_PersistFailure(t *testing.T) {
	err := fmt.Errorf("%w: disk full", services.ErrPersist)
	app := newTestApp(t, &handlers.Handler{Refresher: &fakeRefresher{list: ranked(), err: err}}, RouteOptions{})
	resp, body := do(t, app, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if resp.StatusCode != http.StatusInternalServerError || !strings.Contains(body, `"stage":"persist"`) {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
}

func TestRefresh_AdminToken(t *testing.T) {
	h := &handlers.Handler{Refresher: &fakeRefresher{list: ranked()}}
	app := newTestApp(t, h, RouteOptions{AdminSecret: "s3cret"})

	resp, _ := do(t, app, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status=%d, want=401", resp.StatusCode)
	}

	tok, err := services.GenerateAdminToken("s3cret", "test", time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, _ = do(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("with token status=%d, want=200", resp.StatusCode)
	}
}

func TestOptimizedIPs(t *testing.T) {
	app := newTestApp(t, &handlers.Handler{Feed: fakeFeed{}}, RouteOptions{})
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/optimized-ips?isp=CT&count=2", nil))
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"data":["ct-0","ct-1"]`) {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/optimized-ips?isp=zz", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown isp status=%d, want=400", resp.StatusCode)
	}
}

func TestDashboard(t *testing.T) {
	app := newTestApp(t, &handlers.Handler{Repo: &fakeRepo{list: ranked()}}, RouteOptions{})
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "2/1 fast.example dead.example") {
		t.Fatalf("body=%s", body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, &handlers.Handler{}, RouteOptions{})
	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", resp.StatusCode)
	}
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "go_goroutines") {
		t.Fatalf("metrics status=%d", resp.StatusCode)
	}
}
