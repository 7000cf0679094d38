package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nidhogg/makers-assistant/internal/backend"
	"github.com/nidhogg/makers-assistant/internal/catalog"
	"github.com/nidhogg/makers-assistant/internal/chatbot"
	"github.com/nidhogg/makers-assistant/internal/embedding"
	"github.com/nidhogg/makers-assistant/internal/gateway"
	"github.com/nidhogg/makers-assistant/internal/generator"
	"github.com/nidhogg/makers-assistant/internal/provider"
	"github.com/nidhogg/makers-assistant/internal/router"
	"github.com/nidhogg/makers-assistant/internal/vectorstore"
	"go.uber.org/zap"
)

type countingSource struct {
	calls atomic.Int32
}

func (s *countingSource) ListProducts(context.Context) ([]catalog.Product, error) {
	s.calls.Add(1)
	return []catalog.Product{
		{ID: "1", Name: "MacBook Air", Brand: "Apple", Category: "Computers", Description: "Thin laptop", Price: 1099},
		{ID: "2", Name: "Galaxy S24", Brand: "Samsung", Category: "Phones", Description: "Android phone", Price: 899},
		{ID: "3", Name: "iPad Air", Brand: "Apple", Category: "Tablets", Description: "M2 tablet", Price: 599},
	}, nil
}

// newTestHandler creates a Handler wired with in-memory backends only.
func newTestHandler(t *testing.T) (*countingSource, http.Handler) {
	t.Helper()
	logger := zap.NewNop()

	src := &countingSource{}
	emb := embedding.NewService(backend.None[embedding.Provider]("offline"), 64, logger)
	idx := vectorstore.NewIndex(backend.Use[vectorstore.Store](vectorstore.NewMemoryStore(64), true, ""), logger)
	gen := generator.New(backend.None[generator.Completer]("offline"), generator.Options{}, logger)
	bot := chatbot.New(src, emb, idx, gen, chatbot.Options{}, logger)

	gw := gateway.NewGateway(logger)
	restGW := gateway.NewRESTAdapter(2*time.Second, logger)
	gw.SetHandler(router.New(bot, gw, nil, 0, logger).Handle)
	gw.Register(restGW)

	providers := provider.NewRouter(logger)
	h := NewHandler(context.Background(), bot, restGW, gw, providers, nil, logger)
	return src, h.Router()
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestChat(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/chat", map[string]string{"message": "I want a laptop"})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var reply chatbot.Reply
	decodeJSON(t, resp, &reply)
	if reply.Tier != generator.TierTemplate || !strings.Contains(reply.Text, "MacBook Air") {
		t.Fatalf("unexpected reply %+v", reply)
	}

	resp = postJSON(t, ts, "/api/chat", map[string]string{"message": "  "})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for blank message, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStatusAfterChat(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	var st chatbot.Status
	decodeJSON(t, getJSON(t, ts, "/api/status"), &st)
	if st.Ready {
		t.Fatal("should not be ready before first message")
	}
	postJSON(t, ts, "/api/chat", map[string]string{"message": "hello"}).Body.Close()
	decodeJSON(t, getJSON(t, ts, "/api/status"), &st)
	if !st.Ready || st.Products != 3 || st.Embedding || !st.Index {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestSyncIsAccepted(t *testing.T) {
	src, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/sync", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	deadline := time.Now().Add(2 * time.Second)
	for src.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if src.calls.Load() == 0 {
		t.Fatal("sync never read the catalog")
	}
}

func TestSearch(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/search?q=tablet&k=2")
	var hits []searchHit
	decodeJSON(t, resp, &hits)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}

	resp = getJSON(t, ts, "/api/search")
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 without q, got %d", resp.StatusCode)
	}
}

func TestRESTGatewayMessage(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/gateway/rest/message", map[string]string{"user_id": "u1", "content": "any tablet?"})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out gateway.OutboundMessage
	decodeJSON(t, resp, &out)
	if !strings.Contains(out.Content, "iPad Air") || out.Tier != "template" {
		t.Fatalf("unexpected gateway reply %+v", out)
	}
}

func TestProvidersAndGatewayStatus(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	var provs []providerInfo
	decodeJSON(t, getJSON(t, ts, "/api/providers"), &provs)
	if len(provs) != 0 {
		t.Errorf("expected no providers, got %d", len(provs))
	}

	var statuses []gateway.AdapterStatus
	decodeJSON(t, getJSON(t, ts, "/api/gateway/status"), &statuses)
	if len(statuses) != 1 || statuses[0].Platform != "rest" {
		t.Errorf("unexpected statuses %+v", statuses)
	}
}
