package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nidhogg/makers-assistant/internal/backend"
	"go.uber.org/zap"
)

func TestAPIProviderEmbed(t *testing.T) {
	// APIProvider posts to endpoint+"/embeddings", so we use a mux.
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("got auth header %q", got)
		}
		json.NewEncoder(w).Encode(apiResponse{
			Data: []apiEmbeddingData{{Embedding: []float32{0.1, 0.2, 0.3}}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAPIProvider(Config{Endpoint: srv.URL, Model: "test-model", APIKey: "sk-test", Dimension: 3})

	vectors, err := p.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 3 {
		t.Fatalf("got %v, want one 3-dim vector", vectors)
	}
}

func TestAPIProviderAzureRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/openai/deployments/embed-small/embeddings", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api-version") != "2024-02-01" {
			t.Errorf("missing api-version, got %q", r.URL.RawQuery)
		}
		if r.Header.Get("api-key") != "azure-key" {
			t.Errorf("missing api-key header")
		}
		json.NewEncoder(w).Encode(apiResponse{Data: []apiEmbeddingData{{Embedding: []float32{1, 0}}}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAPIProvider(Config{Endpoint: srv.URL, Model: "embed-small", APIKey: "azure-key", APIVersion: "2024-02-01"})
	if _, err := p.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAPIProviderEmbed_Empty(t *testing.T) {
	p := NewAPIProvider(Config{Endpoint: "http://unused", Model: "test-model"})
	vectors, err := p.Embed(context.Background(), []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil for empty input, got %v", vectors)
	}
}

func TestLocalProviderEmbed(t *testing.T) {
	mux := http.NewServeMux()
	var calls int
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" || !req.Truncate {
			t.Errorf("unexpected request %+v", req)
		}
		out := ollamaEmbedResponse{Model: req.Model}
		for range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{0.5, 0.5})
		}
		json.NewEncoder(w).Encode(out)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewLocalProvider(Config{Endpoint: srv.URL, Model: "nomic-embed-text"})
	vectors, err := p.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 || calls != 1 {
		t.Fatalf("got %d vectors in %d calls, want 2 in 1", len(vectors), calls)
	}
}

func TestLocalProviderCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	p := NewLocalProvider(Config{Endpoint: srv.URL, Model: "m"})
	if _, err := p.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected an error when the server drops inputs")
	}
}

func norm(v Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestHashEmbedDeterministic(t *testing.T) {
	a := HashEmbed("MacBook Pro laptop for developers", 1536)
	b := HashEmbed("MacBook Pro laptop for developers", 1536)
	if len(a) != 1536 {
		t.Fatalf("got dimension %d, want 1536", len(a))
	}
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			t.Fatalf("component %d differs: %v vs %v", i, a[i], b[i])
		}
	}

	c := HashEmbed("cheap android phone", 1536)
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different inputs produced identical vectors")
	}
}

func TestHashEmbedUnitLength(t *testing.T) {
	for _, text := range []string{"hello", "Gaming laptop, 32GB RAM!", "a b c", "¿Tienes teléfonos baratos?"} {
		if n := norm(HashEmbed(text, 256)); math.Abs(n-1) > 1e-5 {
			t.Errorf("%q: norm = %v, want 1", text, n)
		}
	}
	for _, text := range []string{"", "   ", "!!! ???"} {
		if n := norm(HashEmbed(text, 256)); n != 0 {
			t.Errorf("%q: norm = %v, want zero vector", text, n)
		}
	}
}

func TestHashEmbedBuckets(t *testing.T) {
	// "ab": token 0, so j has no effect: 'a'=97, 'b'=98.
	v := HashEmbed("AB", 100)
	if v[97] == 0 || v[98] == 0 {
		t.Fatalf("expected buckets 97 and 98 set, got %v %v", v[97], v[98])
	}
	// Second token shifts by i*j: "x ab" -> 'b' at i=1,j=1 lands on 99.
	v = HashEmbed("x ab", 100)
	if v[99] == 0 {
		t.Error("expected bucket 99 set for shifted 'b'")
	}
}

func TestServiceFallsBack(t *testing.T) {
	logger := zap.NewNop()

	s := NewService(backend.None[Provider]("no endpoint"), 64, logger)
	r := s.Embed(context.Background(), "tablet")
	if !r.Degraded || r.Source != SourceHash || len(r.Vector) != 64 {
		t.Errorf("unconfigured: got %+v", r)
	}
	if s.Available() {
		t.Error("Available = true for unconfigured service")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	s = NewServiceFromConfig(Config{Endpoint: srv.URL, Model: "m", APIKey: "k", Dimension: 64}, logger)
	r = s.Embed(context.Background(), "tablet")
	if !r.Degraded || len(r.Vector) != 64 {
		t.Errorf("failing backend: got degraded=%v dim=%d", r.Degraded, len(r.Vector))
	}
}

func TestServiceRejectsWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Data: []apiEmbeddingData{{Embedding: []float32{1, 2, 3}}}})
	}))
	defer srv.Close()

	s := NewServiceFromConfig(Config{Endpoint: srv.URL, Model: "m", APIKey: "k", Dimension: 8}, zap.NewNop())
	r := s.Embed(context.Background(), "phone")
	if !r.Degraded || len(r.Vector) != 8 {
		t.Errorf("got degraded=%v dim=%d, want fallback of dim 8", r.Degraded, len(r.Vector))
	}
}

func TestServiceHosted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Data: []apiEmbeddingData{{Embedding: []float32{0, 1}}}})
	}))
	defer srv.Close()

	s := NewServiceFromConfig(Config{Endpoint: srv.URL, Model: "m", APIKey: "k", Dimension: 2}, zap.NewNop())
	r := s.Embed(context.Background(), "phone")
	if r.Degraded || r.Source != SourceHosted {
		t.Errorf("got %+v, want hosted result", r)
	}
}
