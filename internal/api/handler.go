package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/makers-assistant/internal/chatbot"
	"github.com/nidhogg/makers-assistant/internal/gateway"
	"github.com/nidhogg/makers-assistant/internal/provider"
	"github.com/nidhogg/makers-assistant/internal/vectorstore"
	"go.uber.org/zap"
)

// Assistant is the orchestrator surface the HTTP API needs.
type Assistant interface {
	ProcessMessage(ctx context.Context, text string) chatbot.Reply
	Sync(ctx context.Context) chatbot.SyncReport
	Search(ctx context.Context, query string, topK int) []vectorstore.Match
	Status() chatbot.Status
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	assistant Assistant
	restGW    *gateway.RESTAdapter
	gw        *gateway.Gateway
	providers *provider.Router
	origins   []string
	// background outlives requests; fire-and-forget syncs run under it.
	background context.Context
	logger     *zap.Logger
}

// NewHandler creates a new API handler. gw, restGW and providers may be nil.
func NewHandler(
	background context.Context,
	assistant Assistant,
	restGW *gateway.RESTAdapter,
	gw *gateway.Gateway,
	providers *provider.Router,
	origins []string,
	logger *zap.Logger,
) *Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handler{
		assistant:  assistant,
		restGW:     restGW,
		gw:         gw,
		providers:  providers,
		origins:    origins,
		background: background,
		logger:     logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/status", h.status)

		r.Post("/chat", h.chat)
		r.Post("/sync", h.sync)
		r.Get("/search", h.search)

		r.Get("/providers", h.listProviders)

		if h.restGW != nil {
			r.Mount("/gateway/rest", h.restGW.Routes())
		}
		r.Get("/gateway/status", h.gatewayStatus)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "makers-assistant"})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.assistant.Status())
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	writeJSON(w, http.StatusOK, h.assistant.ProcessMessage(r.Context(), req.Message))
}

// sync starts a catalog re-index and returns immediately.
func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	go func() {
		report := h.assistant.Sync(h.background)
		if report.Err != nil {
			h.logger.Warn("requested sync failed", zap.Error(report.Err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
}

type searchHit struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Brand    string  `json:"brand"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Score    float32 `json:"score"`
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	k, _ := strconv.Atoi(r.URL.Query().Get("k"))
	matches := h.assistant.Search(r.Context(), q, k)
	hits := make([]searchHit, len(matches))
	for i, m := range matches {
		hits[i] = searchHit{
			ID: m.Product.ID, Name: m.Product.Name, Brand: m.Product.Brand,
			Category: m.Product.Category, Price: m.Product.Price, Score: m.Score,
		}
	}
	writeJSON(w, http.StatusOK, hits)
}

type providerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	IsDefault bool   `json:"is_default"`
}

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	out := []providerInfo{}
	if h.providers != nil {
		def := h.providers.DefaultID()
		for _, p := range h.providers.ListProviders() {
			out = append(out, providerInfo{ID: p.ID(), Name: p.Name(), Model: p.Model(), IsDefault: p.ID() == def})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusOK, []gateway.AdapterStatus{})
		return
	}
	writeJSON(w, http.StatusOK, h.gw.StatusAll())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
