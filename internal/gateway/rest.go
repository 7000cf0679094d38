package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxRESTBody = 64 << 10

// RESTAdapter turns an HTTP request into an inbound message and holds the
// request open until the reply for its one-shot channel arrives.
type RESTAdapter struct {
	handler MessageHandler
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]chan *OutboundMessage
}

// NewRESTAdapter creates a REST gateway adapter. timeout <= 0 means 60s.
func NewRESTAdapter(timeout time.Duration, logger *zap.Logger) *RESTAdapter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RESTAdapter{
		pending: make(map[string]chan *OutboundMessage),
		timeout: timeout,
		logger:  logger,
	}
}

func (a *RESTAdapter) Platform() string { return "rest" }
func (a *RESTAdapter) Connect(context.Context) error { return nil }
func (a *RESTAdapter) OnMessage(h MessageHandler) { a.handler = h }
func (a *RESTAdapter) Close() error { return nil }

func (a *RESTAdapter) Status() AdapterStatus {
	a.mu.Lock()
	n := len(a.pending)
	a.mu.Unlock()
	return AdapterStatus{Platform: "rest", Connected: true, Details: fmt.Sprintf("pending=%d", n)}
}

// Send hands msg to the request waiting on msg.ChannelID. Each channel takes
// one reply.
func (a *RESTAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	a.mu.Lock()
	ch, ok := a.pending[msg.ChannelID]
	delete(a.pending, msg.ChannelID)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("rest channel %s: no waiting request", msg.ChannelID)
	}
	ch <- msg
	return nil
}

// Routes returns the REST gateway endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message", a.handleMessage)
	return r
}

type restMessage struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Content  string `json:"content"`
}

func decodeRESTMessage(w http.ResponseWriter, r *http.Request) (restMessage, error) {
	var m restMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRESTBody)).Decode(&m); err != nil {
		return m, errors.New("invalid request body")
	}
	if strings.TrimSpace(m.Content) == "" {
		return m, errors.New("content is required")
	}
	if m.UserName == "" {
		m.UserName = m.UserID
	}
	return m, nil
}

func (a *RESTAdapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	m, err := decodeRESTMessage(w, r)
	if err != nil {
		restError(w, http.StatusBadRequest, err.Error())
		return
	}

	channelID := uuid.NewString()
	reply := make(chan *OutboundMessage, 1)
	a.mu.Lock()
	a.pending[channelID] = reply
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, channelID)
		a.mu.Unlock()
	}()

	if a.handler != nil {
		go a.handler(&InboundMessage{
			Platform:  "rest",
			ChannelID: channelID,
			UserID:    m.UserID,
			UserName:  m.UserName,
			Content:   m.Content,
			Timestamp: time.Now(),
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	select {
	case msg := <-reply:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(msg)
	case <-ctx.Done():
		if r.Context().Err() != nil {
			a.logger.Debug("rest client went away", zap.String("channel", channelID))
			return
		}
		restError(w, http.StatusGatewayTimeout, "response timeout")
	}
}

func restError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
