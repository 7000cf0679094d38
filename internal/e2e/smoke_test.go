//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("MAKERS_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3210"
	}

	// Wait for server readiness (up to 30s)
	ready := false
	for i := 0; i < 30; i++ {
		resp, err := http.Get(baseURL + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				ready = true
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	if !ready {
		fmt.Fprintf(os.Stderr, "server at %s not ready after 30s\n", baseURL)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

type messageRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Content  string `json:"content"`
}

type messageResponse struct {
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Tier      string `json:"tier,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// sendMessage POSTs a chat message through the REST gateway.
func sendMessage(t *testing.T, content string) messageResponse {
	t.Helper()

	body, err := json.Marshal(messageRequest{
		UserID:   "smoke-test",
		UserName: "smokebot",
		Content:  content,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	client := &http.Client{Timeout: 95 * time.Second}
	resp, err := client.Post(
		baseURL+"/api/gateway/rest/message",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		t.Fatalf("POST /api/gateway/rest/message: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var msg messageResponse
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal response: %v (body: %s)", err, string(raw))
	}
	return msg
}

func TestSlashHelp(t *testing.T) {
	reply := sendMessage(t, "/help")
	if !strings.Contains(reply.Content, "/search") {
		t.Errorf("expected help to list /search, got: %s", reply.Content)
	}
}

func TestSlashStatus(t *testing.T) {
	reply := sendMessage(t, "/status")
	if !strings.Contains(reply.Content, "products:") {
		t.Errorf("expected status summary, got: %s", reply.Content)
	}
	t.Logf("reply: %.300s", reply.Content)
}

func TestSlashSearch(t *testing.T) {
	reply := sendMessage(t, "/search laptop")
	if len(reply.Content) == 0 {
		t.Error("expected non-empty response for /search")
	}
	t.Logf("reply: %.300s", reply.Content)
}

func TestProductQuestion(t *testing.T) {
	reply := sendMessage(t, "Which laptop would you recommend for college?")
	if len(reply.Content) <= 10 {
		t.Errorf("expected meaningful response, got len=%d: %s", len(reply.Content), reply.Content)
	}
	switch reply.Tier {
	case "completion", "template", "canned":
	default:
		t.Errorf("unexpected tier %q", reply.Tier)
	}
	t.Logf("[%s degraded=%v] %.300s", reply.Tier, reply.Degraded, reply.Content)
}

func TestGreeting(t *testing.T) {
	reply := sendMessage(t, "hola")
	if reply.Content == "" {
		t.Error("expected a greeting reply")
	}
}
