package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/danpasecinic/reservable/internal/types"
)

func newTestAgent(brokerURL string) *Agent {
	a := NewAgent(
		hclog.NewNullLogger(), Config{
			Name:       "test-node",
			Labels:     "db linux",
			Reservable: true,
			Settings:   []types.Setting{{Key: "PORT", Value: "5432"}},
		}, brokerURL,
	)
	a.initialBackoff = time.Millisecond
	a.maxBackoff = 4 * time.Millisecond
	return a
}

func TestRegister(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/nodes/register" || r.Method != http.MethodPost {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(http.StatusCreated)
			},
		),
	)
	defer server.Close()

	agent := newTestAgent(server.URL)
	if err := agent.Register(); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if got["name"] != "test-node" || got["labels"] != "db linux" || got["reservable"] != true {
		t.Errorf("unexpected registration payload: %v", got)
	}
	if settings, ok := got["settings"].([]interface{}); !ok || len(settings) != 1 {
		t.Errorf("expected one setting, got %v", got["settings"])
	}
}

func TestRegisterRejected(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
		),
	)
	defer server.Close()

	if err := newTestAgent(server.URL).Register(); err == nil {
		t.Error("expected error for rejected registration")
	}
}

func TestHeartbeat(t *testing.T) {
	var callCount int
	var mu sync.Mutex

	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api/v1/nodes/test-node/heartbeat" && r.Method == http.MethodPost {
					mu.Lock()
					callCount++
					mu.Unlock()
					w.WriteHeader(http.StatusOK)
				}
			},
		),
	)
	defer server.Close()

	agent := newTestAgent(server.URL)
	agent.Start(100 * time.Millisecond)
	time.Sleep(350 * time.Millisecond)
	agent.Stop()

	mu.Lock()
	count := callCount
	mu.Unlock()

	if count < 2 {
		t.Errorf("expected at least 2 heartbeats, got %d", count)
	}
}

func TestHeartbeatRetries(t *testing.T) {
	var attempts int
	var mu sync.Mutex

	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				attempts++
				n := attempts
				mu.Unlock()
				if n < 3 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				w.WriteHeader(http.StatusOK)
			},
		),
	)
	defer server.Close()

	agent := newTestAgent(server.URL)
	if err := agent.sendHeartbeatWithRetry(); err != nil {
		t.Fatalf("sendHeartbeatWithRetry() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if agent.consecutiveFailures != 0 {
		t.Errorf("expected failure counter reset, got %d", agent.consecutiveFailures)
	}
}

func TestHeartbeatGivesUp(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		),
	)
	defer server.Close()

	agent := newTestAgent(server.URL)
	if err := agent.sendHeartbeatWithRetry(); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if agent.consecutiveFailures != agent.maxRetries {
		t.Errorf("expected %d failures, got %d", agent.maxRetries, agent.consecutiveFailures)
	}
}

func TestHeartbeatReregistersUnknownNode(t *testing.T) {
	var registered bool
	var mu sync.Mutex

	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				defer mu.Unlock()
				switch r.URL.Path {
				case "/api/v1/nodes/register":
					registered = true
					w.WriteHeader(http.StatusCreated)
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			},
		),
	)
	defer server.Close()

	agent := newTestAgent(server.URL)
	if err := agent.sendHeartbeatWithRetry(); err != nil {
		t.Fatalf("sendHeartbeatWithRetry() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !registered {
		t.Error("expected the agent to register again")
	}
}

func TestShutdownMarksOffline(t *testing.T) {
	var status string
	var mu sync.Mutex
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api/v1/nodes/test-node/status" && r.Method == http.MethodPut {
					var body map[string]string
					_ = json.NewDecoder(r.Body).Decode(&body)
					mu.Lock()
					status = body["status"]
					mu.Unlock()
				}
				w.WriteHeader(http.StatusOK)
			},
		),
	)
	defer server.Close()

	agent := newTestAgent(server.URL)
	agent.Start(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := agent.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if status != string(types.NodeOffline) {
		t.Errorf("expected offline status, got %q", status)
	}

	// Stop after Shutdown is a no-op
	agent.Stop()
}
