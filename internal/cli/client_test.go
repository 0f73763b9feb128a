package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danpasecinic/reservable/internal/types"
)

func TestClient_ListNodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   interface{}
		wantCount  int
		wantErr    bool
	}{
		{
			name:       "nodes listed",
			statusCode: http.StatusOK,
			response: []types.Node{
				{Name: "db-1", Labels: "db", Reservable: true, Status: types.NodeOnline},
				{Name: "cache-1", Labels: "cache", Reservable: true, Status: types.NodeOffline},
			},
			wantCount: 2,
		},
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			response:   map[string]string{"error": "internal server error"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				server := httptest.NewServer(
					http.HandlerFunc(
						func(w http.ResponseWriter, r *http.Request) {
							if r.URL.Path != "/api/v1/nodes" {
								t.Errorf("unexpected path: %s", r.URL.Path)
							}
							w.WriteHeader(tt.statusCode)
							_ = json.NewEncoder(w).Encode(tt.response)
						},
					),
				)
				defer server.Close()

				nodes, err := NewClient(server.URL).ListNodes()
				if (err != nil) != tt.wantErr {
					t.Fatalf("ListNodes() error = %v, wantErr %v", err, tt.wantErr)
				}
				if len(nodes) != tt.wantCount {
					t.Errorf("ListNodes() returned %d nodes, want %d", len(nodes), tt.wantCount)
				}
			},
		)
	}
}

func TestClient_Reserve(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   interface{}
		wantErr    bool
		wantStatus int
	}{
		{
			name:       "reserved",
			statusCode: http.StatusCreated,
			response:   types.Reservation{Node: "db-1", Holder: "alice", Kind: types.HolderUser},
		},
		{
			name:       "already reserved",
			statusCode: http.StatusConflict,
			response:   map[string]string{"error": "node is already reserved: db-1"},
			wantErr:    true,
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				server := httptest.NewServer(
					http.HandlerFunc(
						func(w http.ResponseWriter, r *http.Request) {
							if r.URL.Path != "/api/v1/resources/db-1/reserve" || r.Method != http.MethodPost {
								t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
							}
							var body map[string]string
							_ = json.NewDecoder(r.Body).Decode(&body)
							if body["user"] != "alice" {
								t.Errorf("expected user alice, got %q", body["user"])
							}
							w.WriteHeader(tt.statusCode)
							_ = json.NewEncoder(w).Encode(tt.response)
						},
					),
				)
				defer server.Close()

				res, err := NewClient(server.URL).Reserve("db-1", "alice")
				if (err != nil) != tt.wantErr {
					t.Fatalf("Reserve() error = %v, wantErr %v", err, tt.wantErr)
				}

				if tt.wantErr {
					var apiErr *APIError
					if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.wantStatus {
						t.Errorf("expected APIError with status %d, got %v", tt.wantStatus, err)
					}
					if apiErr != nil && apiErr.Message != "node is already reserved: db-1" {
						t.Errorf("unexpected message %q", apiErr.Message)
					}
					return
				}
				if res.Holder != "alice" {
					t.Errorf("Reserve() holder = %s, want alice", res.Holder)
				}
			},
		)
	}
}

func TestClient_Release(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode(ReleaseResult{Node: "db-1", Released: false})
			},
		),
	)
	defer server.Close()

	result, err := NewClient(server.URL).Release("db-1")
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if result.Released {
		t.Error("expected release of a free node to report released=false")
	}
}

func TestClient_Acquire(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   interface{}
		wantErr    bool
		wantJob    bool
	}{
		{
			name:       "acquired",
			statusCode: http.StatusCreated,
			response: types.Job{
				JobID:  "build-1",
				Status: types.JobRunning,
				Env:    map[string]string{"DB_NODE_NAME": "db-1"},
			},
			wantJob: true,
		},
		{
			name:       "timed out",
			statusCode: http.StatusRequestTimeout,
			response: types.Job{
				JobID:  "build-1",
				Status: types.JobTimedOut,
				Error:  "Reservable resource maximum wait time (1s) reached while waiting for 'db'",
			},
			wantErr: true,
			wantJob: true,
		},
		{
			name:       "invalid request",
			statusCode: http.StatusBadRequest,
			response:   map[string]string{"error": "invalid requirement"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				server := httptest.NewServer(
					http.HandlerFunc(
						func(w http.ResponseWriter, r *http.Request) {
							var body map[string]interface{}
							_ = json.NewDecoder(r.Body).Decode(&body)
							if body["jobId"] != "build-1" || body["timeout"] != "1s" {
								t.Errorf("unexpected payload: %v", body)
							}
							w.WriteHeader(tt.statusCode)
							_ = json.NewEncoder(w).Encode(tt.response)
						},
					),
				)
				defer server.Close()

				reqs := []types.Requirement{{Label: "db", VariablePrefix: "DB"}}
				job, err := NewClient(server.URL).Acquire(context.Background(), "build-1", reqs, time.Second)
				if (err != nil) != tt.wantErr {
					t.Fatalf("Acquire() error = %v, wantErr %v", err, tt.wantErr)
				}
				if (job != nil) != tt.wantJob {
					t.Fatalf("Acquire() job = %v, wantJob %v", job, tt.wantJob)
				}
				if tt.wantErr && tt.wantJob {
					var apiErr *APIError
					if !errors.As(err, &apiErr) || apiErr.Message != job.Error {
						t.Errorf("expected the job error as message, got %v", err)
					}
				}
			},
		)
	}
}

func TestClient_AcquireCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-release:
				}
			},
		),
	)
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	reqs := []types.Requirement{{Label: "db", VariablePrefix: "DB"}}
	if _, err := NewClient(server.URL).Acquire(ctx, "build-1", reqs, 0); err == nil {
		t.Error("expected error when the context is cancelled")
	}
}

func TestClient_EndJob(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/jobs/build-1" {
					w.WriteHeader(http.StatusNotFound)
					_ = json.NewEncoder(w).Encode(map[string]string{"error": "job not found"})
					return
				}
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode(types.Job{JobID: "build-1", Status: types.JobFinished})
			},
		),
	)
	defer server.Close()

	client := NewClient(server.URL)
	job, err := client.EndJob("build-1")
	if err != nil {
		t.Fatalf("EndJob() error = %v", err)
	}
	if job.Status != types.JobFinished {
		t.Errorf("EndJob() status = %s, want finished", job.Status)
	}

	if _, err := client.EndJob("missing"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestClient_Prune(t *testing.T) {
	tests := []struct {
		name      string
		all       bool
		wantQuery string
	}{
		{name: "default", all: false, wantQuery: ""},
		{name: "all", all: true, wantQuery: "all=true"},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				server := httptest.NewServer(
					http.HandlerFunc(
						func(w http.ResponseWriter, r *http.Request) {
							if r.URL.RawQuery != tt.wantQuery {
								t.Errorf("query = %q, want %q", r.URL.RawQuery, tt.wantQuery)
							}
							_ = json.NewEncoder(w).Encode(types.PruneResult{JobsRemoved: 2, NodesRemoved: 1})
						},
					),
				)
				defer server.Close()

				result, err := NewClient(server.URL).Prune(tt.all)
				if err != nil {
					t.Fatalf("Prune() error = %v", err)
				}
				if result.JobsRemoved != 2 || result.NodesRemoved != 1 {
					t.Errorf("unexpected result %+v", result)
				}
			},
		)
	}
}

func TestClient_ErrorPaths(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	if _, err := client.ListResources(); err == nil {
		t.Error("expected error for unreachable broker")
	}
	if _, err := client.ListQueues(); err == nil {
		t.Error("expected error for unreachable broker")
	}
	if _, err := client.Release("db-1"); err == nil {
		t.Error("expected error for unreachable broker")
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("not json"))
			},
		),
	)
	defer server.Close()

	if _, err := NewClient(server.URL).ListLabels(); err == nil {
		t.Error("expected decode error")
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080")
	if client.baseURL != "http://localhost:8080" {
		t.Errorf("expected baseURL http://localhost:8080, got %s", client.baseURL)
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", client.httpClient.Timeout)
	}
	if client.waitClient.Timeout != 0 {
		t.Errorf("expected no timeout for waits, got %v", client.waitClient.Timeout)
	}
}
