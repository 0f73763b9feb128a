package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/danpasecinic/reservable/internal/types"
)

// errNodeUnknown is returned by a heartbeat the broker does not recognise,
// e.g. after the node was pruned.
var errNodeUnknown = errors.New("node not known to broker")

// Config describes the node an agent announces.
type Config struct {
	Name       string
	Labels     string
	Reservable bool
	Settings   []types.Setting
}

// Agent keeps one node registered and online at the broker.
type Agent struct {
	l          hclog.Logger
	cfg        Config
	brokerURL  string
	httpClient *http.Client

	heartbeatTicker      *time.Ticker
	stopChan             chan struct{}
	stopOnce             sync.Once
	wg                   sync.WaitGroup
	consecutiveFailures  int
	maxConsecutiveErrors int
	initialBackoff       time.Duration
	maxBackoff           time.Duration
	maxRetries           int
}

// NewAgent creates a new node agent.
func NewAgent(l hclog.Logger, cfg Config, brokerURL string) *Agent {
	return &Agent{
		l:                    l.Named("agent").With("node", cfg.Name),
		cfg:                  cfg,
		brokerURL:            brokerURL,
		httpClient:           &http.Client{Timeout: 10 * time.Second},
		stopChan:             make(chan struct{}),
		maxConsecutiveErrors: 10,
		initialBackoff:       1 * time.Second,
		maxBackoff:           30 * time.Second,
		maxRetries:           5,
	}
}

// Register announces the node to the broker. Registering again after a
// restart replaces the stored labels and settings.
func (a *Agent) Register() error {
	payload := map[string]interface{}{
		"name":       a.cfg.Name,
		"labels":     a.cfg.Labels,
		"reservable": a.cfg.Reservable,
		"settings":   a.cfg.Settings,
	}

	resp, err := a.post("/api/v1/nodes/register", payload)
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("register returned status %d", resp.StatusCode)
	}

	a.l.Info("node registered", "labels", a.cfg.Labels, "reservable", a.cfg.Reservable)
	return nil
}

// Start begins the agent's heartbeat loop.
func (a *Agent) Start(heartbeatInterval time.Duration) {
	a.heartbeatTicker = time.NewTicker(heartbeatInterval)
	a.wg.Add(1)
	go a.heartbeatLoop()
}

// Stop stops the heartbeat loop without telling the broker.
func (a *Agent) Stop() {
	a.stopOnce.Do(
		func() {
			if a.heartbeatTicker != nil {
				a.heartbeatTicker.Stop()
			}
			close(a.stopChan)
		},
	)
	a.wg.Wait()
}

// Shutdown stops heartbeating and marks the node offline so no new
// reservations land on it. Existing reservations are left to their holders.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.Stop()

	body, err := json.Marshal(map[string]types.NodeStatus{"status": types.NodeOffline})
	if err != nil {
		return fmt.Errorf("failed to marshal status update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/nodes/%s/status", a.brokerURL, url.PathEscape(a.cfg.Name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create status update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send status update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status update returned status %d", resp.StatusCode)
	}

	a.l.Info("node marked offline")
	return nil
}

// heartbeatLoop sends periodic heartbeats with exponential backoff on failures.
func (a *Agent) heartbeatLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.heartbeatTicker.C:
			if err := a.sendHeartbeatWithRetry(); err != nil {
				a.l.Error("heartbeat failed after retries", "error", err)
			}
		case <-a.stopChan:
			return
		}
	}
}

// sendHeartbeatWithRetry sends a heartbeat with exponential backoff on failures.
// A broker that no longer knows the node gets a fresh registration.
func (a *Agent) sendHeartbeatWithRetry() error {
	backoff := a.initialBackoff

	var lastErr error
	for i := 0; i < a.maxRetries; i++ {
		err := a.sendHeartbeat()
		if errors.Is(err, errNodeUnknown) {
			a.l.Warn("broker lost node, registering again")
			err = a.Register()
		}
		if err == nil {
			if a.consecutiveFailures > 0 {
				a.l.Info("heartbeat recovered", "failures", a.consecutiveFailures)
				a.consecutiveFailures = 0
			}
			return nil
		}

		lastErr = err
		a.consecutiveFailures++

		if a.consecutiveFailures >= a.maxConsecutiveErrors {
			a.l.Warn("consecutive heartbeat failures, node may be marked offline", "failures", a.consecutiveFailures)
		}

		if i < a.maxRetries-1 {
			a.l.Debug("heartbeat attempt failed", "attempt", i+1, "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-a.stopChan:
				return lastErr
			}

			backoff *= 2
			if backoff > a.maxBackoff {
				backoff = a.maxBackoff
			}
		}
	}

	return fmt.Errorf("heartbeat failed after %d retries: %w", a.maxRetries, lastErr)
}

// sendHeartbeat sends a heartbeat to the broker.
func (a *Agent) sendHeartbeat() error {
	resp, err := a.post(fmt.Sprintf("/api/v1/nodes/%s/heartbeat", url.PathEscape(a.cfg.Name)), nil)
	if err != nil {
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return errNodeUnknown
	default:
		return fmt.Errorf("heartbeat returned status %d", resp.StatusCode)
	}
}

func (a *Agent) post(path string, payload interface{}) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(http.MethodPost, a.brokerURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return a.httpClient.Do(req)
}
