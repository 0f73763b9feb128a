package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/danpasecinic/reservable/internal/types"
)

// APIError is a non-success response from the broker.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// ReleaseResult reports the outcome of a release.
type ReleaseResult struct {
	Node     string `json:"node"`
	Released bool   `json:"released"`
	Holder   string `json:"holder,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	// waitClient has no timeout; acquisitions block until the broker answers.
	waitClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		waitClient: &http.Client{},
	}
}

func (c *Client) ListNodes() ([]types.Node, error) {
	var nodes []types.Node
	if err := c.get("/api/v1/nodes", &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (c *Client) ListResources() ([]types.Resource, error) {
	var resources []types.Resource
	if err := c.get("/api/v1/resources", &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

func (c *Client) ListLabels() ([]string, error) {
	var labels []string
	if err := c.get("/api/v1/labels", &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

func (c *Client) ListQueues() ([]types.LabelQueue, error) {
	var queues []types.LabelQueue
	if err := c.get("/api/v1/queues", &queues); err != nil {
		return nil, err
	}
	return queues, nil
}

func (c *Client) GetQueue(label string) (*types.LabelQueue, error) {
	var queue types.LabelQueue
	if err := c.get("/api/v1/queues/"+url.PathEscape(label), &queue); err != nil {
		return nil, err
	}
	return &queue, nil
}

func (c *Client) Reserve(node, user string) (*types.Reservation, error) {
	var res types.Reservation
	path := fmt.Sprintf("/api/v1/resources/%s/reserve", url.PathEscape(node))
	if err := c.post(path, map[string]string{"user": user}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Release(node string) (*ReleaseResult, error) {
	var result ReleaseResult
	path := fmt.Sprintf("/api/v1/resources/%s/release", url.PathEscape(node))
	if err := c.post(path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Acquire blocks until the broker grants every requirement or gives up.
// On failure the returned job, when present, carries the broker's reason.
func (c *Client) Acquire(
	ctx context.Context, jobID string, reqs []types.Requirement, timeout time.Duration,
) (*types.Job, error) {
	payload := map[string]interface{}{
		"jobId":        jobID,
		"requirements": reqs,
	}
	if timeout > 0 {
		payload["timeout"] = timeout.String()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/jobs", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.waitClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var job types.Job
	if resp.StatusCode == http.StatusCreated {
		if err := json.Unmarshal(body, &job); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &job, nil
	}

	if err := json.Unmarshal(body, &job); err == nil && job.JobID != "" {
		return &job, &APIError{StatusCode: resp.StatusCode, Message: job.Error}
	}
	return nil, apiError(resp.StatusCode, body)
}

func (c *Client) ListJobs() ([]types.Job, error) {
	var jobs []types.Job
	if err := c.get("/api/v1/jobs", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) GetJob(jobID string) (*types.Job, error) {
	var job types.Job
	if err := c.get("/api/v1/jobs/"+url.PathEscape(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) EndJob(jobID string) (*types.Job, error) {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/api/v1/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var job types.Job
	if err := c.do(req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) AbortJob(jobID string) (*types.Job, error) {
	var job types.Job
	if err := c.post(fmt.Sprintf("/api/v1/jobs/%s/abort", url.PathEscape(jobID)), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) Prune(all bool) (*types.PruneResult, error) {
	path := "/api/v1/prune"
	if all {
		path += "?all=true"
	}

	var result types.PruneResult
	if err := c.post(path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decode(resp, out)
}

func (c *Client) post(path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", body)
	if err != nil {
		return fmt.Errorf("post request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decode(resp, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", req.Method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decode(resp, out)
}

func decode(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := string(bytes.TrimSpace(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: status, Message: msg}
}
