package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/classpilot/tool-runtime/internal/config"
)

// Client is a typed client over the runtime's HTTP API, used by the CLI
// commands.
type Client struct {
	baseURL string
	http    *http.Client
}

type ToolCallOutcome struct {
	Result        string `json:"result"`
	PendingID     string `json:"pending_id"`
	Tool          string `json:"tool"`
	ExpiresAtUnix int64  `json:"expires_at_unix"`
}

func (o ToolCallOutcome) Deferred() bool { return o.PendingID != "" }

type PendingConfirmation struct {
	PendingID     string          `json:"pending_id"`
	Tool          string          `json:"tool"`
	Arguments     json.RawMessage `json:"arguments"`
	CreatedAtUnix int64           `json:"created_at_unix"`
	ExpiresAtUnix int64           `json:"expires_at_unix"`
}

type listConfirmationsResponse struct {
	Items []PendingConfirmation `json:"items"`
	Count int                   `json:"count"`
}

type ScheduledTask struct {
	ID           string `json:"id"`
	TriggerType  string `json:"trigger_type"`
	TriggerValue string `json:"trigger_value"`
	Action       string `json:"action"`
	Payload      string `json:"payload"`
	Status       string `json:"status"`
	NextRunUnix  int64  `json:"next_run_unix"`
	LastRunUnix  int64  `json:"last_run_unix"`
	LastError    string `json:"last_error"`
}

type listTasksResponse struct {
	Items []ScheduledTask `json:"items"`
	Count int             `json:"count"`
}

type ToolDescriptor struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	ParametersSchema     string `json:"parameters_schema"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
}

type listToolsResponse struct {
	Items []ToolDescriptor `json:"items"`
	Count int              `json:"count"`
}

func New(cfg config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) DispatchToolCall(ctx context.Context, tool string, arguments json.RawMessage) (ToolCallOutcome, error) {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return ToolCallOutcome{}, fmt.Errorf("tool name is required")
	}
	payload := map[string]any{"tool": tool}
	if len(arguments) > 0 {
		payload["arguments"] = arguments
	}
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return ToolCallOutcome{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/toolcalls", bytes.NewReader(requestBody))
	if err != nil {
		return ToolCallOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var outcome ToolCallOutcome
	if err := c.doJSON(req, &outcome); err != nil {
		return ToolCallOutcome{}, err
	}
	return outcome, nil
}

func (c *Client) ListPending(ctx context.Context) ([]PendingConfirmation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/confirmations", nil)
	if err != nil {
		return nil, err
	}
	var response listConfirmationsResponse
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) Approve(ctx context.Context, pendingID string) (string, error) {
	return c.resolve(ctx, "/api/v1/confirmations/approve", pendingID)
}

func (c *Client) Deny(ctx context.Context, pendingID string) (string, error) {
	return c.resolve(ctx, "/api/v1/confirmations/deny", pendingID)
}

func (c *Client) resolve(ctx context.Context, path, pendingID string) (string, error) {
	pendingID = strings.TrimSpace(pendingID)
	if pendingID == "" {
		return "", fmt.Errorf("pending id is required")
	}
	requestBody, err := json.Marshal(map[string]string{"pending_id": pendingID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var response struct {
		Result string `json:"result"`
	}
	if err := c.doJSON(req, &response); err != nil {
		return "", err
	}
	return response.Result, nil
}

func (c *Client) ListScheduledTasks(ctx context.Context) ([]ScheduledTask, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tasks", nil)
	if err != nil {
		return nil, err
	}
	var response listTasksResponse
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tools", nil)
	if err != nil {
		return nil, err
	}
	var response listToolsResponse
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		return errors.New(apiError.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
