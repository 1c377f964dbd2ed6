package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// HTTPExecutor drives a skill-execution runtime over a small JSON/HTTP
// contract, grounded on the teacher's tool.HTTPTool request/response shape
// but fixed to the four Executor operations instead of a generic
// arbitrary-URL call.
type HTTPExecutor struct {
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	seenKeys map[string]string
}

// NewHTTPExecutor returns an HTTPExecutor targeting baseURL, expecting
// POST /dispatch, POST /cancel, GET /poll, POST /speak endpoints.
func NewHTTPExecutor(baseURL string) *HTTPExecutor {
	return &HTTPExecutor{baseURL: baseURL, client: &http.Client{}, seenKeys: map[string]string{}}
}

type dispatchRequest struct {
	SkillName      string         `json:"skill_name"`
	Params         map[string]any `json:"params"`
	IdempotencyKey string         `json:"idempotency_key"`
}

type dispatchResponse struct {
	GoalID string `json:"goal_id"`
	Error  string `json:"error,omitempty"`
}

// Dispatch implements Executor.
func (h *HTTPExecutor) Dispatch(ctx context.Context, skillName string, params map[string]any, idempotencyKey string) (string, error) {
	h.mu.Lock()
	if goalID, ok := h.seenKeys[idempotencyKey]; ok {
		h.mu.Unlock()
		return goalID, nil
	}
	h.mu.Unlock()

	var resp dispatchResponse
	if err := h.postJSON(ctx, "/dispatch", dispatchRequest{SkillName: skillName, Params: params, IdempotencyKey: idempotencyKey}, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("dispatch %s: %s", skillName, resp.Error)
	}

	h.mu.Lock()
	h.seenKeys[idempotencyKey] = resp.GoalID
	h.mu.Unlock()
	return resp.GoalID, nil
}

// Cancel implements Executor.
func (h *HTTPExecutor) Cancel(ctx context.Context, goalID string) error {
	var resp struct {
		Error string `json:"error,omitempty"`
	}
	if err := h.postJSON(ctx, "/cancel", map[string]string{"goal_id": goalID}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("cancel %s: %s", goalID, resp.Error)
	}
	return nil
}

// Poll implements Executor.
func (h *HTTPExecutor) Poll(ctx context.Context, goalID string) (PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/poll?goal_id="+goalID, nil)
	if err != nil {
		return PollResult{}, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return PollResult{}, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return PollResult{}, fmt.Errorf("reading poll response: %w", err)
	}

	var result PollResult
	if err := json.Unmarshal(body, &result); err != nil {
		return PollResult{}, fmt.Errorf("decoding poll response: %w", err)
	}
	return result, nil
}

// Speak implements Executor.
func (h *HTTPExecutor) Speak(ctx context.Context, text string, idempotencyKey string) error {
	h.mu.Lock()
	if _, ok := h.seenKeys[idempotencyKey]; ok {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	var resp struct {
		Error string `json:"error,omitempty"`
	}
	if err := h.postJSON(ctx, "/speak", map[string]string{"text": text, "idempotency_key": idempotencyKey}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("speak: %s", resp.Error)
	}

	h.mu.Lock()
	h.seenKeys[idempotencyKey] = ""
	h.mu.Unlock()
	return nil
}

func (h *HTTPExecutor) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}
	if len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
