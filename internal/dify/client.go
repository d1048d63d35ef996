package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
)

const (
	// DefaultTimeout bounds one workflow run (blocking mode waits for the LLM).
	DefaultTimeout = 60 * time.Second

	responseModeBlocking = "blocking"
	maxErrorBody         = 4 << 10
)

// Options configures a Client.
type Options struct {
	BaseURL          string // ex: https://api.dify.ai/v1
	CategorizeAPIKey string // key of the categorize-json workflow
	CSVToJSONAPIKey  string // key of the csv-to-json workflow (also used for uploads)
	User             string // end-user identifier sent with every call
	Timeout          time.Duration
	HTTPClient       *http.Client // optional, overrides Timeout
}

// Client calls Dify workflow apps over HTTP.
type Client struct {
	baseURL       string
	categorizeKey string
	csvKey        string
	user          string
	http          *http.Client
}

// New creates a Dify client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		categorizeKey: opts.CategorizeAPIKey,
		csvKey:        opts.CSVToJSONAPIKey,
		user:          opts.User,
		http:          hc,
	}
}

type workflowRunRequest struct {
	Inputs       map[string]any `json:"inputs"`
	ResponseMode string         `json:"response_mode"`
	User         string         `json:"user"`
}

// WorkflowResponse is the body of a blocking workflow run.
type WorkflowResponse struct {
	WorkflowRunID string       `json:"workflow_run_id"`
	TaskID        string       `json:"task_id"`
	Data          WorkflowData `json:"data"`
}

// WorkflowData holds the run status and the raw outputs of the workflow.
type WorkflowData struct {
	ID      string                     `json:"id"`
	Status  string                     `json:"status"`
	Outputs map[string]json.RawMessage `json:"outputs"`
	Error   *string                    `json:"error"`
}

// RunCategorize sends one bookmark (as JSON text) to the categorize workflow.
func (c *Client) RunCategorize(ctx context.Context, bookmarkJSON string) (*WorkflowResponse, error) {
	return c.runWorkflow(ctx, c.categorizeKey, map[string]any{
		"bookmark_json": bookmarkJSON,
	})
}

// RunCSVToJSON runs the csv-to-json workflow on a previously uploaded file.
func (c *Client) RunCSVToJSON(ctx context.Context, fileID string) (*WorkflowResponse, error) {
	return c.runWorkflow(ctx, c.csvKey, map[string]any{
		"bookmark_csv": map[string]string{
			"type":            "document",
			"transfer_method": "local_file",
			"upload_file_id":  fileID,
		},
	})
}

func (c *Client) runWorkflow(ctx context.Context, apiKey string, inputs map[string]any) (*WorkflowResponse, error) {
	body, err := json.Marshal(workflowRunRequest{
		Inputs:       inputs,
		ResponseMode: responseModeBlocking,
		User:         c.user,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode workflow request: %v", domain.ErrRemoteService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/workflows/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build workflow request: %v", domain.ErrRemoteService, err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out WorkflowResponse
	if err := c.do(req, &out, http.StatusOK); err != nil {
		return nil, fmt.Errorf("workflow run: %w", err)
	}
	return &out, nil
}

// do executes req and decodes a JSON body when the status is one of ok.
func (c *Client) do(req *http.Request, out any, ok ...int) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemoteService, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if !statusIn(resp.StatusCode, ok) {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", domain.ErrRemoteService, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrRemoteService, err)
	}
	return nil
}

func statusIn(code int, ok []int) bool {
	for _, c := range ok {
		if code == c {
			return true
		}
	}
	return false
}
