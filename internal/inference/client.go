package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for inference bridge failures.
var (
	ErrBridgeUnreachable = errors.New("inference bridge unreachable")
	ErrBridgeTimeout     = errors.New("inference request timeout")
	ErrCaptionFailed     = errors.New("caption generation failed")
)

// Client is the interface for running a perspective against an image.
type Client interface {
	Caption(ctx context.Context, req CaptionRequest) (*CaptionResult, error)
	Ready(ctx context.Context) error
}

// CaptionRequest asks the bridge to run one perspective against one image.
type CaptionRequest struct {
	ImagePath   string         `json:"image_path"`
	Perspective string         `json:"perspective"`
	Options     map[string]any `json:"options,omitempty"`
}

// CaptionResult is the bridge's output for a single item.
type CaptionResult struct {
	Caption  string `json:"caption"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// HTTPClient implements Client against the perspective bridge's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new inference bridge client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Caption(ctx context.Context, req CaptionRequest) (*CaptionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding caption request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/perspectives/caption", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrCaptionFailed, errBody.Error)
		}
		return nil, fmt.Errorf("%w: status %d", ErrCaptionFailed, resp.StatusCode)
	}

	var result CaptionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding caption response: %w", err)
	}
	return &result, nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBridgeUnreachable, resp.StatusCode)
	}
	return nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrBridgeTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrBridgeUnreachable, err)
}
