package app

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Gateway is the one capability the research engine needs from a language
// model service: given a request, return generated output plus a continuation
// id for chaining later calls.
type Gateway interface {
	CreateResponse(ctx context.Context, req ResponseRequest) (*Response, error)
}

var ErrMissingCredential = errors.New("api key is required")

type OpenAIClient struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

// ResponseRequest mirrors the Responses API request body. Input carries a
// plain prompt string or a []InputMessage role/content list.
type ResponseRequest struct {
	Model              string      `json:"model"`
	Input              interface{} `json:"input"`
	Instructions       string      `json:"instructions,omitempty"`
	PreviousResponseID string      `json:"previous_response_id,omitempty"`
	Tools              []ToolSpec  `json:"tools,omitempty"`
}

type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ToolSpec struct {
	Type string `json:"type"`
}

const webSearchToolType = "web_search_preview"

func WebSearchTool() []ToolSpec {
	return []ToolSpec{{Type: webSearchToolType}}
}

const (
	OutputTypeMessage       = "message"
	OutputTypeWebSearchCall = "web_search_call"
	OutputTypeReasoning     = "reasoning"

	ContentTypeOutputText = "output_text"
	ContentTypeRefusal    = "refusal"
)

type Response struct {
	ID     string       `json:"id"`
	Status string       `json:"status,omitempty"`
	Model  string       `json:"model,omitempty"`
	Output []OutputItem `json:"output"`
	Error  *APIError    `json:"error,omitempty"`
}

type OutputItem struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Status  string        `json:"status,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

type ContentPart struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Refusal string `json:"refusal,omitempty"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

var ErrNoMessageOutput = errors.New("response carries no message output")

// MessageText extracts the answer payload by declared output-item kind.
// Tool-enabled replies put web_search_call (and sometimes reasoning) items
// before the message, so position is meaningless; only the type tag is
// trusted.
func (r *Response) MessageText() (string, error) {
	if r == nil {
		return "", ErrNoMessageOutput
	}
	for _, item := range r.Output {
		if item.Type != OutputTypeMessage {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case ContentTypeOutputText:
				if strings.TrimSpace(part.Text) != "" {
					return part.Text, nil
				}
			case ContentTypeRefusal:
				if strings.TrimSpace(part.Refusal) != "" {
					return "", fmt.Errorf("%w: model refused: %s", ErrNoMessageOutput, strings.TrimSpace(part.Refusal))
				}
			}
		}
	}
	return "", ErrNoMessageOutput
}

// WebSearchCalls counts the tool-invocation items of the reply.
func (r *Response) WebSearchCalls() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, item := range r.Output {
		if item.Type == OutputTypeWebSearchCall {
			n++
		}
	}
	return n
}

func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}

	// Skip TLS verification if DEEPR_SKIP_TLS_VERIFY is set (for container environments)
	if os.Getenv("DEEPR_SKIP_TLS_VERIFY") == "1" || os.Getenv("DEEPR_SKIP_TLS_VERIFY") == "true" {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &OpenAIClient{
		APIKey:  apiKey,
		BaseURL: baseURL,
		HTTP:    httpClient,
	}
}

func (c *OpenAIClient) CreateResponse(ctx context.Context, req ResponseRequest) (*Response, error) {
	if c.APIKey == "" {
		return nil, ErrMissingCredential
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+c.APIKey)
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(request)
	if err != nil {
		return nil, fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var errResp struct {
			Error *APIError `json:"error"`
		}
		_ = json.Unmarshal(bodyBytes, &errResp)
		if errResp.Error != nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("openai api error: status %d, message: %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("openai api error: status %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	var out Response
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return nil, fmt.Errorf("invalid api response format: %w", err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return nil, fmt.Errorf("openai api error: %s", out.Error.Message)
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, fmt.Errorf("invalid api response: missing response id")
	}
	return &out, nil
}
