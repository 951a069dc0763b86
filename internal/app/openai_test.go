package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func messageResponse(id, text string) Response {
	return Response{
		ID:     id,
		Status: "completed",
		Output: []OutputItem{
			{
				Type: OutputTypeMessage,
				Role: "assistant",
				Content: []ContentPart{
					{Type: ContentTypeOutputText, Text: text},
				},
			},
		},
	}
}

func TestCreateResponseSendsAuthAndContinuation(t *testing.T) {
	var auth, contentType string
	var got struct {
		Model              string          `json:"model"`
		Input              json.RawMessage `json:"input"`
		Instructions       string          `json:"instructions"`
		PreviousResponseID string          `json:"previous_response_id"`
		Tools              []ToolSpec      `json:"tools"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(messageResponse("resp_1", "ok"))
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", srv.URL, 5*time.Second)
	resp, err := client.CreateResponse(context.Background(), ResponseRequest{
		Model:              "gpt-4.1",
		Input:              "search: golang concurrency",
		Instructions:       researcherInstructions,
		PreviousResponseID: "resp_root",
		Tools:              WebSearchTool(),
	})
	require.NoError(t, err)
	require.Equal(t, "resp_1", resp.ID)

	require.Equal(t, "Bearer sk-test", auth)
	require.Equal(t, "application/json", contentType)
	require.Equal(t, "gpt-4.1", got.Model)
	require.Equal(t, "resp_root", got.PreviousResponseID)
	require.Equal(t, []ToolSpec{{Type: "web_search_preview"}}, got.Tools)
	require.JSONEq(t, `"search: golang concurrency"`, string(got.Input))
}

func TestCreateResponseOmitsEmptyOptionalFields(t *testing.T) {
	var rawBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rawBody = string(b)
		_ = json.NewEncoder(w).Encode(messageResponse("resp_1", "ok"))
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", srv.URL, 5*time.Second)
	_, err := client.CreateResponse(context.Background(), ResponseRequest{
		Model: "gpt-4.1-mini",
		Input: "a prompt",
	})
	require.NoError(t, err)
	require.NotContains(t, rawBody, "previous_response_id")
	require.NotContains(t, rawBody, "tools")
}

func TestCreateResponseSendsMessageListInput(t *testing.T) {
	var got struct {
		Input []InputMessage `json:"input"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(messageResponse("resp_1", "No"))
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", srv.URL, 5*time.Second)
	_, err := client.CreateResponse(context.Background(), ResponseRequest{
		Model: "gpt-4.1",
		Input: evaluateInput("some goal", []SearchArtifact{{Query: "q", Reference: "r"}}),
	})
	require.NoError(t, err)
	require.Len(t, got.Input, 3)
	require.Equal(t, "developer", got.Input[0].Role)
	require.Equal(t, "assistant", got.Input[1].Role)
	require.Equal(t, "user", got.Input[2].Role)
	require.Equal(t, evaluateVerdictPrompt, got.Input[2].Content)
}

func TestCreateResponseSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-bad", srv.URL, 5*time.Second)
	_, err := client.CreateResponse(context.Background(), ResponseRequest{Model: "gpt-4.1", Input: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Incorrect API key provided")
	require.Contains(t, err.Error(), "401")
}

func TestCreateResponseRejectsMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Response{Status: "completed"})
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", srv.URL, 5*time.Second)
	_, err := client.CreateResponse(context.Background(), ResponseRequest{Model: "gpt-4.1", Input: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing response id")
}

func TestCreateResponseWithoutKeyFails(t *testing.T) {
	client := NewOpenAIClient("", "http://localhost:0", time.Second)
	_, err := client.CreateResponse(context.Background(), ResponseRequest{Model: "gpt-4.1", Input: "x"})
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestMessageTextPicksMessageItemByType(t *testing.T) {
	// Tool replies put the web_search_call (and sometimes a reasoning item)
	// ahead of the message, so extraction has to go by declared type.
	resp := &Response{
		ID: "resp_1",
		Output: []OutputItem{
			{Type: OutputTypeWebSearchCall, ID: "ws_1", Status: "completed"},
			{Type: OutputTypeReasoning, ID: "rs_1"},
			{
				Type: OutputTypeMessage,
				Role: "assistant",
				Content: []ContentPart{
					{Type: ContentTypeOutputText, Text: "the actual answer"},
				},
			},
		},
	}
	text, err := resp.MessageText()
	require.NoError(t, err)
	require.Equal(t, "the actual answer", text)
	require.Equal(t, 1, resp.WebSearchCalls())
}

func TestMessageTextSkipsBlankParts(t *testing.T) {
	resp := &Response{
		ID: "resp_1",
		Output: []OutputItem{
			{Type: OutputTypeMessage, Content: []ContentPart{{Type: ContentTypeOutputText, Text: "   "}}},
			{Type: OutputTypeMessage, Content: []ContentPart{{Type: ContentTypeOutputText, Text: "filled"}}},
		},
	}
	text, err := resp.MessageText()
	require.NoError(t, err)
	require.Equal(t, "filled", text)
}

func TestMessageTextRefusal(t *testing.T) {
	resp := &Response{
		ID: "resp_1",
		Output: []OutputItem{
			{
				Type:    OutputTypeMessage,
				Content: []ContentPart{{Type: ContentTypeRefusal, Refusal: "cannot help with that"}},
			},
		},
	}
	_, err := resp.MessageText()
	require.ErrorIs(t, err, ErrNoMessageOutput)
	require.Contains(t, err.Error(), "cannot help with that")
}

func TestMessageTextNoMessageItems(t *testing.T) {
	resp := &Response{
		ID:     "resp_1",
		Output: []OutputItem{{Type: OutputTypeWebSearchCall}},
	}
	_, err := resp.MessageText()
	require.ErrorIs(t, err, ErrNoMessageOutput)
}

func TestMessageTextPreservesLeadingMarkdown(t *testing.T) {
	resp := messageResponse("resp_x", "# Title\n\nbody")
	text, err := resp.MessageText()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(text, "# Title"))
}
