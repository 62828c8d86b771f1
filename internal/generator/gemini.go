package generator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"code2diagram/internal/diagram"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 4 << 20

// Client sends a prompt to a text-generation model and returns its raw answer.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StatusError is a non-2xx answer from the generation endpoint.
type StatusError struct {
	StatusCode int
	Status     string // provider status such as RESOURCE_EXHAUSTED
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("gemini api error: %d %s - %s", e.StatusCode, e.Status, e.Message)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiClient calls the Gemini generateContent endpoint. It performs exactly
// one HTTP attempt per call.
type GeminiClient struct {
	endpoint string
	apiKey   string
	http     *retryablehttp.Client
}

// NewGeminiClient builds a client for model under baseURL
// (e.g. https://generativelanguage.googleapis.com/v1beta).
func NewGeminiClient(baseURL, model, apiKey string) *GeminiClient {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 0
	hc.Logger = nil
	hc.CheckRetry = func(context.Context, *http.Response, error) (bool, error) { return false, nil }
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &GeminiClient{
		endpoint: strings.TrimRight(baseURL, "/") + "/models/" + url.PathEscape(model) + ":generateContent",
		apiKey:   apiKey,
		http:     hc,
	}
}

// Complete posts prompt as a single user turn and returns the text of the first candidate.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", errors.Wrap(err, "encode gemini request")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build gemini request")
	}
	req.Header.Set("Content-Type", "application/json")
	// Header rather than ?key= so the credential never shows up in url.Error text.
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrap(err, "read gemini response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var eb geminiErrorBody
		if json.Unmarshal(raw, &eb) == nil {
			se.Status = eb.Error.Status
			se.Message = eb.Error.Message
		}
		if se.Message == "" {
			se.Message = strings.TrimSpace(string(raw))
		}
		return "", se
	}

	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", diagram.NewError(diagram.ClassMalformedResponse, "unexpected response format from Gemini API", err)
	}
	if len(out.Candidates) == 0 {
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			return "", diagram.NewError(diagram.ClassMalformedResponse, "the prompt was blocked by the model",
				fmt.Errorf("block reason %s", out.PromptFeedback.BlockReason))
		}
		return "", nil
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
