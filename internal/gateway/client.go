// Package gateway talks to the external AI media-generation endpoint
// (an OpenAI-compatible chat-completions API with image modalities).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"sparkfeed/internal/model"
)

var ErrNoMedia = errors.New("gateway returned no usable media")

type GenerationRequest struct {
	Prompt    string
	MediaType model.MediaType
	// ImageURL, when set, switches the request into edit mode: the prompt is
	// applied to the referenced image instead of generating from scratch.
	ImageURL string
}

type GeneratedMedia struct {
	URL string
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

func NewClient(endpoint, apiKey, modelName string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      modelName,
	}
}

// Generate performs the generation call with a bounded exponential backoff.
// Only transport failures and 5xx responses are retried; a 4xx means the
// request itself is bad and retrying cannot help.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (*GeneratedMedia, error) {
	var media *GeneratedMedia

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		m, err := c.generate(ctx, req)
		if err != nil {
			var transient *transientError
			if errors.As(err, &transient) {
				return retry.RetryableError(err)
			}
			return err
		}
		media = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return media, nil
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// message content shapes: a plain string for prompt-only generation, or a
// parts array carrying the prompt plus an image reference for edit mode.
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Modalities []string      `json:"modalities"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Images []struct {
				ImageURL imageRef `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) generate(ctx context.Context, req GenerationRequest) (*GeneratedMedia, error) {
	var content interface{} = req.Prompt
	if req.ImageURL != "" {
		content = []contentPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &imageRef{URL: req.ImageURL}},
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:      c.model,
		Messages:   []chatMessage{{Role: "user", Content: content}},
		Modalities: []string{string(req.MediaType), "text"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &transientError{fmt.Errorf("gateway request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return nil, &transientError{fmt.Errorf("gateway returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, msg)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.Images) == 0 {
		return nil, ErrNoMedia
	}
	url := parsed.Choices[0].Message.Images[0].ImageURL.URL
	if url == "" {
		return nil, ErrNoMedia
	}
	return &GeneratedMedia{URL: url}, nil
}
