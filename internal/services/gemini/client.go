package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nexusops/internal/config"
)

const defaultHTTPTimeout = 30 * time.Second

// Client wraps the Gemini generateContent API for prediction and discovery.
type Client struct {
	cfg        config.Gemini
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a Gemini client using the supplied configuration.
func NewClient(cfg config.Gemini, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Available reports whether the capability can be invoked at all.
// The surrounding UI consults this to disable triggers; calls made anyway
// fail with ErrUnavailable.
func (c *Client) Available() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
	Tools            []tool            `json:"tools,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64         `json:"temperature"`
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error"`
}

type candidate struct {
	Content           content            `json:"content"`
	GroundingMetadata *groundingMetadata `json:"groundingMetadata"`
}

type groundingMetadata struct {
	GroundingChunks []groundingChunk `json:"groundingChunks"`
}

type groundingChunk struct {
	Web *struct {
		URI string `json:"uri"`
	} `json:"web"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// text returns the first non-empty text part across candidates.
func (r *generateResponse) text() string {
	for _, cand := range r.Candidates {
		for _, p := range cand.Content.Parts {
			if trimmed := strings.TrimSpace(p.Text); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// sourceURLs returns the grounding source links across candidates.
func (r *generateResponse) sourceURLs() []string {
	var urls []string
	for _, cand := range r.Candidates {
		if cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web != nil && strings.TrimSpace(chunk.Web.URI) != "" {
				urls = append(urls, chunk.Web.URI)
			}
		}
	}
	return urls
}

func (c *Client) generate(ctx context.Context, req generateRequest) (*generateResponse, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, summarizePayloadSnippet(string(body)))
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("api error %d: %s", decoded.Error.Code, strings.TrimSpace(decoded.Error.Message))
	}
	if decoded.text() == "" {
		return nil, errors.New("empty response text")
	}
	return &decoded, nil
}

// responseSchema mirrors the subset of the Gemini schema language the
// structured-output requests use.
type responseSchema struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description,omitempty"`
	Enum        []string                  `json:"enum,omitempty"`
	Properties  map[string]responseSchema `json:"properties,omitempty"`
	Items       *responseSchema           `json:"items,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

func mustSchema(schema responseSchema) json.RawMessage {
	encoded, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("gemini: encode schema: %v", err))
	}
	return encoded
}
