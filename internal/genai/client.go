// Package genai is a minimal client for the Gemini generateContent REST API.
package genai

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

var (
	ErrNoAPIKey     = errors.New("genai: no API key configured")
	ErrEmptyContent = errors.New("genai: response has no text")
)

// Request is one single-turn prompt.
type Request struct {
	Model             string
	Prompt            string
	SystemInstruction string
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Client talks to one API endpoint with one key.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient returns a client; a zero timeout means no deadline beyond ctx.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Generate returns the concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(err, "genai: encode request")
	}

	u := c.endpoint + "/models/" + url.PathEscape(req.Model) + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return "", errors.Wrap(err, "genai: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "genai: call")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "genai: read response")
	}
	var out generateResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", errors.Wrapf(err, "genai: decode response (status %d)", resp.StatusCode)
	}
	if out.Error != nil {
		return "", errors.Errorf("genai: %s (%d %s)", out.Error.Message, out.Error.Code, out.Error.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("genai: unexpected status %d", resp.StatusCode)
	}
	if len(out.Candidates) == 0 {
		return "", ErrEmptyContent
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}
