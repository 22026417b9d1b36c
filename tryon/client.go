// Package tryon is the relay client: it builds the virtual try-on generation
// request, sends it to the resolved target and interprets the reply.
package tryon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tryonapi/config"
	"tryonapi/models"
)

const (
	// TryOnPrompt tells the provider which image is the subject and which
	// carries the garment.
	TryOnPrompt = "[Combination] Dress the character in Image 1 with the outfit from Image 2."

	sequentialGenerationDisabled = "disabled"
	outputSize                   = "2K"
	responseFormatURL            = "url"
)

// Request is one try-on generation: the person photo (a base64 data URL)
// and the outfit image URL.
type Request struct {
	PersonImageBase64 string
	OutfitImageURL    string
}

type Client struct {
	apiKey     string
	model      string
	target     Target
	httpClient *http.Client
	logger     *zap.Logger
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default client. The default has no timeout;
// cancellation is left to the caller's context.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient resolves the target once and binds it to the returned client.
func NewClient(cfg config.ClientConfig, opts ...ClientOption) *Client {
	model := cfg.ModelID
	if model == "" {
		model = config.DefaultModelID
	}
	c := &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		target:     ResolveTarget(cfg),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Target() Target {
	return c.target
}

// BuildRequest assembles the provider body. The person image is not
// normalised here; callers pass it through ConvertToAPIBase64Format first.
func (c *Client) BuildRequest(req Request) models.GenerationRequest {
	return models.GenerationRequest{
		Model:                     c.model,
		Prompt:                    TryOnPrompt,
		Image:                     []string{req.PersonImageBase64, req.OutfitImageURL},
		SequentialImageGeneration: sequentialGenerationDisabled,
		Size:                      outputSize,
		ResponseFormat:            responseFormatURL,
		Watermark:                 false,
	}
}

// GenerateTryOnImage returns the URL of the first generated image. Every
// failure is an *Error.
func (c *Client) GenerateTryOnImage(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", newError(missingAPIKeyMessage, "")
	}

	payload, err := json.Marshal(c.BuildRequest(req))
	if err != nil {
		return "", wrapError(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", wrapError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.target.Authorize(httpReq.Header, c.apiKey)

	c.logger.Debug("Sending try-on generation request",
		zap.String("target", c.target.Kind().String()),
		zap.String("endpoint", c.target.Endpoint()),
		zap.String("model", c.model))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", wrapError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapError(err)
	}

	imageURL, err := interpretReply(resp.StatusCode, statusText(resp), body)
	if err != nil {
		c.logger.Warn("Try-on generation failed",
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return "", err
	}
	return imageURL, nil
}

// statusText is the reason phrase of the response status line.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
