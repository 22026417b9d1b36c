package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// UpstreamReply is an upstream response whose body is known to be JSON.
type UpstreamReply struct {
	StatusCode int
	Body       json.RawMessage
}

type UpstreamProvider interface {
	// Forward posts body to the provider with apiKey as bearer token. A
	// non-2xx status is not an error; transport failures and non-JSON
	// bodies are.
	Forward(ctx context.Context, apiKey string, body []byte) (*UpstreamReply, error)
}

type SeedreamUpstream struct {
	url       string
	userAgent string
	client    *http.Client
}

func NewSeedreamUpstream(url, userAgent string, client *http.Client) *SeedreamUpstream {
	if client == nil {
		client = &http.Client{}
	}
	return &SeedreamUpstream{url: url, userAgent: userAgent, client: client}
}

func (u *SeedreamUpstream) URL() string {
	return u.url
}

func (u *SeedreamUpstream) Forward(ctx context.Context, apiKey string, body []byte) (*UpstreamReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", u.userAgent)

	start := time.Now()
	resp, err := u.client.Do(req)
	if err != nil {
		UpstreamRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, err
	}
	defer resp.Body.Close()
	UpstreamRequestDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("upstream returned a non-JSON body with status %d", resp.StatusCode)
	}
	return &UpstreamReply{StatusCode: resp.StatusCode, Body: raw}, nil
}
