package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxImageBytes matches the relay's default body limit.
const MaxImageBytes = 10 << 20

// ReadImageFromURL downloads an image, refusing anything over MaxImageBytes.
func ReadImageFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch image, status code: %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(content) > MaxImageBytes {
		return nil, fmt.Errorf("image at %s is larger than %d bytes", url, MaxImageBytes)
	}
	return content, nil
}
