package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// MediaClient handles communication with the media-service, which fetches an
// external image URL and rehosts it on tenant storage.
type MediaClient struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry

	maxAttempts int
	retryDelay  time.Duration
}

// UploadRequest asks the media-service to fetch and rehost one image.
type UploadRequest struct {
	URL string `json:"url"`
}

// UploadResponse carries the hosted URL, or an error message when the fetch
// failed on the media-service side.
type UploadResponse struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewMediaClient creates a client for the media service at baseURL.
// MEDIA_HOSTED_PREFIX overrides the URL prefix of already-hosted images.
func NewMediaClient(baseURL string) *MediaClient {
	if baseURL == "" {
		baseURL = "http://media-service:8080"
	}

	return &MediaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:         logrus.WithField("component", "media-client"),
		maxAttempts: 3,
		retryDelay:  time.Second,
	}
}

// IsHosted reports whether url already points at the media store. Re-imports
// reuse such URLs instead of uploading the same bytes again.
func (c *MediaClient) IsHosted(url string) bool {
	prefix := os.Getenv("MEDIA_HOSTED_PREFIX")
	if prefix == "" {
		prefix = c.baseURL
	}
	return strings.HasPrefix(url, prefix)
}

// Upload asks the media-service to rehost sourceURL and returns the hosted
// URL. Transient failures are retried a fixed number of times with a fixed
// delay between attempts.
func (c *MediaClient) Upload(ctx context.Context, tenantID, sourceURL string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		url, err := c.upload(ctx, tenantID, sourceURL)
		if err == nil {
			return url, nil
		}
		lastErr = err
		c.log.WithFields(logrus.Fields{
			"source":  sourceURL,
			"attempt": attempt,
		}).WithError(err).Warn("Image upload attempt failed")
	}
	return "", fmt.Errorf("upload failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *MediaClient) upload(ctx context.Context, tenantID, sourceURL string) (string, error) {
	body, err := json.Marshal(UploadRequest{URL: sourceURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/media/upload", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("media-service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var uploadResp UploadResponse
	if err := json.Unmarshal(respBody, &uploadResp); err != nil {
		return "", fmt.Errorf("invalid media-service response: %w", err)
	}
	if uploadResp.Error != "" {
		return "", fmt.Errorf("media-service error: %s", uploadResp.Error)
	}
	if uploadResp.URL == "" {
		return "", fmt.Errorf("media-service response missing url")
	}
	return uploadResp.URL, nil
}

// Delete removes a hosted image. Best effort: deletion failures are logged
// and swallowed since a dangling media object is harmless.
func (c *MediaClient) Delete(ctx context.Context, tenantID, hostedURL string) {
	body, err := json.Marshal(UploadRequest{URL: hostedURL})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/api/v1/media", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("url", hostedURL).Warn("Failed to delete media object")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		c.log.WithFields(logrus.Fields{
			"url":    hostedURL,
			"status": resp.StatusCode,
		}).Warn("Media delete returned error status")
	}
}
