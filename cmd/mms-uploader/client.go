package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	maxRetries        = 3
	maxWakeupAttempts = 30
	wakeupInterval    = 5 * time.Second
	uploadTimeout     = 5 * time.Minute
)

// Client talks to the MMS TDDF ingestion server.
type Client struct {
	BaseURL string
	APIKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		http:    &http.Client{Timeout: uploadTimeout},
	}
}

func (c *Client) newRequest(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return req, nil
}

type PingResult struct {
	Elapsed  time.Duration
	KeyValid bool
}

// Ping checks connectivity. No API key is required, but when one is set it is
// validated against the authenticated status endpoint.
func (c *Client) Ping() (*PingResult, error) {
	req, err := c.newRequest(http.MethodGet, "/tddf/ping", nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ping returned HTTP %d", resp.StatusCode)
	}

	result := &PingResult{Elapsed: elapsed.Round(time.Millisecond)}
	if c.APIKey != "" {
		if _, err := c.QueueStatus(); err == nil {
			result.KeyValid = true
		}
	}
	return result, nil
}

type QueueStatus struct {
	PendingLines int            `json:"pending_lines"`
	FileStatuses map[string]int `json:"file_statuses"`
}

// QueueStatus fetches the fleet-wide upload queue state.
func (c *Client) QueueStatus() (*QueueStatus, error) {
	req, err := c.newRequest(http.MethodGet, "/tddf/batch-status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("API key rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status returned HTTP %d", resp.StatusCode)
	}
	var status QueueStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &status, nil
}

// UploadFile posts one file as multipart form data. HTTP 409 means the server
// already has the file and is treated as success.
func (c *Client) UploadFile(path, displayName string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(displayName))
	if err != nil {
		return fmt.Errorf("failed to build multipart form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(http.MethodPost, "/tddf/upload", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		// Server already has this file.
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload returned HTTP %d: %s", resp.StatusCode, string(body))
	}
}

// WakeupServer pings until the server responds, for deployments that cold
// start on first request.
func (c *Client) WakeupServer() bool {
	for attempt := 1; attempt <= maxWakeupAttempts; attempt++ {
		if _, err := c.Ping(); err == nil {
			return true
		}
		if attempt < maxWakeupAttempts {
			time.Sleep(wakeupInterval)
		}
	}
	return false
}
