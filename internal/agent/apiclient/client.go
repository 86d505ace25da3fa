// Package apiclient is the agent worker's client for the platform service
// API. All calls carry the shared X-Api-Key; the worker itself holds no
// database or OAuth credentials.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxlane/voice-platform/internal/adapters/googleauth"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/pkg/retry"
)

// Client calls the platform service API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryCfg   retry.Config
}

// NewClient creates a new service API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		retryCfg: retry.DefaultConfig(),
	}
}

// CreateCall opens a call record for a session the worker is joining.
func (c *Client) CreateCall(ctx context.Context, req *domain.CreateCallRecordRequest) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	if err := c.do(ctx, http.MethodPost, "/api/calls", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateCall patches a call record as the session progresses.
func (c *Client) UpdateCall(ctx context.Context, callID string, req *domain.UpdateCallRecordRequest) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	if err := c.do(ctx, http.MethodPatch, "/api/calls/"+callID, req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// QueryKnowledge runs a similarity search against an agent's document
// pipeline.
func (c *Client) QueryKnowledge(ctx context.Context, agentID, query string, topK int) ([]domain.KnowledgeChunk, error) {
	req := domain.KnowledgeQueryRequest{Query: query, TopK: topK}
	var chunks []domain.KnowledgeChunk
	path := fmt.Sprintf("/api/internal/agents/%s/knowledge/query", agentID)
	if err := c.do(ctx, http.MethodPost, path, req, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// CreateCalendarEvent creates an event on the agent owner's Google calendar.
func (c *Client) CreateCalendarEvent(ctx context.Context, userID string, event *googleauth.CalendarEvent) (*googleauth.CalendarEvent, error) {
	var created googleauth.CalendarEvent
	path := fmt.Sprintf("/api/internal/users/%s/calendar/events", userID)
	if err := c.do(ctx, http.MethodPost, path, event, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListCalendarEvents lists upcoming events on the owner's calendar.
func (c *Client) ListCalendarEvents(ctx context.Context, userID string, max int) ([]googleauth.CalendarEvent, error) {
	var events []googleauth.CalendarEvent
	path := fmt.Sprintf("/api/internal/users/%s/calendar/events?max=%d", userID, max)
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to serialize request: %w", err)
		}
	}

	return retry.Do(ctx, c.retryCfg, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, reader)
		if err != nil {
			return retry.Stop(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("service API request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("service API returned %d for %s %s", resp.StatusCode, method, path)
		}
		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(resp.Body)
			return retry.Stop(fmt.Errorf("service API returned %d for %s %s: %s", resp.StatusCode, method, path, string(raw)))
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Stop(fmt.Errorf("failed to parse service API response: %w", err))
			}
		}
		return nil
	})
}
