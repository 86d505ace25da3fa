package googleauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

const calendarBaseURL = "https://www.googleapis.com/calendar/v3"

// CalendarEvent is the subset of the Google Calendar event resource the
// agent tools work with.
type CalendarEvent struct {
	ID          string        `json:"id,omitempty"`
	Summary     string        `json:"summary"`
	Description string        `json:"description,omitempty"`
	Start       CalendarTime  `json:"start"`
	End         CalendarTime  `json:"end"`
	Attendees   []Attendee    `json:"attendees,omitempty"`
	HTMLLink    string        `json:"htmlLink,omitempty"`
	Status      string        `json:"status,omitempty"`
}

// CalendarTime wraps the dateTime form of Google's event times.
type CalendarTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Attendee is a calendar event attendee.
type Attendee struct {
	Email string `json:"email"`
}

// CreateCalendarEvent inserts an event into the account's primary calendar.
func (c *Client) CreateCalendarEvent(ctx context.Context, token *oauth2.Token, event *CalendarEvent) (*CalendarEvent, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize calendar event: %w", err)
	}

	var created CalendarEvent
	err = c.doCalendar(ctx, token, http.MethodPost, "/calendars/primary/events", bytes.NewReader(body), &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ListCalendarEvents returns upcoming events from the primary calendar,
// ordered by start time.
func (c *Client) ListCalendarEvents(ctx context.Context, token *oauth2.Token, from time.Time, max int) ([]CalendarEvent, error) {
	if max <= 0 {
		max = 10
	}
	q := url.Values{}
	q.Set("timeMin", from.UTC().Format(time.RFC3339))
	q.Set("maxResults", fmt.Sprintf("%d", max))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	var result struct {
		Items []CalendarEvent `json:"items"`
	}
	err := c.doCalendar(ctx, token, http.MethodGet, "/calendars/primary/events?"+q.Encode(), nil, &result)
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (c *Client) doCalendar(ctx context.Context, token *oauth2.Token, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, calendarBaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build calendar request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.config.Client(ctx, token)
	httpClient.Timeout = 15 * time.Second

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse calendar response: %w", err)
		}
	}
	return nil
}
