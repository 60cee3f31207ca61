// Package hr is the HTTP client for the HR backend: the employee roster
// used to build the gallery and the attendance sink that records
// check-in/check-out events.
package hr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Action is the attendance event type.
type Action string

const (
	ActionCheckIn  Action = "check-in"
	ActionCheckOut Action = "check-out"
)

// ParseAction validates an action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCheckIn, ActionCheckOut:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown action %q (want check-in or check-out)", s)
	}
}

// SinkError reports a failed attendance post. It is distinct from any
// recognition failure: the session outcome is still accepted, only the
// recording did not reach the backend. There is no automatic retry.
type SinkError struct {
	StatusCode int
	Err        error
}

func (e *SinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("attendance sink: %v", e.Err)
	}
	return fmt.Sprintf("attendance sink: backend returned status %d", e.StatusCode)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Employee is one roster entry from the HR backend. Portrait carries the
// decoded enrollment photo.
type Employee struct {
	ID       string
	Name     string
	Portrait []byte
}

// Client talks to the HR backend.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates an HR backend client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type attendancePayload struct {
	ImageID   string `json:"image_id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Timezone  string `json:"timezone"`
}

type attendanceResponse struct {
	Status int `json:"status"`
}

// PostAttendance records one attendance event. Any transport or backend
// failure comes back as a *SinkError.
func (c *Client) PostAttendance(ctx context.Context, identity string, action Action, ts time.Time, timezone string) error {
	payload, err := json.Marshal(attendancePayload{
		ImageID:   identity,
		Type:      string(action),
		Timestamp: ts.Format("2006-01-02 15:04:05"),
		Timezone:  timezone,
	})
	if err != nil {
		return &SinkError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/employee/attendance", bytes.NewReader(payload))
	if err != nil {
		return &SinkError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &SinkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &SinkError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &SinkError{StatusCode: resp.StatusCode}
	}

	// The backend wraps its real status inside a 200 response.
	var ar attendanceResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return &SinkError{Err: fmt.Errorf("parse response: %w", err)}
	}
	if ar.Status != http.StatusOK {
		return &SinkError{StatusCode: ar.Status}
	}
	return nil
}

type rosterResponse struct {
	Employees []struct {
		ImageID string `json:"image_id"`
		Name    string `json:"name"`
		Image   string `json:"image"` // base64, optionally with a data URI prefix
	} `json:"employees"`
}

// FetchEmployees downloads the roster with portrait images. Entries
// without a portrait or identity are skipped; they cannot be enrolled.
func (c *Client) FetchEmployees(ctx context.Context) ([]Employee, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/employee/roster", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("roster request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var rr rosterResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	employees := make([]Employee, 0, len(rr.Employees))
	for _, e := range rr.Employees {
		if e.ImageID == "" || e.Image == "" {
			continue
		}
		portrait, err := decodeBase64Image(e.Image)
		if err != nil {
			return nil, fmt.Errorf("decode portrait for %q: %w", e.ImageID, err)
		}
		employees = append(employees, Employee{ID: e.ImageID, Name: e.Name, Portrait: portrait})
	}
	return employees, nil
}

// decodeBase64Image strips an optional data URI prefix and decodes the
// remaining base64 payload.
func decodeBase64Image(s string) ([]byte, error) {
	if strings.Contains(s, "data:image") {
		parts := strings.SplitN(s, ",", 2)
		if len(parts) != 2 {
			return nil, errors.New("malformed data URI")
		}
		s = parts[1]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}
