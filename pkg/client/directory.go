// Package client is the device-side SDK: a REST client for the connection
// directory, a persistent notification channel, the reconcilers that drive
// role-specific UI from directory state, and the active-recipient selector.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Sentinel errors mapped from API error codes. Callers match with errors.Is.
var (
	ErrUnauthorized     = errors.New("not authorized")
	ErrNotFound         = errors.New("not found")
	ErrNotPending       = errors.New("request is no longer pending")
	ErrAlreadyConnected = errors.New("already connected")
)

// APIError is a non-2xx response from the directory API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("directory API: %s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
}

// Is maps stable API error codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == "UNAUTHORIZED"
	case ErrNotFound:
		return e.Code == "NOT_FOUND"
	case ErrNotPending:
		return e.Code == "NOT_PENDING"
	case ErrAlreadyConnected:
		return e.Code == "ALREADY_CONNECTED"
	}
	return false
}

// Retryable reports whether the failure is transient (network error or 5xx).
// Authorization and state-conflict failures are never retryable.
func Retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return err != nil
}

// Connection mirrors the server's connection record.
type Connection struct {
	ID          string     `json:"id"`
	CaregiverID string     `json:"caregiverId"`
	ElderlyID   string     `json:"elderlyId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

// PendingRequest is a pending connection joined with the requesting
// caregiver's profile.
type PendingRequest struct {
	ID                       string    `json:"id"`
	Status                   string    `json:"status"`
	CreatedAt                time.Time `json:"createdAt"`
	CaregiverID              string    `json:"caregiverId"`
	CaregiverUsername        string    `json:"caregiverUsername,omitempty"`
	CaregiverFullName        string    `json:"caregiverFullName,omitempty"`
	CaregiverEmail           string    `json:"caregiverEmail,omitempty"`
	CaregiverProfileImageURL string    `json:"caregiverProfileImageUrl,omitempty"`
}

// User is a counterpart profile as the listing endpoints return it.
type User struct {
	ID              string `json:"id"`
	Username        string `json:"username,omitempty"`
	FullName        string `json:"fullName,omitempty"`
	Email           string `json:"email,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// Directory talks to the connection directory REST API as one user.
type Directory struct {
	baseURL string
	userID  string
	token   string
	http    *http.Client
}

// NewDirectory creates a directory client. userID is the identity stamped on
// every request; token is the optional shared bearer token.
func NewDirectory(baseURL, userID, token string) *Directory {
	return &Directory{
		baseURL: baseURL,
		userID:  userID,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// UserID returns the identity this client acts as.
func (d *Directory) UserID() string { return d.userID }

// CreateRequest asks to pair this caregiver with the elderly user, typically
// right after decoding a scanned token.
func (d *Directory) CreateRequest(ctx context.Context, elderlyID string) (Connection, error) {
	body := map[string]string{"caregiverId": d.userID, "elderlyId": elderlyID}
	var out struct {
		Connection Connection `json:"connection"`
	}
	err := d.do(ctx, http.MethodPost, "/connections/request", nil, body, &out)
	return out.Connection, err
}

// Pending lists this elderly user's open approval prompts.
func (d *Directory) Pending(ctx context.Context) ([]PendingRequest, error) {
	var out []PendingRequest
	err := d.do(ctx, http.MethodGet, "/connections/pending", url.Values{"elderlyId": {d.userID}}, nil, &out)
	return out, err
}

// Approve resolves a pending request in the caregiver's favor.
func (d *Directory) Approve(ctx context.Context, connectionID string) (Connection, error) {
	return d.resolve(ctx, connectionID, "approve")
}

// Reject resolves a pending request against the caregiver.
func (d *Directory) Reject(ctx context.Context, connectionID string) (Connection, error) {
	return d.resolve(ctx, connectionID, "reject")
}

func (d *Directory) resolve(ctx context.Context, connectionID, action string) (Connection, error) {
	var out struct {
		Connection Connection `json:"connection"`
	}
	path := fmt.Sprintf("/connections/%s/%s", url.PathEscape(connectionID), action)
	err := d.do(ctx, http.MethodPost, path, nil, nil, &out)
	return out.Connection, err
}

// ElderlyList returns the elderly users connected to this caregiver, in the
// server's stable order.
func (d *Directory) ElderlyList(ctx context.Context) ([]User, error) {
	var out []User
	err := d.do(ctx, http.MethodGet, "/connections/elderly-list", url.Values{"caregiverId": {d.userID}}, nil, &out)
	return out, err
}

// CaregiverList returns the caregivers connected to this elderly user.
func (d *Directory) CaregiverList(ctx context.Context) ([]User, error) {
	var out []User
	err := d.do(ctx, http.MethodGet, "/connections/caregiver-list", url.Values{"elderlyId": {d.userID}}, nil, &out)
	return out, err
}

// Sever removes the established connection between the two users.
func (d *Directory) Sever(ctx context.Context, caregiverID, elderlyID string) (bool, error) {
	var out struct {
		Removed bool `json:"removed"`
	}
	q := url.Values{"caregiverId": {caregiverID}, "elderlyId": {elderlyID}}
	err := d.do(ctx, http.MethodDelete, "/connections", q, nil, &out)
	return out.Removed, err
}

func (d *Directory) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := d.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody *bytes.Buffer = &bytes.Buffer{}
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Carelink-User-Id", d.userID)
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&er); decodeErr == nil {
			apiErr.Code = er.Code
			apiErr.Message = er.Message
		} else {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
