package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ailawyer-pro/ailawyer/internal/mirror"
)

// ErrUnauthorized is returned when the server rejects the session token
var ErrUnauthorized = errors.New("session is not valid. Please run 'ailawyer login' again")

// Client represents an HTTP client for the AI Lawyer API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new API client
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// SetToken sets the session token sent as a bearer credential
func (c *Client) SetToken(token string) {
	c.token = token
}

// BaseURL returns the server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LoginRequest represents the sign-in request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User mirrors the server's user representation
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Session mirrors the server's session representation
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResponse represents the sign-in response
type LoginResponse struct {
	Token   string   `json:"token"`
	User    User     `json:"user"`
	Session *Session `json:"session"`
}

// SessionInfo is the get-session payload
type SessionInfo struct {
	Session Session `json:"session"`
	User    User    `json:"user"`
}

// Login exchanges credentials for a session token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var loginResp LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/sign-in/email", LoginRequest{Email: email, Password: password}, &loginResp)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, errors.New("invalid email or password")
		}
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return &loginResp, nil
}

// Me returns the user behind the current token
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the current session
func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/sign-out", nil, nil)
}

// GetSession returns the current session, or nil when there is none
func (c *Client) GetSession(ctx context.Context) (*SessionInfo, error) {
	var info *SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/auth/get-session", nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// CheckSession adapts GetSession for the auth mirror
func (c *Client) CheckSession(ctx context.Context) (mirror.SessionStatus, error) {
	info, err := c.GetSession(ctx)
	if err != nil {
		return mirror.SessionStatus{}, err
	}
	if info == nil {
		return mirror.SessionStatus{}, nil
	}
	return mirror.SessionStatus{Authenticated: true, Role: info.User.Role}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
