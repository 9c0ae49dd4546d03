package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client represents an HTTP client for the tripsplit API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new API client for baseURL, e.g. "http://localhost:8080"
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

// SetToken sets the bearer token sent with every request
func (c *Client) SetToken(token string) {
	c.token = token
}

// BaseURL returns the server address the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a failed envelope returned by the server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s (status %d", e.Message, e.StatusCode)
	if e.Code != "" {
		msg += ", " + e.Code
	}
	msg += ")"
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// IsUnauthorized reports whether err is a 401 from the server
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Pagination mirrors the server's page metadata
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination"`
	Error      *struct {
		Code    string `json:"code"`
		Details string `json:"details"`
	} `json:"error"`
}

type User struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

type Member struct {
	UserID   string    `json:"user_id" yaml:"user_id"`
	Name     string    `json:"name" yaml:"name"`
	Email    string    `json:"email" yaml:"email"`
	Role     string    `json:"role" yaml:"role"`
	JoinedAt time.Time `json:"joined_at" yaml:"joined_at"`
}

type Group struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Description    string     `json:"description" yaml:"description,omitempty"`
	Currency       string     `json:"currency" yaml:"currency"`
	DigestSchedule string     `json:"digest_schedule" yaml:"digest_schedule,omitempty"`
	NextDigestAt   *time.Time `json:"next_digest_at" yaml:"next_digest_at,omitempty"`
	CreatedByID    string     `json:"created_by_id" yaml:"created_by_id"`
	CreatedAt      time.Time  `json:"created_at" yaml:"created_at"`
	Members        []Member   `json:"members" yaml:"members,omitempty"`
}

type CreateGroupRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Currency       string `json:"currency"`
	DigestSchedule string `json:"digest_schedule,omitempty"`
}

type Share struct {
	UserID string `json:"user_id" yaml:"user_id"`
	Amount int64  `json:"amount" yaml:"amount"`
}

type Split struct {
	UserID      string `json:"user_id" yaml:"user_id"`
	AmountCents int64  `json:"amount_cents" yaml:"amount_cents"`
}

type Expense struct {
	ID          string    `json:"id" yaml:"id"`
	GroupID     string    `json:"group_id" yaml:"group_id"`
	PaidByID    string    `json:"paid_by_id" yaml:"paid_by_id"`
	Description string    `json:"description" yaml:"description"`
	AmountCents int64     `json:"amount_cents" yaml:"amount_cents"`
	Currency    string    `json:"currency" yaml:"currency"`
	SplitMethod string    `json:"split_method" yaml:"split_method"`
	SpentAt     time.Time `json:"spent_at" yaml:"spent_at"`
	Splits      []Split   `json:"splits" yaml:"splits,omitempty"`
}

type CreateExpenseRequest struct {
	Description  string     `json:"description"`
	AmountCents  int64      `json:"amount_cents"`
	Currency     string     `json:"currency,omitempty"`
	PaidByID     string     `json:"paid_by_id,omitempty"`
	SplitMethod  string     `json:"split_method,omitempty"`
	Participants []string   `json:"participants,omitempty"`
	Shares       []Share    `json:"shares,omitempty"`
	SpentAt      *time.Time `json:"spent_at,omitempty"`
}

type Balance struct {
	UserID string `json:"user_id" yaml:"user_id"`
	Net    int64  `json:"net" yaml:"net"`
}

type Transfer struct {
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	Amount int64  `json:"amount" yaml:"amount"`
}

type Summary struct {
	GroupID     string     `json:"group_id" yaml:"group_id"`
	Currency    string     `json:"currency" yaml:"currency"`
	Balances    []Balance  `json:"balances" yaml:"balances"`
	Settlements []Transfer `json:"settlements" yaml:"settlements"`
}

type Snapshot struct {
	ID         string    `json:"id" yaml:"id"`
	UserID     string    `json:"user_id" yaml:"user_id"`
	NetCents   int64     `json:"net_cents" yaml:"net_cents"`
	ComputedAt time.Time `json:"computed_at" yaml:"computed_at"`
}

// Register creates an account and returns a token for it
func (c *Client) Register(ctx context.Context, email, password, name string) (*LoginResponse, error) {
	var resp LoginResponse
	body := map[string]string{"email": email, "password": password, "name": name}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login authenticates the user and returns a JWT token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	body := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the current token on the server
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	return err
}

// Me returns the user the token belongs to
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if _, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListGroups(ctx context.Context, page, limit int) ([]Group, *Pagination, error) {
	var groups []Group
	p, err := c.do(ctx, http.MethodGet, "/api/groups"+pageQuery(page, limit), nil, &groups)
	return groups, p, err
}

func (c *Client) CreateGroup(ctx context.Context, req CreateGroupRequest) (*Group, error) {
	var group Group
	if _, err := c.do(ctx, http.MethodPost, "/api/groups", req, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (c *Client) GetGroup(ctx context.Context, groupID string) (*Group, error) {
	var group Group
	if _, err := c.do(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(groupID), nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (c *Client) AddMember(ctx context.Context, groupID, email string) (*Member, error) {
	var member Member
	path := "/api/groups/" + url.PathEscape(groupID) + "/members"
	if _, err := c.do(ctx, http.MethodPost, path, map[string]string{"email": email}, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *Client) ListExpenses(ctx context.Context, groupID string, page, limit int) ([]Expense, *Pagination, error) {
	var expenses []Expense
	path := "/api/groups/" + url.PathEscape(groupID) + "/expenses" + pageQuery(page, limit)
	p, err := c.do(ctx, http.MethodGet, path, nil, &expenses)
	return expenses, p, err
}

func (c *Client) CreateExpense(ctx context.Context, groupID string, req CreateExpenseRequest) (*Expense, error) {
	var expense Expense
	path := "/api/groups/" + url.PathEscape(groupID) + "/expenses"
	if _, err := c.do(ctx, http.MethodPost, path, req, &expense); err != nil {
		return nil, err
	}
	return &expense, nil
}

func (c *Client) DeleteExpense(ctx context.Context, groupID, expenseID string) error {
	path := "/api/groups/" + url.PathEscape(groupID) + "/expenses/" + url.PathEscape(expenseID)
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

func (c *Client) Balances(ctx context.Context, groupID string) (*Summary, error) {
	var summary Summary
	path := "/api/groups/" + url.PathEscape(groupID) + "/balances"
	if _, err := c.do(ctx, http.MethodGet, path, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) BalanceHistory(ctx context.Context, groupID string, page, limit int) ([]Snapshot, *Pagination, error) {
	var snapshots []Snapshot
	path := "/api/groups/" + url.PathEscape(groupID) + "/balances/history" + pageQuery(page, limit)
	p, err := c.do(ctx, http.MethodGet, path, nil, &snapshots)
	return snapshots, p, err
}

func pageQuery(page, limit int) string {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// do sends a request and unwraps the response envelope into out
func (c *Client) do(ctx context.Context, method, path string, body, out any) (*Pagination, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Details = env.Error.Details
		}
		return nil, apiErr
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return env.Pagination, nil
}
