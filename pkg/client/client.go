package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is a client for the ledger API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	OrgID      string
}

// Config holds configuration for the client.
type Config struct {
	BaseURL string
	OrgID   string
	Timeout time.Duration
}

// New creates a new Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: cfg.BaseURL,
		OrgID:   cfg.OrgID,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SetToken sets the authentication token for subsequent requests.
func (c *Client) SetToken(token string) {
	c.Token = token
}

// SetOrganization sets the organization scope for subsequent requests.
func (c *Client) SetOrganization(orgID string) {
	c.OrgID = orgID
}

// Login performs email/password authentication and stores the token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var res struct {
		AccessToken string `json:"access_token"`
	}
	err := c.doRequest(ctx, "POST", "/api/v1/auth/login",
		map[string]string{"email": email, "password": password}, &res)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	c.Token = res.AccessToken
	return nil
}

// doRequest helper to perform authenticated requests.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.OrgID != "" {
		req.Header.Set("X-Org-ID", c.OrgID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}

	return nil
}

// CheckPermission asks whether the authenticated user may perform an action.
// A denial is reported as (false, reason, nil); errors are infrastructure
// failures only. Resource attributes are optional.
func (c *Client) CheckPermission(ctx context.Context, action string, resource map[string]any) (bool, string, error) {
	payload := map[string]any{"action": action}
	if resource != nil {
		payload["resource"] = resource
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return false, "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/authz/check", bytes.NewBuffer(data))
	if err != nil {
		return false, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.OrgID != "" {
		req.Header.Set("X-Org-ID", c.OrgID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, "", nil
	case http.StatusForbidden:
		var res struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return false, "", err
		}
		return false, res.Reason, nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return false, "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}
}

// EffectivePermissions lists the actions the authenticated user's roles grant.
func (c *Client) EffectivePermissions(ctx context.Context) ([]string, error) {
	var res struct {
		Permissions []string `json:"permissions"`
	}
	if err := c.doRequest(ctx, "GET", "/api/v1/authz/permissions", nil, &res); err != nil {
		return nil, err
	}
	return res.Permissions, nil
}

// Policy is a simplified policy view for the SDK.
type Policy struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Effect   string `json:"effect"`
	Priority int    `json:"priority"`
	IsActive bool   `json:"is_active"`
}

// ListPolicies lists the organization's policies.
func (c *Client) ListPolicies(ctx context.Context) ([]Policy, error) {
	var res struct {
		Policies []Policy `json:"policies"`
	}
	if err := c.doRequest(ctx, "GET", "/api/v1/authz/policies", nil, &res); err != nil {
		return nil, err
	}
	return res.Policies, nil
}

// CreatePolicy creates a policy from a raw document and returns its id.
func (c *Client) CreatePolicy(ctx context.Context, policy any) (string, error) {
	var res struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, "POST", "/api/v1/authz/policies", policy, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// DeactivatePolicy disables a policy without deleting it.
func (c *Client) DeactivatePolicy(ctx context.Context, id string) error {
	return c.doRequest(ctx, "POST", "/api/v1/authz/policies/"+url.PathEscape(id)+"/deactivate", nil, nil)
}

// Denial is a simplified denial audit row for the SDK.
type Denial struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// ListDenials lists denial audit entries, optionally filtered by user.
func (c *Client) ListDenials(ctx context.Context, userID string) ([]Denial, error) {
	path := "/api/v1/audit/denials"
	if userID != "" {
		path += "?user_id=" + url.QueryEscape(userID)
	}
	var res struct {
		Denials []Denial `json:"denials"`
	}
	if err := c.doRequest(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}
	return res.Denials, nil
}

// TrialBalanceRow is one account's totals in a trial balance.
type TrialBalanceRow struct {
	AccountCode string `json:"account_code"`
	AccountName string `json:"account_name"`
	TotalDebit  int64  `json:"total_debit"`
	TotalCredit int64  `json:"total_credit"`
}

// TrialBalance fetches the trial balance for one fiscal period.
func (c *Client) TrialBalance(ctx context.Context, periodID string) ([]TrialBalanceRow, error) {
	var res struct {
		Rows []TrialBalanceRow `json:"rows"`
	}
	path := "/api/v1/reports/trial-balance?period_id=" + url.QueryEscape(periodID)
	if err := c.doRequest(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}
	return res.Rows, nil
}
