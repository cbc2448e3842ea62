package identity

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

	"github.com/qs3c/billing_go_server/config"
)

var ErrUserNotFound = errors.New("用户不存在")

// User 身份服务中的用户，user_metadata.active_plan 是套餐投影
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	ActivePlan string `json:"active_plan"`
}

type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewClient(cfg *config.IdentityConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetUser 获取用户信息
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.adminUserURL(userID), nil)
	if err != nil {
		return nil, err
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("identity api error: %d %s", resp.StatusCode, string(body))
	}

	var raw struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			ActivePlan string `json:"active_plan"`
		} `json:"user_metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}

	return &User{
		ID:         raw.ID,
		Email:      raw.Email,
		ActivePlan: raw.UserMetadata.ActivePlan,
	}, nil
}

// UpdateActivePlan 更新用户的 active_plan 投影。台账写入成功之后才允许调用，
// 保证崩溃时只会出现投影落后于台账，不会反过来。
func (c *Client) UpdateActivePlan(ctx context.Context, userID, plan string) error {
	payload := map[string]interface{}{
		"user_metadata": map[string]string{
			"active_plan": plan,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.adminUserURL(userID), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update active plan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("identity api error: %d %s", resp.StatusCode, string(body))
	}

	return nil
}

func (c *Client) adminUserURL(userID string) string {
	return fmt.Sprintf("%s/admin/users/%s", c.baseURL, userID)
}

func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
}
