package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kazz187/orchestra/internal/settings"
)

// SettingsClient reads the shared dashboard settings over the REST API.
type SettingsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewSettingsClient(httpClient *http.Client, baseURL, apiKey string) *SettingsClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SettingsClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

func (c *SettingsClient) GetSettings(ctx context.Context) (*settings.Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/settings", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build settings request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get settings: %s", resp.Status)
	}
	var s settings.Settings
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, nil
}

// DedupWindow returns the merge.dedupWindow setting, or fallback when the
// server cannot be asked or holds no positive value.
func (c *SettingsClient) DedupWindow(ctx context.Context, fallback time.Duration) (time.Duration, error) {
	s, err := c.GetSettings(ctx)
	if err != nil {
		return fallback, err
	}
	if d := s.Merge.DedupWindow.Duration(); d > 0 {
		return d, nil
	}
	return fallback, nil
}
