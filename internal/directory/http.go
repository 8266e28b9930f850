package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cabinet-legal/case-messaging/internal/model"
)

// HTTPClient talks to the directory service over its internal REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient builds a directory client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Close releases idle connections.
func (c *HTTPClient) Close() {
	c.httpClient.CloseIdleConnections()
}

// ResolveUser implements Directory.
func (c *HTTPClient) ResolveUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	status, err := c.get(ctx, "/internal/users/"+url.PathEscape(id), &user)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("directory: unexpected status code: %d", status)
	}
	return &user, nil
}

// ListActiveStaff implements Directory.
func (c *HTTPClient) ListActiveStaff(ctx context.Context) ([]model.User, error) {
	var resp struct {
		Users []model.User `json:"users"`
	}
	status, err := c.get(ctx, "/internal/users?staff=true&active=true", &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("directory: unexpected status code: %d", status)
	}
	return resp.Users, nil
}

// ListActiveUsersByRole implements Directory.
func (c *HTTPClient) ListActiveUsersByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	var resp struct {
		Users []model.User `json:"users"`
	}
	status, err := c.get(ctx, "/internal/users?active=true&role="+url.QueryEscape(string(role)), &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("directory: unexpected status code: %d", status)
	}
	return resp.Users, nil
}

// IsCaseTransmittedToPartner implements CaseTransmissions. Revoked and
// refused transmissions are excluded on the directory side.
func (c *HTTPClient) IsCaseTransmittedToPartner(ctx context.Context, caseRef, partnerID string) (bool, error) {
	var resp struct {
		Transmitted bool `json:"transmitted"`
	}
	path := fmt.Sprintf("/internal/cases/%s/transmissions/%s", url.PathEscape(caseRef), url.PathEscape(partnerID))
	status, err := c.get(ctx, path, &resp)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("directory: unexpected status code: %d", status)
	}
	return resp.Transmitted, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "apikey "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // .

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
