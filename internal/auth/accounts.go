package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const identityToolkitBaseURL = "https://identitytoolkit.googleapis.com"

var ErrAccountNotFound = errors.New("identity account not found")

// IdentityToolkit deletes accounts from the identity provider's admin REST API.
type IdentityToolkit struct {
	baseURL    string
	projectID  string
	token      string
	httpClient *http.Client
}

func NewIdentityToolkit(projectID, adminToken string) *IdentityToolkit {
	return &IdentityToolkit{
		baseURL:    identityToolkitBaseURL,
		projectID:  projectID,
		token:      adminToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the client at another endpoint (emulator, tests).
func (c *IdentityToolkit) WithBaseURL(u string) *IdentityToolkit {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// DeleteAccount removes the provider account for uid.
func (c *IdentityToolkit) DeleteAccount(ctx context.Context, uid string) error {
	if uid == "" {
		return errors.New("uid required")
	}
	if c.token == "" {
		return errors.New("identity admin token not configured")
	}
	body, err := json.Marshal(map[string]string{"localId": uid})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/v1/projects/%s/accounts:delete", c.baseURL, url.PathEscape(c.projectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusNotFound || bytes.Contains(raw, []byte("USER_NOT_FOUND")) {
		return ErrAccountNotFound
	}
	return fmt.Errorf("identity provider: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
