package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"rejection-therapy/utils"
)

// AuthServiceClient validates tokens against the auth provider's user
// endpoint. Used when no local JWT secret is configured.
type AuthServiceClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type authUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func NewAuthServiceClient(baseURL, apiKey string) *AuthServiceClient {
	return &AuthServiceClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  utils.HTTPClient,
	}
}

// Authenticate calls GET /auth/v1/user with the caller's access token.
func (c *AuthServiceClient) Authenticate(ctx context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", ErrInvalidToken
	}
	url := fmt.Sprintf("%s/auth/v1/user", c.BaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: auth provider unreachable: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		log.Printf("[AUTH] auth provider returned %d: %.200s", resp.StatusCode, string(body))
		return "", fmt.Errorf("%w: auth provider returned %d", ErrTransient, resp.StatusCode)
	}

	var out authUserResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", ErrInvalidToken
	}
	return out.ID, nil
}
