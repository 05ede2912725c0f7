package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/viper"

	jwttoken "pixellocker/internal/jwt_token"
	"pixellocker/pkg/domain"
)

// apiClient calls the pixellocker HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
	v       *viper.Viper
}

// apiError is a non-2xx response in the server's error envelope.
type apiError struct {
	Status      int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *apiError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Description)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

func newAPIClient(v *viper.Viper) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(v.GetString(keyServer), "/"),
		http:    &http.Client{Timeout: v.GetDuration(keyTimeout)},
		v:       v,
	}
}

// bearer returns --token, or mints one for --as. Empty when neither is set.
func (c *apiClient) bearer(ctx context.Context) (string, error) {
	if token := c.v.GetString(keyToken); token != "" {
		return token, nil
	}
	as := c.v.GetString(keyAs)
	if as == "" {
		return "", nil
	}
	principal, err := domain.ParseAddress(as)
	if err != nil {
		return "", fmt.Errorf("--as: %w", err)
	}
	return mintToken(ctx, c.v, principal)
}

func mintToken(ctx context.Context, v *viper.Viper, principal domain.Address) (string, error) {
	svc := jwttoken.NewJWTService(v.GetString(keySigningKey), v.GetString(keyIssuer), v.GetString(keyAudience), v.GetDuration(keyTTL))
	return svc.GenerateAccessToken(ctx, principal)
}

// do sends body as JSON and decodes a 2xx response into out (when non-nil).
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "lockerctl")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
