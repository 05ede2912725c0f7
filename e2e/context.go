package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"pixellocker/internal/app"
	jwttoken "pixellocker/internal/jwt_token"
	"pixellocker/internal/platform/config"
	"pixellocker/pkg/domain"
	"pixellocker/pkg/testutil"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	// App is the in-process server; nil when BASE_URL targets a running deployment.
	App    *app.App
	server *httptest.Server
	tokens *jwttoken.JWTService
}

var principals = map[string]domain.Address{
	"alice": testutil.Alice,
	"bob":   testutil.Bob,
	"carol": testutil.Carol,
	"dave":  testutil.Dave,
}

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		signingKey = config.DevJWTSigningKey
	}
	return &TestContext{
		BaseURL:    os.Getenv("BASE_URL"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     jwttoken.NewJWTService(signingKey, "pixellocker", "pixellocker-api", time.Hour),
	}
}

// External reports whether steps run against a deployment started elsewhere.
func (tc *TestContext) External() bool {
	return tc.BaseURL != "" && tc.server == nil
}

// StartLedger boots an in-process server over a fresh memory ledger.
func (tc *TestContext) StartLedger(ctx context.Context, owner domain.Address, requireIssuerRole bool) error {
	cfg := config.Server{
		Environment:         "e2e",
		JWTSigningKey:       config.DevJWTSigningKey,
		JWTIssuer:           "pixellocker",
		JWTAudience:         "pixellocker-api",
		TokenTTL:            time.Hour,
		RoleOwner:           owner,
		RequireIssuerRole:   requireIssuerRole,
		LedgerTxTimeout:     5 * time.Second,
		VerdictCacheBackend: config.CacheLocal,
		VerdictCacheTTL:     time.Second,
		Database:            config.DatabaseConfig{Driver: config.DriverMemory},
	}
	a, err := app.New(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return fmt.Errorf("start ledger: %w", err)
	}
	tc.App = a
	tc.server = httptest.NewServer(a.Router)
	tc.BaseURL = tc.server.URL
	tc.tokens = jwttoken.NewJWTService(config.DevJWTSigningKey, "pixellocker", "pixellocker-api", time.Hour)
	return nil
}

// Close stops the in-process server, if any.
func (tc *TestContext) Close() error {
	if tc.server == nil {
		return nil
	}
	tc.server.Close()
	return tc.App.Close(context.Background())
}

// Principal resolves a scenario name such as "alice" to its address.
func (tc *TestContext) Principal(name string) (domain.Address, error) {
	addr, ok := principals[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("unknown principal %q", name)
	}
	return addr, nil
}

// Do sends body as JSON, authenticated as caller when caller is non-empty.
func (tc *TestContext) Do(ctx context.Context, method, path string, body any, caller string) error {
	var reader io.Reader
	if body != nil {
		var raw []byte
		switch b := body.(type) {
		case json.RawMessage:
			raw = b
		default:
			var err error
			if raw, err = json.Marshal(body); err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		addr, err := tc.Principal(caller)
		if err != nil {
			return err
		}
		token, err := tc.tokens.GenerateAccessToken(ctx, addr)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	return nil
}

// GetResponseField extracts a top-level field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}

	return value, nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}
