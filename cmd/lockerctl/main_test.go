package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixellocker/internal/app"
	credentialmodels "pixellocker/internal/credential/models"
	jwttoken "pixellocker/internal/jwt_token"
	"pixellocker/internal/platform/config"
	"pixellocker/pkg/testutil"
)

const testSigningKey = "cli-test-key"

func startServer(t *testing.T) string {
	t.Helper()
	cfg := config.Server{
		Environment:         "test",
		JWTSigningKey:       testSigningKey,
		JWTIssuer:           "pixellocker",
		JWTAudience:         "pixellocker-api",
		TokenTTL:            time.Hour,
		RoleOwner:           testutil.Alice,
		VerdictCacheBackend: config.CacheNone,
		Database:            config.DatabaseConfig{Driver: config.DriverMemory},
	}
	a, err := app.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv := httptest.NewServer(a.Router)
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, a.Close(context.Background()))
	})
	return srv.URL
}

func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(viper.New())
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--server", server, "--signing-key", testSigningKey}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenMint(t *testing.T) {
	out, err := run(t, "http://unused", "token", "mint", testutil.Bob.String(), "--ttl", "1m")
	require.NoError(t, err)

	svc := jwttoken.NewJWTService(testSigningKey, "pixellocker", "pixellocker-api", time.Minute)
	claims, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, testutil.Bob.String(), claims.Subject)

	_, err = run(t, "http://unused", "token", "mint", "0x1234")
	assert.Error(t, err)
}

func TestDeriveID(t *testing.T) {
	out, err := run(t, "http://unused", "credential", "derive-id", "diploma-2026")
	require.NoError(t, err)
	assert.Equal(t, credentialmodels.DeriveID("diploma-2026"), strings.TrimSpace(out))
}

func TestCredentialLifecycleOverHTTP(t *testing.T) {
	server := startServer(t)

	_, err := run(t, server, "--as", testutil.Alice.String(), "credential", "issue",
		"--id", "cred-1", "--subject", testutil.Bob.String(), "--pointer", "sha256:abc")
	require.NoError(t, err)

	out, err := run(t, server, "verify", "--id", "cred-1")
	require.NoError(t, err)
	var verdict map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &verdict))
	assert.Equal(t, true, verdict["valid"])

	_, err = run(t, server, "--as", testutil.Bob.String(), "credential", "revoke", "cred-1")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
	assert.Equal(t, "forbidden", apiErr.Code)

	_, err = run(t, server, "--as", testutil.Alice.String(), "credential", "revoke", "cred-1")
	require.NoError(t, err)

	out, err = run(t, server, "credential", "status", "cred-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"cred-1","valid":false}`, out)

	out, err = run(t, server, "credential", "list", "--issuer", testutil.Alice.String())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ids":["cred-1"]}`, out)
}

func TestMutationWithoutIdentityIsUnauthorized(t *testing.T) {
	server := startServer(t)

	_, err := run(t, server, "did", "register", "did:example:alice")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
}

func TestDIDAndRoles(t *testing.T) {
	server := startServer(t)

	_, err := run(t, server, "--as", testutil.Alice.String(), "did", "register", "did:example:alice")
	require.NoError(t, err)
	out, err := run(t, server, "did", "get", testutil.Alice.String())
	require.NoError(t, err)
	assert.Contains(t, out, `"did": "did:example:alice"`)

	_, err = run(t, server, "--as", testutil.Alice.String(), "role", "add-issuer", testutil.Carol.String())
	require.NoError(t, err)
	out, err = run(t, server, "role", "show", testutil.Carol.String())
	require.NoError(t, err)
	assert.Contains(t, out, `"role": "issuer"`)

	out, err = run(t, server, "role", "show")
	require.NoError(t, err)
	assert.Contains(t, out, testutil.Alice.String())
}

func TestVerifyDocumentFromFile(t *testing.T) {
	server := startServer(t)
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"missing","expiresAt":"2020-01-01T00:00:00Z"}`), 0o600))

	out, err := run(t, server, "verify", "--document", path, "--at", "2026-06-01T12:00:00Z")
	require.NoError(t, err)
	var verdict map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &verdict))
	assert.Equal(t, false, verdict["valid"])
	assert.Equal(t, []any{"credential not found on ledger", "credential has expired"}, verdict["reasons"])
}

func TestVerifyRequiresOneTarget(t *testing.T) {
	_, err := run(t, "http://unused", "verify")
	assert.Error(t, err)
	_, err = run(t, "http://unused", "verify", "--id", "a", "--hash", "b")
	assert.Error(t, err)
}

func TestMigrateSQLite(t *testing.T) {
	url := "file:" + filepath.Join(t.TempDir(), "ledger.db")

	out, err := run(t, "http://unused", "migrate", "--database-driver", "sqlite", "--database-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "applied")

	out, err = run(t, "http://unused", "migrate", "--database-driver", "sqlite", "--database-url", url)
	require.NoError(t, err)
	assert.Equal(t, "schema up to date\n", out)
}

func TestEnvironmentBinding(t *testing.T) {
	t.Setenv("PIXELLOCKER_DATABASE_URL", "")
	_, err := run(t, "http://unused", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIXELLOCKER_DATABASE_URL")
}
