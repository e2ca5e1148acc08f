package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vaultServer(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v1/secret/data/nearcare/api", r.URL.Path)
		assert.Equal(t, "s.token", r.Header.Get("X-Vault-Token"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testConfig(addr string) VaultConfig {
	return VaultConfig{
		Enabled:   true,
		Addr:      addr,
		Token:     "s.token",
		Mount:     "secret",
		Path:      "nearcare/api",
		KVVersion: 2,
		Timeout:   time.Second,
	}
}

func TestApplyVaultSecrets_ExportsManagedKeysOnly(t *testing.T) {
	srv, _ := vaultServer(t, http.StatusOK, `{"data":{"data":{
		"PUBLIC_DATA_API_KEY":"portal-key",
		"DB_PASSWORD":"pw",
		"REDIS_PASSWORD":"already",
		"UNRELATED":"x"}}}`)
	t.Setenv("PUBLIC_DATA_API_KEY", "")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("REDIS_PASSWORD", "from-env")
	t.Setenv("UNRELATED", "")

	result, err := ApplyVaultSecrets(context.Background(), testConfig(srv.URL))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "portal-key", os.Getenv("PUBLIC_DATA_API_KEY"))
	assert.Equal(t, "pw", os.Getenv("DB_PASSWORD"))
	assert.Equal(t, "from-env", os.Getenv("REDIS_PASSWORD"))
	assert.Empty(t, os.Getenv("UNRELATED"))
}

func TestApplyVaultSecrets_Disabled(t *testing.T) {
	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{})

	require.NoError(t, err)
	assert.False(t, result.Enabled)
}

func TestApplyVaultSecrets_Incomplete(t *testing.T) {
	_, err := ApplyVaultSecrets(context.Background(), VaultConfig{Enabled: true, Addr: "http://vault"})

	assert.ErrorIs(t, err, ErrIncompleteConfig)
}

func TestApplyVaultSecrets_ForbiddenIsRetriedThenFails(t *testing.T) {
	srv, calls := vaultServer(t, http.StatusForbidden, `{"errors":["permission denied"]}`)

	_, err := ApplyVaultSecrets(context.Background(), testConfig(srv.URL))

	assert.Error(t, err)
	assert.Equal(t, 3, *calls)
}

func TestBuildVaultURL(t *testing.T) {
	url, err := buildVaultURL("http://vault:8200/", "/secret/", "/nearcare/api", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/nearcare/api", url)

	url, err = buildVaultURL("http://vault:8200", "kv", "nearcare", 2)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/kv/data/nearcare", url)
}
