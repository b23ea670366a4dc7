package repos_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/architeacher/nocoflo/internal/adapters/repos"
	"github.com/architeacher/nocoflo/internal/config"
	"github.com/stretchr/testify/require"
)

func fakeVault(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))

			return
		}

		if r.Method != http.MethodGet || r.URL.Path != "/v1/apps/data/nocoflo" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data":     map[string]any{"ADMIN_PASSWORD": "from-vault"},
				"metadata": map[string]any{"version": 4},
			},
		})
	}))
	t.Cleanup(server.Close)

	return server
}

func TestVaultRepositoryFeedsLoader(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")

	server := fakeVault(t)

	storage := config.SecretsStorage{
		Enabled:    true,
		Address:    server.URL,
		Token:      "root",
		AuthMethod: "token",
		MountPath:  "nocoflo",
		Timeout:    5 * time.Second,
	}

	client, err := repos.NewVaultClient(storage)
	require.NoError(t, err)

	cfg := &config.ServiceConfig{SecretsStorage: storage}
	loader := config.NewLoader(cfg, repos.NewVaultRepository(client))

	require.NoError(t, loader.Load(context.Background()))
	require.Equal(t, "from-vault", cfg.Admin.Password)
	require.Equal(t, uint(4), loader.Version())
}

func TestVaultRepositoryRejectsBadToken(t *testing.T) {
	server := fakeVault(t)

	client, err := repos.NewVaultClient(config.SecretsStorage{Address: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	repo := repos.NewVaultRepository(client)
	repo.SetToken("wrong")

	_, err = repo.Read(context.Background(), "apps/data/nocoflo")
	require.ErrorContains(t, err, "permission denied")
}
