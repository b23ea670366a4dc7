package repos

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/architeacher/nocoflo/internal/config"
	"github.com/hashicorp/vault/api"
)

// VaultRepository reads and writes secrets through a Vault client.
type VaultRepository struct {
	client *api.Client
}

func NewVaultRepository(client *api.Client) *VaultRepository {
	return &VaultRepository{client: client}
}

// NewVaultClient builds a client for the configured secrets storage.
func NewVaultClient(cfg config.SecretsStorage) (*api.Client, error) {
	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address
	vaultConfig.Timeout = cfg.Timeout

	if cfg.TLSSkipVerify {
		vaultConfig.HttpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for local vaults
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("creating Vault client: %w", err)
	}

	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	return client, nil
}

func (r *VaultRepository) SetToken(token string) {
	r.client.SetToken(token)
}

// Read returns a nil secret, not an error, when nothing is stored at path.
func (r *VaultRepository) Read(ctx context.Context, path string) (*api.Secret, error) {
	return r.client.Logical().ReadWithContext(ctx, path)
}

func (r *VaultRepository) Write(ctx context.Context, path string, data map[string]any) (*api.Secret, error) {
	return r.client.Logical().WriteWithContext(ctx, path, data)
}
