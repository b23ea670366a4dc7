package ports

import (
	"context"

	"github.com/hashicorp/vault/api"
)

// SecretsRepository is the Vault surface the config loader needs: a login
// write, then KV reads under the obtained token.
type SecretsRepository interface {
	SetToken(token string)
	Read(ctx context.Context, path string) (*api.Secret, error)
	Write(ctx context.Context, path string, data map[string]any) (*api.Secret, error)
}
