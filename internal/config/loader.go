package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/architeacher/nocoflo/internal/ports"
	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/vault/api"
	"github.com/kelseyhightower/envconfig"
)

var errSecretsDisabled = errors.New("secret storage is not enabled")

// secretSetters lists the Vault keys that may override credentials. Keys not
// listed here are exported to the environment only.
var secretSetters = map[string]func(*ServiceConfig, string){
	"METADATA_PASSWORD":          func(c *ServiceConfig, v string) { c.Metadata.Password = v },
	"METADATA_CONNECTION_STRING": func(c *ServiceConfig, v string) { c.Metadata.ConnectionString = v },
	"ADMIN_PASSWORD":             func(c *ServiceConfig, v string) { c.Admin.Password = v },
	"CACHE_PASSWORD":             func(c *ServiceConfig, v string) { c.Cache.Password = v },
}

// Loader overlays Vault secrets on the service config. Once watching, it
// re-reads them on SIGHUP or every poll interval and dumps the effective
// config on SIGUSR1.
type Loader struct {
	cfg     *ServiceConfig
	secrets ports.SecretsRepository
	version uint
	dumpTo  io.Writer
	errs    chan error
}

func Init() (*ServiceConfig, error) {
	cfg := &ServiceConfig{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("unable to parse service configuration: %w", err)
	}

	return cfg, nil
}

func NewLoader(cfg *ServiceConfig, secrets ports.SecretsRepository) *Loader {
	return &Loader{
		cfg:     cfg,
		secrets: secrets,
		dumpTo:  os.Stdout,
		errs:    make(chan error, 1),
	}
}

// Version is the Vault secret version last applied.
func (l *Loader) Version() uint {
	return l.version
}

// Load logs in to Vault and applies the current secret version.
func (l *Loader) Load(ctx context.Context) error {
	store := l.cfg.SecretsStorage
	if !store.Enabled {
		return errSecretsDisabled
	}

	if err := login(ctx, l.secrets, store); err != nil {
		return fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	secret, err := l.read(ctx)
	if err != nil {
		return fmt.Errorf("failed to load secrets from Vault: %w", err)
	}

	return l.apply(secret)
}

// Watch starts the reload loop. The returned channel carries one value per
// reload attempt, nil on success, and is closed once ctx is done.
func (l *Loader) Watch(ctx context.Context) <-chan error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGUSR1)

	var ticker *time.Ticker

	interval := l.cfg.SecretsStorage.PollInterval
	if l.cfg.SecretsStorage.Enabled && interval > 0 {
		ticker = time.NewTicker(interval)
	}

	go func() {
		defer close(l.errs)
		defer signal.Stop(signals)

		var poll <-chan time.Time
		if ticker != nil {
			defer ticker.Stop()

			poll = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-poll:
				l.refresh(ctx)
			case sig := <-signals:
				if sig == syscall.SIGUSR1 {
					l.Dump()

					continue
				}

				l.refresh(ctx)
			}
		}
	}()

	return l.errs
}

// Dump writes the effective config as indented JSON.
func (l *Loader) Dump() {
	body, err := json.MarshalIndent(l.cfg, "", "  ")
	if err != nil {
		fmt.Fprintf(l.dumpTo, "config dump failed: %v\n", err)

		return
	}

	fmt.Fprintf(l.dumpTo, "\n=== nocoflo config ===\n%s\n======================\n\n", body)
}

// refresh re-applies secrets only when Vault reports a newer version.
func (l *Loader) refresh(ctx context.Context) {
	secret, err := l.read(ctx)
	if err != nil {
		l.report(err)

		return
	}

	version, err := secretVersion(secret)
	if err != nil {
		l.report(err)

		return
	}

	if version == l.version {
		return
	}

	l.report(l.apply(secret))
}

func (l *Loader) apply(secret *api.Secret) error {
	data, err := section(secret, "data")
	if err != nil {
		return err
	}

	for key, raw := range data {
		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to export secret %s: %w", key, err)
		}

		if set, known := secretSetters[key]; known {
			set(l.cfg, value)
		}
	}

	version, err := secretVersion(secret)
	if err != nil {
		return err
	}

	l.version = version

	return nil
}

// read fetches the KV v2 secret, retrying transport and 5xx failures with
// exponential backoff. Vault's 4xx answers are final.
func (l *Loader) read(ctx context.Context) (*api.Secret, error) {
	store := l.cfg.SecretsStorage
	path := "apps/data/" + store.MountPath

	if store.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, store.Timeout)
		defer cancel()
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Second

	operation := func() (*api.Secret, error) {
		secret, err := l.secrets.Read(ctx, path)
		if err == nil {
			return secret, nil
		}

		var respErr *api.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode < http.StatusInternalServerError {
			return nil, backoff.Permanent(err)
		}

		return nil, err
	}

	secret, err := backoff.Retry(
		ctx,
		operation,
		backoff.WithMaxTries(store.MaxRetries+1),
		backoff.WithBackOff(expBackoff),
	)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return secret, nil
}

func (l *Loader) report(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

func login(ctx context.Context, secrets ports.SecretsRepository, store SecretsStorage) error {
	switch strings.ToLower(store.AuthMethod) {
	case "token":
		if store.Token == "" {
			return errors.New("token is required for token auth method")
		}

		secrets.SetToken(store.Token)

	case "approle":
		if store.RoleID == "" || store.SecretID == "" {
			return errors.New("role_id and secret_id are required for approle auth method")
		}

		resp, err := secrets.Write(ctx, "auth/approle/login", map[string]any{
			"role_id":   store.RoleID,
			"secret_id": store.SecretID,
		})
		if err != nil {
			return fmt.Errorf("approle login: %w", err)
		}

		if resp == nil || resp.Auth == nil {
			return errors.New("approle login returned no auth info")
		}

		secrets.SetToken(resp.Auth.ClientToken)

	default:
		return fmt.Errorf("unsupported auth method: %q", store.AuthMethod)
	}

	return nil
}

func section(secret *api.Secret, name string) (map[string]any, error) {
	if secret == nil || secret.Data[name] == nil {
		return nil, nil
	}

	values, ok := secret.Data[name].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid secret format, %q is %T", name, secret.Data[name])
	}

	return values, nil
}

func secretVersion(secret *api.Secret) (uint, error) {
	metadata, err := section(secret, "metadata")
	if err != nil || metadata == nil {
		return 0, err
	}

	switch v := metadata["version"].(type) {
	case nil:
		return 0, nil
	case float64:
		return uint(v), nil
	case int:
		return uint(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("invalid secret version %q: %w", v, err)
		}

		return uint(n), nil
	default:
		return 0, fmt.Errorf("unexpected secret version type %T", v)
	}
}
