package config

import (
	"time"

	"github.com/architeacher/nocoflo/internal/domain/model"
)

var (
	ServiceVersion string
	CommitSHA      string
)

const (
	Development = 1 << iota
	Sandbox
	Staging
	Production
)

const (
	LockBackendMetadata = "metadata"
	LockBackendRedis    = "redis"
)

type (
	ServiceConfig struct {
		App            App                  `json:"app"`
		SecretsStorage SecretsStorage       `json:"secrets_storage"`
		HTTPServer     HTTPServer           `json:"http_server"`
		Metadata       Metadata             `json:"metadata"`
		Locks          Locks                `json:"locks"`
		Cache          Cache                `json:"cache"`
		Idempotency    Idempotency          `json:"idempotency"`
		RateLimiting   RateLimiting         `json:"rate_limiting"`
		Compression    Compression          `json:"compression"`
		Datasources    Datasources          `json:"datasources"`
		CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
		Admin          Admin                `json:"admin"`
		Logging        Logging              `json:"logging"`
		Telemetry      Telemetry            `json:"telemetry"`
	}

	App struct {
		ServiceName string      `envconfig:"APP_SERVICE_NAME" default:"nocoflo" json:"service_name"`
		APIVersion  string      `envconfig:"APP_API_VERSION" default:"v1" json:"api_version"`
		Env         Environment `json:"environment"`
	}

	Environment struct {
		Name string `envconfig:"APP_ENVIRONMENT" default:"development" json:"env"`
	}

	SecretsStorage struct {
		Enabled       bool          `envconfig:"VAULT_ENABLED" default:"false" json:"enabled"`
		Address       string        `envconfig:"VAULT_ADDRESS" default:"http://vault:8200" json:"address"`
		Token         string        `envconfig:"VAULT_TOKEN" default:"" json:"token,omitempty"`
		RoleID        string        `envconfig:"VAULT_ROLE_ID" default:"" json:"role_id,omitempty"`
		SecretID      string        `envconfig:"VAULT_SECRET_ID" default:"" json:"secret_id,omitempty"`
		AuthMethod    string        `envconfig:"VAULT_AUTH_METHOD" default:"token" json:"auth_method"`
		MountPath     string        `envconfig:"VAULT_MOUNT_PATH" default:"nocoflo" json:"mount_path"`
		Namespace     string        `envconfig:"VAULT_NAMESPACE" default:"" json:"namespace,omitempty"`
		Timeout       time.Duration `envconfig:"VAULT_TIMEOUT" default:"30s" json:"timeout"`
		MaxRetries    uint          `envconfig:"VAULT_MAX_RETRIES" default:"3" json:"max_retries"`
		TLSSkipVerify bool          `envconfig:"VAULT_TLS_SKIP_VERIFY" default:"false" json:"tls_skip_verify"`
		PollInterval  time.Duration `envconfig:"VAULT_POLL_INTERVAL" default:"24h" json:"poll_interval"`
	}

	HTTPServer struct {
		Host            string        `envconfig:"HTTP_SERVER_HOST" default:"0.0.0.0" json:"host"`
		Port            uint          `envconfig:"HTTP_SERVER_PORT" default:"8080" json:"port"`
		ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	// Metadata locates the store holding users, the table catalog,
	// permissions, locks and the changelog.
	Metadata struct {
		Type             string `envconfig:"METADATA_DATASOURCE_TYPE" default:"sqlite" json:"type"`
		ConnectionString string `envconfig:"METADATA_CONNECTION_STRING" default:"" json:"-"`
		Path             string `envconfig:"METADATA_PATH" default:"nocoflo.db" json:"path"`
		Host             string `envconfig:"METADATA_HOST" default:"localhost" json:"host"`
		Port             uint   `envconfig:"METADATA_PORT" default:"0" json:"port"`
		Database         string `envconfig:"METADATA_DATABASE" default:"nocoflo" json:"database"`
		Username         string `envconfig:"METADATA_USERNAME" default:"" json:"username"`
		Password         string `envconfig:"METADATA_PASSWORD" default:"" json:"password,omitempty"`
		SSLMode          string `envconfig:"METADATA_SSL_MODE" default:"disable" json:"ssl_mode"`
		Pool             Pool   `json:"pool"`
	}

	Pool struct {
		MaxConnections  int           `envconfig:"POOL_MAX_CONNECTIONS" default:"25" json:"max_connections"`
		MinConnections  int           `envconfig:"POOL_MIN_CONNECTIONS" default:"1" json:"min_connections"`
		ConnectTimeout  time.Duration `envconfig:"POOL_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		MaxConnLifetime time.Duration `envconfig:"POOL_MAX_CONN_LIFETIME" default:"1h" json:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `envconfig:"POOL_MAX_CONN_IDLE_TIME" default:"30m" json:"max_conn_idle_time"`
	}

	Locks struct {
		Backend       string        `envconfig:"LOCK_BACKEND" default:"metadata" json:"backend"`
		TTL           time.Duration `envconfig:"LOCK_TTL" default:"5m" json:"ttl"`
		SweepInterval time.Duration `envconfig:"LOCK_SWEEP_INTERVAL" default:"1m" json:"sweep_interval"`
	}

	Cache struct {
		Enabled      bool          `envconfig:"CACHE_ENABLED" default:"false" json:"enabled"`
		Address      string        `envconfig:"CACHE_ADDRESS" default:"keydb:6379" json:"address"`
		Password     string        `envconfig:"CACHE_PASSWORD" default:"" json:"password,omitempty"`
		DB           uint          `envconfig:"CACHE_DB" default:"0" json:"db"`
		PoolSize     uint          `envconfig:"CACHE_POOL_SIZE" default:"10" json:"pool_size"`
		MinIdleConns uint          `envconfig:"CACHE_MIN_IDLE_CONNS" default:"3" json:"min_idle_conns"`
		DialTimeout  time.Duration `envconfig:"CACHE_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout  time.Duration `envconfig:"CACHE_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout time.Duration `envconfig:"CACHE_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
		PoolTimeout  time.Duration `envconfig:"CACHE_POOL_TIMEOUT" default:"5s" json:"pool_timeout"`
		MaxRetries   uint          `envconfig:"CACHE_MAX_RETRIES" default:"3" json:"max_retries"`
		SchemaTTL    time.Duration `envconfig:"CACHE_SCHEMA_TTL" default:"10m" json:"schema_ttl"`
	}

	// RateLimiting applies a GCRA quota per caller, keyed by user id once
	// identified and by client IP before that. It needs KeyDB and is
	// skipped without it.
	RateLimiting struct {
		Enabled           bool `envconfig:"RATE_LIMITING_ENABLED" default:"true" json:"enabled"`
		RequestsPerSecond uint `envconfig:"RATE_LIMITING_REQUESTS_PER_SECOND" default:"50" json:"requests_per_second"`
		BurstSize         uint `envconfig:"RATE_LIMITING_BURST_SIZE" default:"100" json:"burst_size"`
		GracefulDegraded  bool `envconfig:"RATE_LIMITING_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Compression struct {
		Enabled bool `envconfig:"COMPRESSION_ENABLED" default:"true" json:"enabled"`
		Level   int  `envconfig:"COMPRESSION_LEVEL" default:"5" json:"level"`
	}

	// Idempotency replays the stored reply of a POST retried with the same
	// Idempotency-Key. It needs KeyDB and is skipped without it.
	Idempotency struct {
		Enabled          bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"true" json:"enabled"`
		CacheTTL         time.Duration `envconfig:"IDEMPOTENCY_CACHE_TTL" default:"24h" json:"cache_ttl"`
		LockTTL          time.Duration `envconfig:"IDEMPOTENCY_LOCK_TTL" default:"30s" json:"lock_ttl"`
		HeaderName       string        `envconfig:"IDEMPOTENCY_HEADER" default:"Idempotency-Key" json:"header_name"`
		ReplayedHeader   string        `envconfig:"IDEMPOTENCY_REPLAYED_HEADER" default:"Idempotent-Replayed" json:"replayed_header"`
		GracefulDegraded bool          `envconfig:"IDEMPOTENCY_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Datasources struct {
		ConnCacheSize  int           `envconfig:"DATASOURCE_CONN_CACHE_SIZE" default:"16" json:"conn_cache_size"`
		ConnectTimeout time.Duration `envconfig:"DATASOURCE_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		Pool           Pool          `json:"pool"`
	}

	CircuitBreakerConfig struct {
		Enabled          bool          `envconfig:"CIRCUIT_BREAKER_ENABLED" default:"true" json:"enabled"`
		MaxRequests      uint          `envconfig:"CIRCUIT_BREAKER_MAX_REQUESTS" default:"5" json:"max_requests"`
		Interval         time.Duration `envconfig:"CIRCUIT_BREAKER_INTERVAL" default:"60s" json:"interval"`
		Timeout          time.Duration `envconfig:"CIRCUIT_BREAKER_TIMEOUT" default:"30s" json:"timeout"`
		FailureThreshold uint          `envconfig:"CIRCUIT_BREAKER_FAILURE_THRESHOLD" default:"5" json:"failure_threshold"`
	}

	Admin struct {
		Name     string `envconfig:"ADMIN_NAME" default:"Admin" json:"name"`
		Email    string `envconfig:"ADMIN_EMAIL" default:"admin@nocoflo.local" json:"email"`
		Password string `envconfig:"ADMIN_PASSWORD" default:"admin123" json:"-"`
	}

	Logging struct {
		Level     string    `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format    string    `envconfig:"LOG_FORMAT" default:"json" json:"format"`
		AccessLog AccessLog `json:"access_log"`
	}

	AccessLog struct {
		Enabled         bool `envconfig:"ACCESS_LOG_ENABLED" default:"true" json:"enabled"`
		LogHealthChecks bool `envconfig:"ACCESS_LOG_HEALTH_CHECKS" default:"false" json:"log_health_checks"`
	}

	Telemetry struct {
		Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false" json:"enabled"`
		ExporterType string  `envconfig:"OTEL_EXPORTER" default:"grpc" json:"exporter_type"`
		OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"" json:"otlp_endpoint"`
		ServiceName  string  `envconfig:"OTEL_SERVICE_NAME" default:"nocoflo" json:"service_name"`
		Metrics      Metrics `json:"metrics"`
		Traces       Traces  `json:"traces"`
	}

	Metrics struct {
		Enabled bool `envconfig:"METRICS_ENABLED" default:"false" json:"enabled"`
	}

	Traces struct {
		Enabled      bool    `envconfig:"TRACES_ENABLED" default:"false" json:"enabled"`
		SamplerRatio float64 `envconfig:"TRACES_SAMPLER_RATIO" default:"1.0" json:"sampler_ratio"`
	}
)

func (c *ServiceConfig) GetEnvironment() int {
	switch c.App.Env.Name {
	case "production", "prod":
		return Production
	case "staging", "stg":
		return Staging
	case "sandbox", "sbx":
		return Sandbox
	default:
		return Development
	}
}

func (c *ServiceConfig) IsProduction() bool {
	return c.GetEnvironment() == Production
}

// Datasource resolves the metadata store location. A connection string wins
// over the discrete fields.
func (m Metadata) Datasource() (model.DatasourceConfig, error) {
	if m.ConnectionString != "" {
		return model.ParseConnectionString(m.ConnectionString)
	}

	kind, err := model.ParseDatasourceType(m.Type)
	if err != nil {
		return model.DatasourceConfig{}, err
	}

	cfg := model.DatasourceConfig{
		Type:     kind,
		Path:     m.Path,
		Host:     m.Host,
		Port:     m.Port,
		Database: m.Database,
		User:     m.Username,
		Password: m.Password,
		SSLMode:  m.SSLMode,
	}

	if cfg.Port == 0 {
		switch kind {
		case model.DatasourcePostgreSQL:
			cfg.Port = 5432
		case model.DatasourceMySQL:
			cfg.Port = 3306
		}
	}

	return cfg, nil
}
