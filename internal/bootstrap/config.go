package bootstrap

import (
	"encoding/json"
	"time"

	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/config"
)

// Config is the top level configuration for the orchestrator process (§6).
// Every field is sourced from an environment variable via config.FromEnv;
// config.FromEnv only understands string/bool/int/[]string, so durations are
// expressed as whole seconds and the provider roster is a JSON blob.
type Config struct {
	ServiceName    string `env:"SERVICE_NAME" envDefault:"banking-ingestion-orchestrator"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment    string `env:"ENVIRONMENT" envDefault:"local"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":3003"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":3004"`

	PostgresPrimaryDSN string `env:"POSTGRES_PRIMARY_DSN" required:"true"`
	PostgresReplicaDSN string `env:"POSTGRES_REPLICA_DSN"`
	PostgresDBName     string `env:"POSTGRES_DB_NAME" required:"true"`
	MigrationsPath     string `env:"MIGRATIONS_PATH" envDefault:"migrations"`

	RedisDSN   string `env:"REDIS_DSN" required:"true"`
	RabbitMQDSN string `env:"RABBITMQ_DSN" required:"true"`
	MongoDSN    string `env:"MONGO_DSN" required:"true"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"ingestor_metadata"`

	OTelCollectorEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// TickSecret authenticates the external caller of POST /v1/tick (§5, §6).
	TickSecret string `env:"TICK_SECRET" required:"true"`

	TickDeadlineSeconds   int `env:"TICK_DEADLINE_SECONDS" envDefault:"300"`
	RunDeadlineSeconds    int `env:"RUN_DEADLINE_SECONDS" envDefault:"180"`
	TickBatchLimit        int `env:"TICK_BATCH_LIMIT" envDefault:"500"`
	TickConcurrency       int `env:"TICK_CONCURRENCY" envDefault:"16"`

	// VaultKeyHex is the hex-encoded AES key (16, 24 or 32 bytes) guarding
	// every stored credential (C3, §4.3); vault.KeyFromHex rejects any
	// other length.
	VaultKeyHex string `env:"VAULT_KEY_HEX" required:"true"`

	// ProvidersJSON is a JSON array of ProviderConfig describing every
	// registered provider adapter (§4.2, §6). Kept out of FromEnv's typed
	// fields since it is structured data, not a scalar.
	ProvidersJSON string `env:"PROVIDERS_JSON" envDefault:"[]"`

	Providers []ProviderConfig `env:"-"`

	TickDeadline time.Duration `env:"-"`
	RunDeadline  time.Duration `env:"-"`
}

// ProviderConfig describes one registered provider adapter (§4.2). OAuth
// aggregator providers use AuthURL/ClientID/ClientSecret; direct-credential
// providers leave those blank. RPS/Burst feed the shared rate limiter set
// (§4.4).
type ProviderConfig struct {
	ProviderID      string  `json:"provider_id"`
	DisplayName     string  `json:"display_name"`
	IntegrationType string  `json:"integration_type"`
	BaseURL         string  `json:"base_url"`
	AuthURL         string  `json:"auth_url"`
	ClientID        string  `json:"client_id"`
	ClientSecret    string  `json:"client_secret"`
	RPS             float64 `json:"rps"`
	Burst           int     `json:"burst"`
}

// LoadConfig reads Config from the environment and derives the fields
// FromEnv cannot populate directly (durations, the provider roster).
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.FromEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := json.Unmarshal([]byte(cfg.ProvidersJSON), &cfg.Providers); err != nil {
		return Config{}, apperr.ConfigurationError{Field: "PROVIDERS_JSON", Message: "must be a JSON array of provider definitions: " + err.Error()}
	}

	cfg.TickDeadline = time.Duration(cfg.TickDeadlineSeconds) * time.Second
	cfg.RunDeadline = time.Duration(cfg.RunDeadlineSeconds) * time.Second

	return cfg, nil
}

// ProviderRateLimits builds the map NewRateLimiters expects from the
// configured provider roster.
func (c Config) ProviderRateLimits() map[string]float64 {
	out := make(map[string]float64, len(c.Providers))
	for _, p := range c.Providers {
		if p.RPS > 0 {
			out[p.ProviderID] = p.RPS
		}
	}

	return out
}

// ProviderRateLimitBurst returns the largest configured burst, used as the
// shared burst size for NewRateLimiters. Defaults to 1 when nothing is
// configured.
func (c Config) ProviderRateLimitBurst() int {
	burst := 1
	for _, p := range c.Providers {
		if p.Burst > burst {
			burst = p.Burst
		}
	}

	return burst
}
